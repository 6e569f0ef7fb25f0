package quota

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Backend is the durable storage of the quota document. Read returns
// (nil, nil) when nothing has been stored yet.
type Backend interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

// FileBackend stores the document in a single file.
type FileBackend struct {
	Path string
}

func (b FileBackend) Read() ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading quota file: %w", err)
	}
	return data, nil
}

// Write replaces the file atomically via a temp file in the same directory.
func (b FileBackend) Write(data []byte) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating quota dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".quota-*.json")
	if err != nil {
		return fmt.Errorf("creating temp quota file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp quota file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp quota file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.Path); err != nil {
		return fmt.Errorf("replacing quota file: %w", err)
	}
	return nil
}
