package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/torifo/echo-news/internal/news"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Defaults are the flag values used when a flag is not given.
type Defaults struct {
	Lang   string `yaml:"lang"`
	Limit  int    `yaml:"limit"`
	Source string `yaml:"source"`
	Sort   string `yaml:"sort"`
}

type Config struct {
	GNewsAPIKey    string   `yaml:"gnews_api_key"`
	CurrentsAPIKey string   `yaml:"currents_api_key"`
	Defaults       Defaults `yaml:"defaults"`
	Retention      string   `yaml:"retention"`
}

// OwnKey returns the user's own key for p, or "".
func (c *Config) OwnKey(p news.Provider) string {
	switch p {
	case news.GNews:
		return c.GNewsAPIKey
	case news.Currents:
		return c.CurrentsAPIKey
	}
	return ""
}

func (c *Config) setOwnKey(p news.Provider, key string) {
	switch p {
	case news.GNews:
		c.GNewsAPIKey = key
	case news.Currents:
		c.CurrentsAPIKey = key
	}
}

func (c *Config) RetentionDuration() time.Duration {
	if c.Retention == "" {
		return 30 * 24 * time.Hour
	}
	d, err := ParseDays(c.Retention)
	if err != nil {
		return 30 * 24 * time.Hour
	}
	return d
}

// ParseDays parses "Nd" day syntax and falls back to time.ParseDuration.
func ParseDays(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use e.g. 7d, 24h)", s)
	}
	return d, nil
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "echo-news", "config.yaml")
}

// QuotaPath is where the daily usage counters live.
func QuotaPath() string {
	return filepath.Join(xdg.StateHome, "echo-news", "quota.json")
}

func CachePath() string {
	return filepath.Join(xdg.CacheHome, "echo-news", "echo-news.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path on top of the embedded defaults. A missing
// file is created from the defaults.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Non-fatal: the embedded defaults still apply
			_ = writeDefaults(path)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes cfg to path. The file holds API keys so it is private.
func Save(path string, cfg *Config) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// SetKey stores the user's own key for p.
func SetKey(path string, p news.Provider, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("key must not be empty")
	}
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	cfg.setOwnKey(p, strings.TrimSpace(key))
	return Save(path, cfg)
}

// RemoveKey drops the user's own key for p so the shared key is used again.
func RemoveKey(path string, p news.Provider) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	cfg.setOwnKey(p, "")
	return Save(path, cfg)
}

// MaskKey hides all but the last four characters.
func MaskKey(key string) string {
	r := []rune(key)
	if len(r) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

// SharedKeyEnv names the variable holding the shared key of p.
func SharedKeyEnv(p news.Provider) string {
	return strings.ToUpper(string(p)) + "_API_KEY"
}

// ResolveKeys picks the key for every provider: the user's own key when set,
// otherwise the shared key from the environment. Providers with neither are
// left out.
func ResolveKeys(cfg *Config, getenv func(string) string) map[news.Provider]news.KeyInfo {
	keys := make(map[news.Provider]news.KeyInfo)
	for _, p := range news.All() {
		if own := cfg.OwnKey(p); own != "" {
			keys[p] = news.KeyInfo{Key: own, IsOwn: true}
			continue
		}
		if shared := getenv(SharedKeyEnv(p)); shared != "" {
			keys[p] = news.KeyInfo{Key: shared}
		}
	}
	return keys
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o600)
}

func validate(cfg *Config) error {
	d := cfg.Defaults
	if d.Limit < 1 {
		return fmt.Errorf("defaults.limit must be a positive integer, got %d", d.Limit)
	}
	if _, err := news.ParseSelection(d.Source); err != nil {
		return fmt.Errorf("defaults.source: %w", err)
	}
	if !news.SortOrder(d.Sort).Valid() {
		return fmt.Errorf("defaults.sort: unknown order %q (valid: publishedAt, relevance)", d.Sort)
	}
	if cfg.Retention != "" {
		if _, err := ParseDays(cfg.Retention); err != nil {
			return fmt.Errorf("retention: %w", err)
		}
	}
	return nil
}
