// Package cache keeps the history of fetched articles in SQLite.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/torifo/echo-news/internal/news"
	_ "modernc.org/sqlite"
)

const (
	metaLastRun   = "last_run"
	metaLastRunAt = "last_run_at"
)

type Cache struct {
	readDB  *sql.DB
	writeDB *sql.DB
	now     func() time.Time
}

func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	c := &Cache{readDB: readDB, writeDB: writeDB, now: time.Now}
	if err := c.init(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init() error {
	_, err := c.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS articles (
			id          TEXT PRIMARY KEY,
			provider    TEXT NOT NULL,
			source      TEXT NOT NULL,
			title       TEXT NOT NULL,
			link        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			content     TEXT NOT NULL DEFAULT '',
			published   DATETIME NOT NULL,
			fetched_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_articles_fetched ON articles(fetched_at DESC);
		CREATE INDEX IF NOT EXISTS idx_articles_provider ON articles(provider);

		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		errs = append(errs, c.readDB.Close())
	}
	if c.writeDB != nil {
		errs = append(errs, c.writeDB.Close())
	}
	return errors.Join(errs...)
}

const upsertSQL = `
	INSERT INTO articles (id, provider, source, title, link, description, content, published, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		content = excluded.content,
		fetched_at = excluded.fetched_at
`

func upsert(tx *sql.Tx, articles []news.Article, fetchedAt time.Time) error {
	stmt, err := tx.Prepare(upsertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range articles {
		_, err := stmt.Exec(a.ID, string(a.Provider), a.Source, a.Title, a.URL, a.Description, a.Content,
			a.PublishedAt.UTC(), fetchedAt.UTC())
		if err != nil {
			return fmt.Errorf("upserting article %s: %w", a.ID, err)
		}
	}
	return nil
}

// UpsertArticles stores articles, refreshing the text and fetch time of the
// ones already known.
func (c *Cache) UpsertArticles(articles []news.Article) error {
	tx, err := c.writeDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsert(tx, articles, c.now()); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordRun stores the articles of one run and remembers their order so
// they can be addressed by position later.
func (c *Cache) RecordRun(articles []news.Article) error {
	now := c.now()

	tx, err := c.writeDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsert(tx, articles, now); err != nil {
		return err
	}

	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	for key, value := range map[string]string{
		metaLastRun:   strings.Join(ids, ","),
		metaLastRunAt: now.UTC().Format(time.RFC3339),
	} {
		_, err := tx.Exec(`
			INSERT INTO meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		if err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
	}
	return tx.Commit()
}

// LastRun returns the articles of the most recent run in display order.
// Articles pruned since are skipped.
func (c *Cache) LastRun() ([]Entry, error) {
	var value string
	err := c.readDB.QueryRow("SELECT value FROM meta WHERE key = ?", metaLastRun).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) || value == "" {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last run: %w", err)
	}

	var entries []Entry
	for _, id := range strings.Split(value, ",") {
		row := c.readDB.QueryRow(selectSQL+" WHERE id = ?", id)
		e, err := scanEntry(row)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LastRunAt returns when the last run was recorded, or the zero time.
func (c *Cache) LastRunAt() time.Time {
	var value string
	if err := c.readDB.QueryRow("SELECT value FROM meta WHERE key = ?", metaLastRunAt).Scan(&value); err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

const selectSQL = "SELECT id, provider, source, title, link, description, content, published, fetched_at FROM articles"

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e        Entry
		provider string
	)
	err := s.Scan(&e.ID, &provider, &e.Source, &e.Title, &e.URL, &e.Description, &e.Content, &e.PublishedAt, &e.FetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning article: %w", err)
	}
	e.Provider = news.Provider(provider)
	return e, nil
}

func (c *Cache) GetArticles(opts QueryOpts) ([]Entry, error) {
	var (
		where []string
		args  []any
	)

	if !opts.Since.IsZero() {
		where = append(where, "fetched_at >= ?")
		args = append(args, opts.Since.UTC())
	}

	if len(opts.Providers) > 0 {
		placeholders := make([]string, len(opts.Providers))
		for i, p := range opts.Providers {
			placeholders[i] = "?"
			args = append(args, string(p))
		}
		where = append(where, "provider IN ("+strings.Join(placeholders, ",")+")") //nolint:gosec
	}

	if opts.Search != "" {
		where = append(where, "(title LIKE ? OR description LIKE ?)")
		term := "%" + opts.Search + "%"
		args = append(args, term, term)
	}

	query := selectSQL
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY fetched_at DESC, published DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := c.readDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes articles fetched longer ago than olderThan and compacts the
// database file.
func (c *Cache) Prune(olderThan time.Duration) (int64, error) {
	cutoff := c.now().Add(-olderThan).UTC()
	res, err := c.writeDB.Exec("DELETE FROM articles WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting articles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if _, err := c.writeDB.Exec("VACUUM"); err != nil {
			return n, fmt.Errorf("vacuum: %w", err)
		}
	}
	return n, nil
}

// Stats returns the article count and the size of the database file.
func (c *Cache) Stats(dbPath string) (int, int64, error) {
	var count int
	if err := c.readDB.QueryRow("SELECT COUNT(*) FROM articles").Scan(&count); err != nil {
		return 0, 0, fmt.Errorf("counting articles: %w", err)
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		return count, 0, fmt.Errorf("stat %s: %w", dbPath, err)
	}
	return count, info.Size(), nil
}

// CountByProvider returns how many stored articles came from each provider.
func (c *Cache) CountByProvider() (map[news.Provider]int, error) {
	rows, err := c.readDB.Query("SELECT provider, COUNT(*) FROM articles GROUP BY provider")
	if err != nil {
		return nil, fmt.Errorf("counting by provider: %w", err)
	}
	defer rows.Close()

	counts := make(map[news.Provider]int)
	for rows.Next() {
		var (
			p string
			n int
		)
		if err := rows.Scan(&p, &n); err != nil {
			return nil, err
		}
		counts[news.Provider(p)] = n
	}
	return counts, rows.Err()
}
