package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/torifo/echo-news/internal/news"
)

func testDB(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// at pins the cache clock.
func at(db *Cache, t time.Time) {
	db.now = func() time.Time { return t }
}

func article(p news.Provider, link, title, desc string, published time.Time) news.Article {
	return news.Article{
		ID:          news.ArticleID(link),
		Title:       title,
		Description: desc,
		URL:         link,
		Source:      "Example",
		Provider:    p,
		PublishedAt: published,
	}
}

func sampleArticles() []news.Article {
	now := time.Now().Truncate(time.Second)
	return []news.Article{
		article(news.GNews, "https://a.example", "Post A", "Desc A", now.Add(-1*time.Hour)),
		article(news.Currents, "https://b.example", "Post B", "Desc B", now.Add(-2*time.Hour)),
		article(news.GNews, "https://c.example", "Post C", "Desc C about search", now.Add(-3*time.Hour)),
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	articles := sampleArticles()

	if err := db.UpsertArticles(articles); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetArticles(QueryOpts{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(got))
	}
	// Same fetch time, so newest published first
	if got[0].ID != articles[0].ID {
		t.Errorf("expected newest first, got %s", got[0].Title)
	}
	if got[1].Provider != news.Currents {
		t.Errorf("expected provider round trip, got %q", got[1].Provider)
	}
	if !got[0].PublishedAt.Equal(articles[0].PublishedAt) {
		t.Errorf("published: got %v, want %v", got[0].PublishedAt, articles[0].PublishedAt)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	articles := sampleArticles()

	if err := db.UpsertArticles(articles); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	articles[0].Title = "Updated Post A"
	articles[0].Content = "full body"
	if err := db.UpsertArticles(articles[:1]); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := db.GetArticles(QueryOpts{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 articles after upsert, got %d", len(got))
	}
	if got[0].Title != "Updated Post A" {
		t.Errorf("expected updated title, got %q", got[0].Title)
	}
	if got[0].Content != "full body" {
		t.Errorf("expected updated content, got %q", got[0].Content)
	}
}

func TestQuerySince(t *testing.T) {
	db := testDB(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	articles := sampleArticles()

	at(db, base.Add(-72*time.Hour))
	if err := db.UpsertArticles(articles[2:]); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	at(db, base)
	if err := db.UpsertArticles(articles[:2]); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetArticles(QueryOpts{Since: base.Add(-24 * time.Hour)})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 articles fetched in the last day, got %d", len(got))
	}
}

func TestQueryProviders(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertArticles(sampleArticles()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetArticles(QueryOpts{Providers: []news.Provider{news.GNews}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 gnews articles, got %d", len(got))
	}
	for _, e := range got {
		if e.Provider != news.GNews {
			t.Errorf("unexpected provider %q", e.Provider)
		}
	}
}

func TestQuerySearch(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertArticles(sampleArticles()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetArticles(QueryOpts{Search: "search"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Post C" {
		t.Errorf("expected only Post C, got %v", got)
	}
}

func TestQueryLimit(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertArticles(sampleArticles()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetArticles(QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 articles, got %d", len(got))
	}
}

func TestRecordRunKeepsOrder(t *testing.T) {
	db := testDB(t)
	articles := sampleArticles()
	run := []news.Article{articles[2], articles[0], articles[1]}

	at(db, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC))
	if err := db.RecordRun(run); err != nil {
		t.Fatalf("record run: %v", err)
	}

	got, err := db.LastRun()
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i := range run {
		if got[i].ID != run[i].ID {
			t.Errorf("position %d: got %s, want %s", i, got[i].Title, run[i].Title)
		}
	}
	if want := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC); !db.LastRunAt().Equal(want) {
		t.Errorf("LastRunAt = %v, want %v", db.LastRunAt(), want)
	}
}

func TestRecordRunReplacesPrevious(t *testing.T) {
	db := testDB(t)
	articles := sampleArticles()

	if err := db.RecordRun(articles); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if err := db.RecordRun(articles[1:2]); err != nil {
		t.Fatalf("record run: %v", err)
	}

	got, err := db.LastRun()
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	if len(got) != 1 || got[0].ID != articles[1].ID {
		t.Errorf("expected only the latest run, got %v", got)
	}
}

func TestLastRunEmpty(t *testing.T) {
	db := testDB(t)
	got, err := db.LastRun()
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
	if !db.LastRunAt().IsZero() {
		t.Error("expected zero LastRunAt")
	}
}

func TestEmptyDB(t *testing.T) {
	db := testDB(t)
	got, err := db.GetArticles(QueryOpts{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected 0 articles in empty db, got %d", len(got))
	}
}

func TestPruneDeletesOldArticles(t *testing.T) {
	db := testDB(t)
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	articles := sampleArticles()

	at(db, now.Add(-48*time.Hour))
	if err := db.UpsertArticles(articles[2:]); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	at(db, now)
	if err := db.UpsertArticles(articles[:2]); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Post C was fetched 48h ago. Prune anything older than 24h.
	deleted, err := db.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 pruned, got %d", deleted)
	}

	got, err := db.GetArticles(QueryOpts{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 remaining articles, got %d", len(got))
	}
}

func TestPruneNothingToDelete(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertArticles(sampleArticles()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	deleted, err := db.Prune(365 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected 0 pruned, got %d", deleted)
	}
}

func TestLastRunSkipsPruned(t *testing.T) {
	db := testDB(t)
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	articles := sampleArticles()

	at(db, now.Add(-48*time.Hour))
	if err := db.RecordRun(articles); err != nil {
		t.Fatalf("record run: %v", err)
	}
	at(db, now)
	if err := db.UpsertArticles(articles[1:2]); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := db.Prune(24 * time.Hour); err != nil {
		t.Fatalf("prune: %v", err)
	}

	got, err := db.LastRun()
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	if len(got) != 1 || got[0].ID != articles[1].ID {
		t.Errorf("expected only the refreshed article, got %v", got)
	}
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.UpsertArticles(sampleArticles()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	count, size, err := db.Stats(dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
	if size == 0 {
		t.Error("expected non-zero db size")
	}
}

func TestCountByProvider(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertArticles(sampleArticles()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	counts, err := db.CountByProvider()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[news.GNews] != 2 || counts[news.Currents] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestOpenCreatesDir(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "deep", "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("opening db in nested dir: %v", err)
	}
	db.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
}
