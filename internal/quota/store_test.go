package quota

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/torifo/echo-news/internal/news"
)

type memBackend struct {
	mu     sync.Mutex
	data   []byte
	writes int
}

func (m *memBackend) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memBackend) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.writes++
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

var jst = time.FixedZone("JST", 9*60*60)

func testPolicies() map[news.Provider]Policy {
	return map[news.Provider]Policy{
		news.GNews:    {Location: time.UTC, SharedLimit: 2, TotalLimit: 100},
		news.Currents: {Location: jst, SharedLimit: 1, TotalLimit: 20},
	}
}

func testStore(t *testing.T, now time.Time) (*Store, *memBackend, *fakeClock) {
	t.Helper()
	b := &memBackend{}
	clock := &fakeClock{t: now}
	s := NewStore(b, WithClock(clock.Now), WithPolicies(testPolicies()))
	return s, b, clock
}

func TestEmptyStoreIsZeroUsage(t *testing.T) {
	s, b, _ := testStore(t, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))

	usage, err := s.Usage()
	require.NoError(t, err)
	assert.Equal(t, 0, usage[news.GNews].Used)
	assert.Equal(t, 0, usage[news.Currents].Used)
	assert.Equal(t, 100, usage[news.GNews].Remaining())
	assert.Equal(t, 20, usage[news.Currents].Remaining())

	allowed, err := s.IsSharedAllowed(news.GNews, false)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, b.writes, "reads must not persist anything")
}

func TestIncrementSharedUntilCap(t *testing.T) {
	s, _, _ := testStore(t, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))

	require.NoError(t, s.Increment(news.GNews, false))
	require.NoError(t, s.Increment(news.GNews, false))

	used, err := s.SharedUsed(news.GNews)
	require.NoError(t, err)
	assert.Equal(t, 2, used)

	allowed, err := s.IsSharedAllowed(news.GNews, false)
	require.NoError(t, err)
	assert.False(t, allowed)

	// repeated checks on the same day agree
	allowed, err = s.IsSharedAllowed(news.GNews, false)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = s.IsSharedAllowed(news.GNews, true)
	require.NoError(t, err)
	assert.True(t, allowed, "own keys are never capped")
}

func TestIncrementOwnKeySkipsSharedCounter(t *testing.T) {
	s, _, _ := testStore(t, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))

	require.NoError(t, s.Increment(news.Currents, true))
	require.NoError(t, s.Increment(news.Currents, true))

	usage, err := s.Usage()
	require.NoError(t, err)
	assert.Equal(t, 2, usage[news.Currents].Used)
	assert.Equal(t, 0, usage[news.Currents].SharedUsed)
}

func TestUTCBoundaryResetsGNews(t *testing.T) {
	s, _, clock := testStore(t, time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC))

	require.NoError(t, s.Increment(news.GNews, false))
	require.NoError(t, s.Increment(news.GNews, false))
	allowed, err := s.IsSharedAllowed(news.GNews, false)
	require.NoError(t, err)
	require.False(t, allowed)

	clock.t = time.Date(2026, 10, 20, 0, 10, 0, 0, time.UTC)

	allowed, err = s.IsSharedAllowed(news.GNews, false)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, s.Increment(news.GNews, false))
	usage, err := s.Usage()
	require.NoError(t, err)
	assert.Equal(t, 1, usage[news.GNews].Used)
	assert.Equal(t, 1, usage[news.GNews].SharedUsed)
}

func TestLocalBoundaryResetsCurrentsOnly(t *testing.T) {
	// 23:59 in JST, still Oct 19 in UTC
	s, _, clock := testStore(t, time.Date(2026, 10, 19, 14, 59, 0, 0, time.UTC))

	require.NoError(t, s.Increment(news.Currents, false))
	require.NoError(t, s.Increment(news.GNews, false))

	allowed, err := s.IsSharedAllowed(news.Currents, false)
	require.NoError(t, err)
	require.False(t, allowed)

	// 00:01 JST on Oct 20, UTC date unchanged
	clock.t = time.Date(2026, 10, 19, 15, 1, 0, 0, time.UTC)

	allowed, err = s.IsSharedAllowed(news.Currents, false)
	require.NoError(t, err)
	assert.True(t, allowed)

	usage, err := s.Usage()
	require.NoError(t, err)
	assert.Equal(t, 0, usage[news.Currents].Used)
	assert.Equal(t, 0, usage[news.Currents].SharedUsed)
	assert.Equal(t, 1, usage[news.GNews].Used)
	assert.Equal(t, 1, usage[news.GNews].SharedUsed)
}

func TestAuthoritativeRemainingIsDisplayOnly(t *testing.T) {
	s, _, _ := testStore(t, time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC))

	require.NoError(t, s.Increment(news.Currents, false))
	require.NoError(t, s.RecordAuthoritativeRemaining(news.Currents, 17, 20))

	usage, err := s.Usage()
	require.NoError(t, err)
	cu := usage[news.Currents]
	assert.Equal(t, 1, cu.Used)
	assert.Equal(t, 17, cu.Remaining())
	assert.Equal(t, 20, cu.Limit())

	used, err := s.SharedUsed(news.Currents)
	require.NoError(t, err)
	assert.Equal(t, 1, used)

	allowed, err := s.IsSharedAllowed(news.Currents, false)
	require.NoError(t, err)
	assert.False(t, allowed, "upstream figures never lift the shared cap")
}

func TestAuthoritativeRemainingClearedOnNewDay(t *testing.T) {
	s, _, clock := testStore(t, time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC))

	require.NoError(t, s.RecordAuthoritativeRemaining(news.Currents, 5, 20))
	clock.t = clock.t.Add(24 * time.Hour)

	usage, err := s.Usage()
	require.NoError(t, err)
	assert.Nil(t, usage[news.Currents].APIRemaining)
	assert.Equal(t, 20, usage[news.Currents].Remaining())
}

func TestUnknownProvider(t *testing.T) {
	s, _, _ := testStore(t, time.Now())

	err := s.Increment(news.Provider("newsapi"), false)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = s.IsSharedAllowed(news.Provider("newsapi"), false)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestDocumentLayout(t *testing.T) {
	s, b, _ := testStore(t, time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC))

	require.NoError(t, s.Increment(news.GNews, false))
	require.NoError(t, s.RecordAuthoritativeRemaining(news.Currents, 9, 20))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b.data, &doc))

	gnews := doc["gnews"].(map[string]any)
	assert.Equal(t, "2026-10-19", gnews["date"])
	assert.Equal(t, float64(1), gnews["count"])

	currents := doc["currents"].(map[string]any)
	assert.Equal(t, "2026-10-19", currents["date"])
	assert.Equal(t, float64(9), currents["apiRemaining"])
	assert.Equal(t, float64(20), currents["apiLimit"])

	shared := doc["shared"].(map[string]any)
	assert.Equal(t, float64(1), shared["gnews"].(map[string]any)["count"])
}

func TestReadsDocumentWithoutShared(t *testing.T) {
	s, b, _ := testStore(t, time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC))
	b.data = []byte(`{"gnews":{"date":"2026-10-19","count":7},"currents":{"date":"2026-10-19","count":2}}`)

	usage, err := s.Usage()
	require.NoError(t, err)
	assert.Equal(t, 7, usage[news.GNews].Used)
	assert.Equal(t, 0, usage[news.GNews].SharedUsed)
	assert.Equal(t, 2, usage[news.Currents].Used)
}

func TestConcurrentIncrements(t *testing.T) {
	s, _, _ := testStore(t, time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Increment(news.GNews, true))
		}()
	}
	wg.Wait()

	usage, err := s.Usage()
	require.NoError(t, err)
	assert.Equal(t, 20, usage[news.GNews].Used)
}

func TestFileBackendMissingFile(t *testing.T) {
	b := FileBackend{Path: filepath.Join(t.TempDir(), "nope", "quota.json")}
	data, err := b.Read()
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "echo-news", "quota.json")
	now := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)

	s := NewStore(FileBackend{Path: path}, WithClock(func() time.Time { return now }))
	require.NoError(t, s.Increment(news.GNews, false))

	_, err := os.Stat(path)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	reopened := NewStore(FileBackend{Path: path}, WithClock(func() time.Time { return now }))
	used, err := reopened.SharedUsed(news.GNews)
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}
