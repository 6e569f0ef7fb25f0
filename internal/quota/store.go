// Package quota tracks daily request usage per provider and gates access
// through the shared key.
package quota

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/torifo/echo-news/internal/news"
)

var ErrUnknownProvider = errors.New("unknown provider")

const dayLayout = "2006-01-02"

// Policy holds the limits of one provider and the location whose midnight
// starts a new quota day.
type Policy struct {
	Location    *time.Location
	SharedLimit int
	TotalLimit  int
}

// DefaultPolicies mirror the upstream plans: GNews resets at UTC midnight,
// Currents at local midnight.
func DefaultPolicies() map[news.Provider]Policy {
	return map[news.Provider]Policy{
		news.GNews:    {Location: time.UTC, SharedLimit: 5, TotalLimit: 100},
		news.Currents: {Location: time.Local, SharedLimit: 1, TotalLimit: 20},
	}
}

// ProviderUsage is today's usage of one provider.
type ProviderUsage struct {
	Used        int
	SharedUsed  int
	SharedLimit int
	TotalLimit  int
	// APIRemaining and APILimit come from upstream rate-limit headers and
	// are display-only.
	APIRemaining *int
	APILimit     *int
}

// Remaining prefers the figure reported by the upstream and falls back to
// the local count.
func (u ProviderUsage) Remaining() int {
	if u.APIRemaining != nil {
		return *u.APIRemaining
	}
	return u.TotalLimit - u.Used
}

// Limit is the daily total limit, preferring the upstream figure.
func (u ProviderUsage) Limit() int {
	if u.APILimit != nil {
		return *u.APILimit
	}
	return u.TotalLimit
}

type Usage map[news.Provider]ProviderUsage

type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPolicies replaces the default provider policies.
func WithPolicies(p map[news.Provider]Policy) Option {
	return func(s *Store) { s.policies = p }
}

// Store is the single in-process owner of the quota document. Every call
// reads the backend, resets stale days and writes back what changed, under
// one mutex. Separate processes are not coordinated.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	policies map[news.Provider]Policy
	now      func() time.Time
}

func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		policies: DefaultPolicies(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the policy of p.
func (s *Store) Policy(p news.Provider) (Policy, error) {
	pol, ok := s.policies[p]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return pol, nil
}

func (s *Store) today(p news.Provider) (string, Policy, error) {
	pol, err := s.Policy(p)
	if err != nil {
		return "", Policy{}, err
	}
	loc := pol.Location
	if loc == nil {
		loc = time.Local
	}
	return s.now().In(loc).Format(dayLayout), pol, nil
}

func (s *Store) load() (*document, error) {
	data, err := s.backend.Read()
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

func (s *Store) save(doc *document) error {
	data, err := doc.encode()
	if err != nil {
		return fmt.Errorf("encoding quota document: %w", err)
	}
	return s.backend.Write(data)
}

// IsSharedAllowed reports whether a request may be made. Own keys are always
// allowed; the shared key is allowed while today's shared count is below the
// provider's shared limit. It never writes.
func (s *Store) IsSharedAllowed(p news.Provider, isOwn bool) (bool, error) {
	if isOwn {
		return true, nil
	}
	used, err := s.SharedUsed(p)
	if err != nil {
		return false, err
	}
	pol, _ := s.Policy(p)
	return used < pol.SharedLimit, nil
}

// SharedUsed returns today's shared-key count for p.
func (s *Store) SharedUsed(p news.Provider) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, _, err := s.today(p)
	if err != nil {
		return 0, err
	}
	doc, err := s.load()
	if err != nil {
		return 0, err
	}
	c := doc.sharedCounter(p, day)
	return c.Count, nil
}

// Increment records one successful request. The shared counter is only
// bumped when the shared key was used.
func (s *Store) Increment(p news.Provider, isOwn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, _, err := s.today(p)
	if err != nil {
		return err
	}
	doc, err := s.load()
	if err != nil {
		return err
	}

	r := doc.total(p, day)
	r.Count++
	if !isOwn {
		c := doc.sharedCounter(p, day)
		c.Count++
	}
	return s.save(doc)
}

// RecordAuthoritativeRemaining stores the upstream's own remaining/limit
// figures for display. The shared counter is left alone.
func (s *Store) RecordAuthoritativeRemaining(p news.Provider, remaining, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, _, err := s.today(p)
	if err != nil {
		return err
	}
	doc, err := s.load()
	if err != nil {
		return err
	}

	r := doc.total(p, day)
	r.APIRemaining = &remaining
	r.APILimit = &limit
	return s.save(doc)
}

// Usage returns today's usage for every provider with a policy.
func (s *Store) Usage() (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	usage := make(Usage, len(s.policies))
	for p := range s.policies {
		day, pol, err := s.today(p)
		if err != nil {
			return nil, err
		}
		r := doc.total(p, day)
		c := doc.sharedCounter(p, day)
		usage[p] = ProviderUsage{
			Used:         r.Count,
			SharedUsed:   c.Count,
			SharedLimit:  pol.SharedLimit,
			TotalLimit:   pol.TotalLimit,
			APIRemaining: r.APIRemaining,
			APILimit:     r.APILimit,
		}
	}
	return usage, nil
}
