package quota

import (
	"encoding/json"
	"fmt"

	"github.com/torifo/echo-news/internal/news"
)

const sharedKey = "shared"

type counter struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type record struct {
	Date         string `json:"date"`
	Count        int    `json:"count"`
	APIRemaining *int   `json:"apiRemaining,omitempty"`
	APILimit     *int   `json:"apiLimit,omitempty"`
}

// document is the persisted quota state: one record per provider keyed by
// provider name, plus a "shared" object holding the shared-key counters.
type document struct {
	totals map[news.Provider]*record
	shared map[news.Provider]*counter
}

func newDocument() *document {
	return &document{
		totals: make(map[news.Provider]*record),
		shared: make(map[news.Provider]*counter),
	}
}

func decodeDocument(data []byte) (*document, error) {
	doc := newDocument()
	if len(data) == 0 {
		return doc, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing quota document: %w", err)
	}
	for key, msg := range raw {
		if key == sharedKey {
			var shared map[news.Provider]*counter
			if err := json.Unmarshal(msg, &shared); err != nil {
				return nil, fmt.Errorf("parsing shared quota: %w", err)
			}
			for p, c := range shared {
				if c != nil {
					doc.shared[p] = c
				}
			}
			continue
		}
		var r record
		if err := json.Unmarshal(msg, &r); err != nil {
			return nil, fmt.Errorf("parsing quota for %s: %w", key, err)
		}
		doc.totals[news.Provider(key)] = &r
	}
	return doc, nil
}

func (d *document) encode() ([]byte, error) {
	out := make(map[string]any, len(d.totals)+1)
	for p, r := range d.totals {
		out[string(p)] = r
	}
	out[sharedKey] = d.shared
	return json.MarshalIndent(out, "", "  ")
}

// total returns the provider's record for day. A record from an earlier
// day is replaced by a fresh one, dropping any upstream figures with it.
func (d *document) total(p news.Provider, day string) *record {
	r, ok := d.totals[p]
	if !ok || r.Date != day {
		r = &record{Date: day}
		d.totals[p] = r
	}
	return r
}

func (d *document) sharedCounter(p news.Provider, day string) *counter {
	c, ok := d.shared[p]
	if !ok || c.Date != day {
		c = &counter{Date: day}
		d.shared[p] = c
	}
	return c
}
