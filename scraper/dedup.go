package scraper

import (
	"context"
	"sync"
)

// ExternalIDFinder is the slice of the store the dedup index needs.
type ExternalIDFinder interface {
	FindExternalIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// DedupIndex is the set of external ids already staged or catalogued,
// loaded fresh for every run.
type DedupIndex struct {
	mu    sync.Mutex
	known map[string]bool
}

// LoadDedupIndex looks ids up in a single store query.
func LoadDedupIndex(ctx context.Context, store ExternalIDFinder, ids []string) (*DedupIndex, error) {
	idx := &DedupIndex{known: make(map[string]bool)}
	if len(ids) == 0 {
		return idx, nil
	}
	found, err := store.FindExternalIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, ok := range found {
		if ok {
			idx.known[id] = true
		}
	}
	return idx, nil
}

// Filter returns the links whose id is not known, in order.
func (d *DedupIndex) Filter(links []Link) []Link {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Link, 0, len(links))
	for _, l := range links {
		if !d.known[l.ExternalID] {
			out = append(out, l)
		}
	}
	return out
}

func (d *DedupIndex) Contains(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.known[id]
}

func (d *DedupIndex) Add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.known[id] = true
}

// Len is the number of known ids.
func (d *DedupIndex) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.known)
}
