package scraper

import (
	"context"
	"errors"
	"testing"
)

type countingFinder struct {
	known map[string]bool
	calls int
	err   error
}

func (f *countingFinder) FindExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bool)
	for _, id := range ids {
		if f.known[id] {
			out[id] = true
		}
	}
	return out, nil
}

func TestDedupIndex_FilterKeepsOrder(t *testing.T) {
	finder := &countingFinder{known: map[string]bool{"2-2": true}}
	links := []Link{{ExternalID: "1-1"}, {ExternalID: "2-2"}, {ExternalID: "3-3"}}

	idx, err := LoadDedupIndex(context.Background(), finder, []string{"1-1", "2-2", "3-3"})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if finder.calls != 1 {
		t.Fatalf("expected a single lookup, got %d", finder.calls)
	}

	fresh := idx.Filter(links)
	if len(fresh) != 2 || fresh[0].ExternalID != "1-1" || fresh[1].ExternalID != "3-3" {
		t.Fatalf("unexpected filtered links: %+v", fresh)
	}

	idx.Add("3-3")
	if !idx.Contains("3-3") || idx.Len() != 2 {
		t.Fatalf("expected 3-3 to be recorded, len %d", idx.Len())
	}
	if got := idx.Filter(links); len(got) != 1 {
		t.Fatalf("expected 1 link after add, got %d", len(got))
	}
}

func TestDedupIndex_EmptyIDsSkipQuery(t *testing.T) {
	finder := &countingFinder{}
	if _, err := LoadDedupIndex(context.Background(), finder, nil); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if finder.calls != 0 {
		t.Fatalf("expected no lookup, got %d", finder.calls)
	}
}

func TestDedupIndex_LookupError(t *testing.T) {
	finder := &countingFinder{err: errors.New("db down")}
	if _, err := LoadDedupIndex(context.Background(), finder, []string{"1-1"}); err == nil {
		t.Fatalf("expected lookup error")
	}
}
