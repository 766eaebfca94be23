package source

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"gearwatch/internal/storage"
)

type fakeStore struct {
	pages  map[string]page
	visits []string
}

type page struct {
	records []storage.URLRecord
	next    string
	err     error
}

func (f *fakeStore) ScanPage(ctx context.Context, token string) ([]storage.URLRecord, string, error) {
	f.visits = append(f.visits, token)
	p, ok := f.pages[token]
	if !ok {
		return nil, "", errors.New("unknown token")
	}
	return p.records, p.next, p.err
}

func rec(id int64, seller string) storage.URLRecord {
	return storage.URLRecord{ID: id, Seller: seller, URL: "https://example.com/" + seller}
}

func TestListerAccumulatesAllPages(t *testing.T) {
	store := &fakeStore{pages: map[string]page{
		"":   {records: []storage.URLRecord{rec(1, "a"), rec(2, "b")}, next: "2"},
		"2":  {records: []storage.URLRecord{rec(3, "c"), rec(4, "d")}, next: "4"},
		"4":  {records: []storage.URLRecord{rec(5, "e")}, next: ""},
	}}

	records, err := NewLister(store, zerolog.Nop()).ListURLRecords(context.Background())
	if err != nil {
		t.Fatalf("list should succeed: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected union of all 3 pages (5 records), got %d", len(records))
	}

	seen := make(map[int64]bool)
	for _, r := range records {
		if seen[r.ID] {
			t.Fatalf("duplicate record id %d", r.ID)
		}
		seen[r.ID] = true
	}
	for id := int64(1); id <= 5; id++ {
		if !seen[id] {
			t.Fatalf("record id %d omitted", id)
		}
	}

	if len(store.visits) != 3 {
		t.Fatalf("expected 3 page visits, got %v", store.visits)
	}
}

func TestListerPropagatesStoreError(t *testing.T) {
	scanErr := errors.New("store unavailable")
	store := &fakeStore{pages: map[string]page{
		"":  {records: []storage.URLRecord{rec(1, "a")}, next: "1"},
		"1": {err: scanErr},
	}}

	records, err := NewLister(store, zerolog.Nop()).ListURLRecords(context.Background())
	if err == nil {
		t.Fatal("mid-scan store errors must be fatal")
	}
	if !errors.Is(err, scanErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if records != nil {
		t.Fatal("partial results must not be returned")
	}
}

func TestListerEmptyStore(t *testing.T) {
	store := &fakeStore{pages: map[string]page{
		"": {next: ""},
	}}

	records, err := NewLister(store, zerolog.Nop()).ListURLRecords(context.Background())
	if err != nil {
		t.Fatalf("empty store should list cleanly: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
