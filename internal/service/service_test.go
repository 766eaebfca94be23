package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gearwatch/internal/config"
	"gearwatch/internal/extract"
	"gearwatch/internal/recorder"
	"gearwatch/internal/storage"
)

type fakeLister struct {
	records []storage.URLRecord
	err     error
}

func (f *fakeLister) ListURLRecords(ctx context.Context) ([]storage.URLRecord, error) {
	return f.records, f.err
}

type fakeRenderer struct {
	mu    sync.Mutex
	pages map[string]string
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.pages[url]
	if !ok {
		return "", errors.New("exit status 1")
	}
	return text, nil
}

type fakeSink struct {
	mu      sync.Mutex
	written []storage.PriceObservation
	failAll bool
}

func (f *fakeSink) UpsertObservation(ctx context.Context, obs storage.PriceObservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("sink outage")
	}
	f.written = append(f.written, obs)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Scraper: config.ScraperConfig{
			Concurrency:       4,
			RequestsPerSecond: 1000,
			Burst:             10,
		},
	}
}

func pipeline(t *testing.T, lister URLLister, pages map[string]string, sink *fakeSink) *Service {
	t.Helper()
	extractor := extract.New(&fakeRenderer{pages: pages}, extract.Options{}, zerolog.Nop())
	rec := recorder.New(sink, zerolog.Nop())
	return New(testConfig(), nil, lister, extractor, rec, nil, zerolog.Nop())
}

func TestProcessCycleEndToEnd(t *testing.T) {
	records := make([]storage.URLRecord, 5)
	pages := make(map[string]string)
	for i := range records {
		url := fmt.Sprintf("https://shop%d.example/item", i)
		records[i] = storage.URLRecord{ID: int64(i + 1), Seller: "other.com", URL: url, SKU: fmt.Sprintf("SKU%d", i)}
		if i == 2 {
			continue // no rendered page: forced fetch failure
		}
		pages[url] = fmt.Sprintf("Current Price: $ %d.50\n", 10+i)
	}

	sink := &fakeSink{}
	svc := pipeline(t, &fakeLister{records: records}, pages, sink)

	if err := svc.ProcessCycle(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("cycle should succeed despite one fetch failure: %v", err)
	}

	// Exactly one observation per record, the failed fetch included.
	if len(sink.written) != 5 {
		t.Fatalf("expected 5 recorded observations, got %d", len(sink.written))
	}

	byURL := make(map[string]storage.PriceObservation, len(sink.written))
	for _, obs := range sink.written {
		if _, dup := byURL[obs.URL]; dup {
			t.Fatalf("observation written twice for %s", obs.URL)
		}
		byURL[obs.URL] = obs
	}

	priced := 0
	for i, rec := range records {
		obs, ok := byURL[rec.URL]
		if !ok {
			t.Fatalf("record %s yielded no observation", rec.URL)
		}
		if i == 2 {
			if obs.Status != storage.StatusFetchFailed || obs.Price != nil {
				t.Fatalf("expected absent price for failed fetch, got %+v", obs)
			}
			continue
		}
		if obs.Status != storage.StatusPriced {
			t.Fatalf("expected priced observation for %s, got %s", rec.URL, obs.Status)
		}
		priced++
	}
	if priced != 4 {
		t.Fatalf("expected 4 derived prices, got %d", priced)
	}
}

func TestProcessCycleListerFailureIsFatal(t *testing.T) {
	listErr := errors.New("store unavailable")
	sink := &fakeSink{}
	svc := pipeline(t, &fakeLister{err: listErr}, nil, sink)

	err := svc.ProcessCycle(context.Background(), time.Now().UTC())
	if !errors.Is(err, listErr) {
		t.Fatalf("expected lister error to abort the run, got %v", err)
	}
	if len(sink.written) != 0 {
		t.Fatal("nothing should be written when listing fails")
	}
}

func TestProcessCycleSinkOutageIsFatal(t *testing.T) {
	records := []storage.URLRecord{{ID: 1, Seller: "other.com", URL: "https://a.example"}}
	pages := map[string]string{"https://a.example": "Current Price: $ 10.00\n"}

	sink := &fakeSink{failAll: true}
	svc := pipeline(t, &fakeLister{records: records}, pages, sink)

	if err := svc.ProcessCycle(context.Background(), time.Now().UTC()); err == nil {
		t.Fatal("a run where every write fails should report an error")
	}
}

func TestProcessCycleDryRun(t *testing.T) {
	records := []storage.URLRecord{{ID: 1, Seller: "other.com", URL: "https://a.example"}}
	pages := map[string]string{"https://a.example": "Current Price: $ 10.00\n"}

	extractor := extract.New(&fakeRenderer{pages: pages}, extract.Options{}, zerolog.Nop())
	svc := New(testConfig(), nil, &fakeLister{records: records}, extractor, nil, nil, zerolog.Nop())

	if err := svc.ProcessCycle(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("dry run should succeed: %v", err)
	}
}

func TestRunRequiresScheduler(t *testing.T) {
	svc := New(testConfig(), nil, &fakeLister{}, nil, nil, nil, zerolog.Nop())
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("Run without a scheduler should error")
	}
}
