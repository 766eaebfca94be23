package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gearwatch/internal/storage"
)

type fakeStore struct {
	written []storage.PriceObservation
	failURL string
}

func (f *fakeStore) UpsertObservation(ctx context.Context, obs storage.PriceObservation) error {
	if obs.URL == f.failURL {
		return errors.New("write timeout")
	}
	f.written = append(f.written, obs)
	return nil
}

func observation(url string, price string) storage.PriceObservation {
	obs := storage.PriceObservation{
		URLRecord:  storage.URLRecord{Seller: "other.com", URL: url},
		ObservedAt: time.Now().UTC(),
		Status:     storage.StatusNoMatch,
	}
	if price != "" {
		d, _ := decimal.NewFromString(price)
		obs.Price = &d
		obs.Status = storage.StatusPriced
	}
	return obs
}

func TestRecordObservationsWritesAll(t *testing.T) {
	store := &fakeStore{}
	r := New(store, zerolog.Nop())

	observations := []storage.PriceObservation{
		observation("https://a", "10.00"),
		observation("https://b", ""),
		observation("https://c", "30.00"),
	}

	written, err := r.RecordObservations(context.Background(), observations)
	if err != nil {
		t.Fatalf("record should succeed: %v", err)
	}
	if written != 3 {
		t.Fatalf("expected 3 writes, got %d", written)
	}

	// Absent prices are recorded, not dropped, and input order is preserved.
	if store.written[1].URL != "https://b" || store.written[1].Price != nil {
		t.Fatalf("absent-price observation mishandled: %+v", store.written[1])
	}
}

func TestRecordObservationsContinuesPastFailure(t *testing.T) {
	store := &fakeStore{failURL: "https://b"}
	r := New(store, zerolog.Nop())

	observations := []storage.PriceObservation{
		observation("https://a", "10.00"),
		observation("https://b", "20.00"),
		observation("https://c", "30.00"),
	}

	written, err := r.RecordObservations(context.Background(), observations)
	if err == nil {
		t.Fatal("per-item failure should surface in the joined error")
	}
	if written != 2 {
		t.Fatalf("expected 2 successful writes, got %d", written)
	}
	if len(store.written) != 2 || store.written[0].URL != "https://a" || store.written[1].URL != "https://c" {
		t.Fatalf("remaining writes must still be attempted in order: %+v", store.written)
	}
}
