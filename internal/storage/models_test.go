package storage

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestURLRecordClone(t *testing.T) {
	rec := URLRecord{Seller: "other.com", URL: "https://x", Attrs: map[string]string{"k": "v"}}

	clone := rec.Clone()
	clone.Attrs["k"] = "changed"

	if rec.Attrs["k"] != "v" {
		t.Fatal("clone must not share the attrs map")
	}
}

func TestPriceString(t *testing.T) {
	var obs PriceObservation
	if obs.PriceString() != "" || obs.HasPrice() {
		t.Fatal("absent price should render empty")
	}

	d := decimal.RequireFromString("12.3")
	obs.Price = &d
	if got := obs.PriceString(); got != "12.30" {
		t.Fatalf("expected fixed two decimals, got %q", got)
	}
}
