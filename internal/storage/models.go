package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Observation statuses. An absent price is still recorded; the status says why.
const (
	StatusPriced      = "priced"
	StatusFetchFailed = "fetch_failed"
	StatusNoMatch     = "no_match"
	StatusParseFailed = "parse_failed"
)

// URLRecord identifies one seller page to scan for price data. Attrs carries
// any extra seller-supplied fields verbatim; this system never interprets them.
type URLRecord struct {
	ID     int64
	Seller string
	URL    string
	SKU    string
	Attrs  map[string]string
}

// Clone returns a deep copy so extraction never mutates the listed record.
func (r URLRecord) Clone() URLRecord {
	out := r
	if r.Attrs != nil {
		out.Attrs = make(map[string]string, len(r.Attrs))
		for k, v := range r.Attrs {
			out.Attrs[k] = v
		}
	}
	return out
}

// PriceObservation is one timestamped price reading (or explicit absence)
// for a URLRecord.
type PriceObservation struct {
	URLRecord
	Price      *decimal.Decimal
	ObservedAt time.Time
	Status     string
	Error      *string
}

// PriceString renders the canonical two-decimal price, or "" when absent.
func (o PriceObservation) PriceString() string {
	if o.Price == nil {
		return ""
	}
	return o.Price.StringFixed(2)
}

// HasPrice reports whether a price was derived this cycle.
func (o PriceObservation) HasPrice() bool {
	return o.Price != nil
}
