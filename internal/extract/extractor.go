// Package extract derives a canonical price from rendered seller pages.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gearwatch/internal/renderer"
	"gearwatch/internal/storage"
)

// Options tune per-record fetch behaviour.
type Options struct {
	FetchRetries int
	RetryBackoff time.Duration
}

// Extractor turns one URLRecord into one PriceObservation. Fetch, match, and
// parse failures all yield an absent price; they never abort the run.
type Extractor struct {
	renderer renderer.Renderer
	opts     Options
	now      func() time.Time
	logger   zerolog.Logger
}

// New constructs an Extractor over the given renderer.
func New(r renderer.Renderer, opts Options, logger zerolog.Logger) *Extractor {
	return &Extractor{
		renderer: r,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("component", "extractor").Logger(),
	}
}

// ExtractPrice fetches the page text and derives an observation from it.
func (e *Extractor) ExtractPrice(ctx context.Context, rec storage.URLRecord) storage.PriceObservation {
	text, err := e.fetch(ctx, rec.URL)
	if err != nil {
		e.logger.Warn().Err(err).Str("seller", rec.Seller).Str("url", rec.URL).Msg("page fetch failed")
		return e.observe(rec, nil, storage.StatusFetchFailed, err)
	}
	return e.FromText(rec, text)
}

// FromText derives an observation from already-rendered page text. Given the
// same record and text, repeated calls produce the same price.
func (e *Extractor) FromText(rec storage.URLRecord, text string) storage.PriceObservation {
	filtered := FilterNoise(text)

	strategy := StrategyFor(rec.Seller)
	raw, ok := strategy.FindRawPrice(filtered)
	if !ok {
		e.logger.Debug().Str("seller", rec.Seller).Str("url", rec.URL).
			Stringer("strategy", strategy).Msg("no price pattern matched")
		return e.observe(rec, nil, storage.StatusNoMatch, nil)
	}

	price, err := NormalizePrice(raw)
	if err != nil {
		e.logger.Warn().Err(err).Str("seller", rec.Seller).Str("url", rec.URL).Msg("captured price did not parse")
		return e.observe(rec, nil, storage.StatusParseFailed, err)
	}

	e.logger.Info().Str("seller", rec.Seller).Str("url", rec.URL).
		Str("price", price.StringFixed(2)).Msg("price derived")
	return e.observe(rec, &price, storage.StatusPriced, nil)
}

func (e *Extractor) observe(rec storage.URLRecord, price *decimal.Decimal, status string, cause error) storage.PriceObservation {
	obs := storage.PriceObservation{
		URLRecord:  rec.Clone(),
		Price:      price,
		ObservedAt: e.now(),
		Status:     status,
	}
	if cause != nil {
		msg := cause.Error()
		obs.Error = &msg
	}
	return obs
}

func (e *Extractor) fetch(ctx context.Context, url string) (string, error) {
	attempts := e.opts.FetchRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && e.opts.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(i) * e.opts.RetryBackoff):
			}
		}

		text, err := e.renderer.Render(ctx, url)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("render failed after %d attempts: %w", attempts, lastErr)
}

// FilterNoise drops every line containing "original" (strikethrough prices
// must never be read as the current price) and fuses the survivors. No
// separator is reinserted between surviving lines; the seller patterns are
// tuned against that exact fusion, so do not "fix" it here.
func FilterNoise(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToLower(line), "original") {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

// NormalizePrice strips grouping commas and parses the raw capture. The
// canonical form is rendered with exactly two fractional digits.
func NormalizePrice(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse captured price %q: %w", raw, err)
	}
	return price, nil
}
