// Package recorder appends price observations to the history store.
package recorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"gearwatch/internal/storage"
)

// Store is the upsert-by-item interface of the history store.
type Store interface {
	UpsertObservation(ctx context.Context, obs storage.PriceObservation) error
}

// Recorder writes observations one by one. Writes are independent: a failure
// on one item never prevents the remaining writes from being attempted.
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

// New constructs a Recorder over the given store.
func New(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With().Str("component", "recorder").Logger(),
	}
}

// RecordObservations upserts every observation in input order, absent prices
// included. It returns how many writes succeeded and the joined per-item
// failures, if any.
func (r *Recorder) RecordObservations(ctx context.Context, observations []storage.PriceObservation) (int, error) {
	written := 0
	var errs []error

	for _, obs := range observations {
		if err := r.store.UpsertObservation(ctx, obs); err != nil {
			r.logger.Error().Err(err).Str("seller", obs.Seller).Str("url", obs.URL).Msg("failed to record observation")
			errs = append(errs, fmt.Errorf("record %s %s: %w", obs.Seller, obs.URL, err))
			continue
		}
		written++
		r.logger.Info().Str("seller", obs.Seller).Str("url", obs.URL).
			Str("price", obs.PriceString()).Str("status", obs.Status).
			Time("observed_at", obs.ObservedAt).Msg("observation recorded")
	}

	return written, errors.Join(errs...)
}
