// Package source retrieves the full set of URL records to scan.
package source

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"gearwatch/internal/storage"
)

// Store is the paginated scan interface of the external source store. An
// empty token starts the scan; an empty next token ends it.
type Store interface {
	ScanPage(ctx context.Context, token string) ([]storage.URLRecord, string, error)
}

// Lister accumulates the complete, unordered set of URL records.
type Lister struct {
	store  Store
	logger zerolog.Logger
}

// NewLister constructs a Lister over the given store.
func NewLister(store Store, logger zerolog.Logger) *Lister {
	return &Lister{
		store:  store,
		logger: logger.With().Str("component", "lister").Logger(),
	}
}

// ListURLRecords performs a full scan, following continuation tokens until
// the store signals no more pages. Partial results are never returned: any
// page error aborts the whole listing.
func (l *Lister) ListURLRecords(ctx context.Context) ([]storage.URLRecord, error) {
	var records []storage.URLRecord

	token := ""
	pages := 0
	for {
		page, next, err := l.store.ScanPage(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("scan source store (page %d): %w", pages+1, err)
		}
		records = append(records, page...)
		pages++

		if next == "" {
			break
		}
		token = next
	}

	l.logger.Info().Int("records", len(records)).Int("pages", pages).Msg("listed url records")
	return records, nil
}
