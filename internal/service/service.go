// Package service composes the lister, extractor, and recorder into the
// scan pipeline.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"gearwatch/internal/config"
	"gearwatch/internal/scheduler"
	"gearwatch/internal/storage"
)

// URLLister returns the complete set of records to scan.
type URLLister interface {
	ListURLRecords(ctx context.Context) ([]storage.URLRecord, error)
}

// PriceExtractor produces exactly one observation per record.
type PriceExtractor interface {
	ExtractPrice(ctx context.Context, rec storage.URLRecord) storage.PriceObservation
}

// ObservationRecorder writes observations to the history store.
type ObservationRecorder interface {
	RecordObservations(ctx context.Context, observations []storage.PriceObservation) (int, error)
}

// Service orchestrates listing, parallel extraction, and recording.
type Service struct {
	scheduler *scheduler.Scheduler
	lister    URLLister
	extractor PriceExtractor
	recorder  ObservationRecorder
	logger    zerolog.Logger

	concurrency int
	limiter     *rate.Limiter
	locker      storage.AdvisoryLocker
	lockKey     int64
}

// New constructs the scan service. A nil recorder makes runs dry: extraction
// happens, nothing is written.
func New(cfg *config.Config, sched *scheduler.Scheduler, lister URLLister, extractor PriceExtractor, rec ObservationRecorder, locker storage.AdvisoryLocker, logger zerolog.Logger) *Service {
	concurrency := cfg.Scraper.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var limiter *rate.Limiter
	if cfg.Scraper.RequestsPerSecond > 0 {
		burst := cfg.Scraper.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Scraper.RequestsPerSecond), burst)
	}

	return &Service{
		scheduler:   sched,
		lister:      lister,
		extractor:   extractor,
		recorder:    rec,
		logger:      logger.With().Str("component", "service").Logger(),
		concurrency: concurrency,
		limiter:     limiter,
		locker:      locker,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the scheduled scan loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle executes one full scan cycle, guarded by the advisory lock so
// overlapping deployments do not double-scan.
func (s *Service) ProcessCycle(ctx context.Context, cycle time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("cycle", cycle).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeCycle(ctx)
}

func (s *Service) executeCycle(ctx context.Context) error {
	records, err := s.lister.ListURLRecords(ctx)
	if err != nil {
		return fmt.Errorf("list url records: %w", err)
	}
	if len(records) == 0 {
		s.logger.Info().Msg("no url records to scan")
		return nil
	}

	// One slot per record: the fan-in barrier guarantees exactly one
	// observation for every listed record, absent prices included.
	observations := make([]storage.PriceObservation, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			observations[i] = s.extractor.ExtractPrice(gctx, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("extraction fan-out: %w", err)
	}

	priced := 0
	for _, obs := range observations {
		if obs.HasPrice() {
			priced++
		}
	}

	if s.recorder == nil {
		s.logger.Info().Int("records", len(records)).Int("priced", priced).Msg("dry run complete; nothing written")
		return nil
	}

	written, recErr := s.recorder.RecordObservations(ctx, observations)
	if recErr != nil {
		s.logger.Error().Err(recErr).Int("written", written).Int("total", len(observations)).
			Msg("some observations failed to record")
		if written == 0 {
			return fmt.Errorf("record observations: %w", recErr)
		}
	}

	s.logger.Info().Int("records", len(records)).Int("priced", priced).
		Int("written", written).Msg("scan cycle complete")
	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
