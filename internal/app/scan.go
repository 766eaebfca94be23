package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"
)

// Scan executes a single scan cycle immediately, outside the scheduler.
func (a *App) Scan(ctx context.Context, opts ScanOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, closeRenderer, err := a.newService(repo, nil, opts.DryRun)
	if err != nil {
		return err
	}
	defer closeRenderer()

	if opts.DryRun {
		a.Logger.Warn().Msg("dry run: observations will not be written")
	}

	return svc.ProcessCycle(ctx, time.Now().UTC())
}
