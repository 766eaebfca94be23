package app

import (
	"context"
	"errors"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"gearwatch/internal/config"
	"gearwatch/internal/extract"
	"gearwatch/internal/recorder"
	"gearwatch/internal/renderer"
	"gearwatch/internal/scheduler"
	"gearwatch/internal/service"
	"gearwatch/internal/source"
	"gearwatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openRepository(ctx context.Context) (*storage.Repository, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	repo := storage.NewRepository(pool, a.Config.Database)
	closer := func() {
		repo.Close()
	}
	return repo, closer, nil
}

func (a *App) newRenderer() (renderer.Renderer, error) {
	return renderer.New(a.Config.Renderer.Kind, renderer.Options{
		LynxPath:  a.Config.Renderer.LynxPath,
		Timeout:   a.Config.Renderer.Timeout,
		UserAgent: a.Config.Renderer.UserAgent,
	}, a.Logger)
}

func (a *App) newService(repo *storage.Repository, sched *scheduler.Scheduler, dryRun bool) (*service.Service, func(), error) {
	pageRenderer, err := a.newRenderer()
	if err != nil {
		return nil, nil, err
	}

	closeRenderer := func() {
		if closer, ok := pageRenderer.(io.Closer); ok {
			_ = closer.Close()
		}
	}

	lister := source.NewLister(repo, a.Logger)
	extractor := extract.New(pageRenderer, extract.Options{
		FetchRetries: a.Config.Scraper.FetchRetries,
		RetryBackoff: a.Config.Scraper.RetryBackoff,
	}, a.Logger)

	var rec service.ObservationRecorder
	if !dryRun {
		rec = recorder.New(repo, a.Logger)
	}

	svc := service.New(a.Config, sched, lister, extractor, rec, repo, a.Logger)
	return svc, closeRenderer, nil
}

// Run executes the long-running scan service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc, closeRenderer, err := a.newService(repo, sched, false)
	if err != nil {
		return err
	}
	defer closeRenderer()

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting scan service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("scan service stopped")
	return nil
}

// ScanOptions configure a one-shot scan.
type ScanOptions struct {
	DryRun bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	Seller    string
	URL       string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
