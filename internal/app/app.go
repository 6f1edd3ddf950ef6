package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tldwatch/internal/config"
	"tldwatch/internal/fetcher"
	"tldwatch/internal/monitoring"
	"tldwatch/internal/notification"
	"tldwatch/internal/scheduler"
	"tldwatch/internal/server"
	"tldwatch/internal/service"
	"tldwatch/internal/storage"
	"tldwatch/internal/version"
)

// DefaultUserID receives notifications from the scheduled alert sweep.
const DefaultUserID = "default"

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

type services struct {
	data     *service.DataService
	notifier *notification.Evaluator
	monitor  *monitoring.Aggregator
}

func (a *App) buildServices(observations storage.ObservationStore, alertLog storage.AlertLogStore) services {
	monitor := monitoring.New(monitoring.Options{
		SnapshotInterval: a.Config.Monitoring.SnapshotInterval,
		MaxErrorEvents:   a.Config.Monitoring.MaxErrorEvents,
		StartTime:        time.Now(),
		Version:          version.Version,
	}, a.Logger)

	client := fetcher.NewClient(fetcher.Options{
		BaseURL:    a.Config.API.BaseURL,
		Timeout:    a.Config.API.RequestTimeout,
		UserAgent:  a.Config.API.UserAgent,
		RetryDelay: a.Config.API.RetryDelay,
		Transport:  monitoring.NewTransport(nil, monitor),
	}, a.Logger)

	notifier := notification.NewEvaluator(a.Logger, nil)

	data := service.New(client, notifier, monitor, observations, alertLog, service.Options{
		CacheTTL: a.Config.API.CacheTTL,
	}, a.Logger)

	return services{data: data, notifier: notifier, monitor: monitor}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Serve runs the dashboard API together with the refresh scheduler and
// the metrics snapshot loop until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var observations storage.ObservationStore
	var alertLog storage.AlertLogStore
	if store != nil {
		observations = store
		alertLog = store
	}

	svcs := a.buildServices(observations, alertLog)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	srv := server.New(server.Options{
		Addr:           a.Config.Server.Addr,
		AdminPassword:  a.Config.Server.AdminPassword,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
	}, svcs.data, svcs.notifier, svcs.monitor, a.Logger)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	errCh := make(chan error, 3)
	go func() { errCh <- svcs.monitor.Run(runCtx) }()
	go func() { errCh <- sched.Run(runCtx, a.refreshTick(svcs.data)) }()
	go func() { errCh <- srv.Run(runCtx) }()

	a.Logger.Info().Msg("tldwatch service started")
	err = <-errCh
	cancelRun()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("tldwatch service stopped")
	return nil
}

// refreshTick re-fetches the price data and sweeps the attached alerts.
func (a *App) refreshTick(data *service.DataService) scheduler.TickFunc {
	return func(ctx context.Context, cycle time.Time) error {
		if err := data.Refresh(ctx); err != nil {
			a.Logger.Warn().Err(err).Time("cycle", cycle).Msg("scheduled refresh failed; cache unchanged")
		}
		data.CheckAlerts(ctx, DefaultUserID)
		return nil
	}
}

// Check performs a one-shot refresh and alert sweep.
func (a *App) Check(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var observations storage.ObservationStore
	var alertLog storage.AlertLogStore
	if store != nil {
		observations = store
		alertLog = store
	}

	svcs := a.buildServices(observations, alertLog)

	if err := svcs.data.Refresh(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("refresh failed; evaluating alerts against cached data")
	}
	svcs.data.CheckAlerts(ctx, DefaultUserID)

	pending := svcs.notifier.PendingNotifications()
	a.Logger.Info().Int("pending_notifications", len(pending)).Msg("alert sweep complete")
	return nil
}

// ExportOptions hold parameters for exporting a TLD's price history.
type ExportOptions struct {
	TLD       string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
