package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/burakmert236/volei-list/common/cache"
	"github.com/burakmert236/volei-list/common/config"
	"github.com/burakmert236/volei-list/common/database"
	apperrors "github.com/burakmert236/volei-list/common/errors"
	commonevents "github.com/burakmert236/volei-list/common/events"
	"github.com/burakmert236/volei-list/common/logger"
	"github.com/burakmert236/volei-list/common/models"
	"github.com/burakmert236/volei-list/common/natsjetstream"
	"github.com/burakmert236/volei-list/common/telemetry"
	"github.com/burakmert236/volei-list/common/utils"
	"github.com/burakmert236/volei-list/services/roster-service/internal/events"
	"github.com/burakmert236/volei-list/services/roster-service/internal/events/publisher"
	"github.com/burakmert236/volei-list/services/roster-service/internal/handler"
	"github.com/burakmert236/volei-list/services/roster-service/internal/repository"
	"github.com/burakmert236/volei-list/services/roster-service/internal/repository/migrations"
	"github.com/burakmert236/volei-list/services/roster-service/internal/scheduler"
	"github.com/burakmert236/volei-list/services/roster-service/internal/service"
)

const ServiceName = "roster-service"

type App struct {
	cfg             *config.Config
	settings        service.Settings
	httpServer      *http.Server
	listener        net.Listener
	store           repository.RosterStore
	natsClient      *natsjetstream.Client
	tracing         *telemetry.Provider
	logger          *logger.Logger
	rosterService   service.RosterService
	scheduler       *scheduler.Scheduler
	eventPublisher  publisher.Publisher
	eventSubscriber *events.EventSubscriber

	cleanup []func() error
}

// NewCore wires the roster service and everything it depends on, without
// any inbound surface. The CLI uses it for one-shot commands.
func NewCore(ctx context.Context, cfg *config.Config) (*App, *apperrors.AppError) {
	app := &App{
		cfg:     cfg,
		cleanup: make([]func() error, 0),
	}

	steps := []struct {
		name string
		fn   func(ctx context.Context) *apperrors.AppError
	}{
		{"logger", app.initLogger},
		{"settings", app.initSettings},
		{"tracing", app.initTracing},
		{"store", app.initStore},
		{"nats client", app.initNATS},
		{"messaging publisher", app.initMessagePublisher},
		{"roster service", app.initService},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			app.runCleanup()
			return nil, apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to init "+step.name)
		}
	}

	return app, nil
}

// New wires the full server: HTTP, the reset-request subscriber and the
// daily reset scheduler.
func New(ctx context.Context, cfg *config.Config) (*App, *apperrors.AppError) {
	app, err := NewCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	steps := []struct {
		name string
		fn   func(ctx context.Context) *apperrors.AppError
	}{
		{"http server", app.initHTTP},
		{"messaging subscriber", app.initMessageSubscriber},
		{"scheduler", app.initScheduler},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			app.runCleanup()
			return nil, apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to init "+step.name)
		}
	}

	return app, nil
}

func (a *App) initLogger(ctx context.Context) *apperrors.AppError {
	a.logger = logger.New(logger.Config{
		Level:       a.cfg.Server.LogLevel,
		Format:      a.cfg.Server.LogFormat,
		ServiceName: ServiceName,
	})
	a.cleanup = append(a.cleanup, func() error {
		_ = a.logger.Sync()
		return nil
	})
	return nil
}

func (a *App) initSettings(ctx context.Context) *apperrors.AppError {
	settings, err := service.SettingsFromConfig(a.cfg.Roster)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigError, "invalid roster settings")
	}
	a.settings = settings
	return nil
}

func (a *App) initTracing(ctx context.Context) *apperrors.AppError {
	provider, err := telemetry.NewProvider(ctx, a.cfg.Tracing, ServiceName, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigError, "failed to create tracer provider")
	}

	a.tracing = provider
	a.logger.Info("Tracing configured", "enabled", provider.Enabled(), "exporter", a.cfg.Tracing.Exporter)
	a.cleanup = append(a.cleanup, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return provider.Shutdown(shutdownCtx)
	})
	return nil
}

func (a *App) initStore(ctx context.Context) *apperrors.AppError {
	switch a.cfg.Store.Driver {
	case config.StoreDriverDynamoDB:
		dynamoClient, err := database.NewDynamoDBClient(ctx, a.cfg)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create DynamoDB client")
		}
		if a.cfg.DynamoDB.UseLocalEndpoint {
			if err := dynamoClient.EnsureTable(ctx); err != nil {
				return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to ensure DynamoDB table")
			}
		}
		a.store = repository.NewDynamoDBStore(dynamoClient, a.settings.Location)
		a.logger.Info("Using DynamoDB store", "table", dynamoClient.Table())

	default:
		sqliteClient, err := database.NewSQLiteClient(ctx, a.cfg.Store.DSN, migrations.FS)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to open sqlite store")
		}
		a.store = repository.NewSQLiteStore(sqliteClient, a.settings.Location)
		a.logger.Info("Using sqlite store", "path", sqliteClient.Path)
	}

	a.cleanup = append(a.cleanup, a.store.Close)
	return nil
}

func (a *App) initNATS(ctx context.Context) *apperrors.AppError {
	if !a.cfg.NATSEnabled() {
		a.logger.Info("NATS disabled, roster events will not be published")
		return nil
	}

	natsClient, err := natsjetstream.NewClient(natsjetstream.NewConfig(a.cfg.NATS), a.logger)
	if err != nil {
		return err
	}
	a.natsClient = natsClient
	a.cleanup = append(a.cleanup, natsClient.Close)

	return natsClient.EnsureStream(ctx, natsjetstream.StreamConfig{
		Name:     commonevents.RosterEventsStream,
		Subjects: []string{commonevents.RosterEventsWildcard},
		MaxAge:   7 * 24 * time.Hour,
	})
}

func (a *App) initMessagePublisher(ctx context.Context) *apperrors.AppError {
	if a.natsClient == nil {
		a.eventPublisher = publisher.NopPublisher{}
		return nil
	}
	a.eventPublisher = publisher.NewEventPublisher(a.natsClient, a.logger)
	return nil
}

func (a *App) initService(ctx context.Context) *apperrors.AppError {
	var broker service.Broker
	if a.natsClient != nil {
		broker = a.natsClient
	}

	a.rosterService = service.NewRosterService(a.settings, service.Dependencies{
		Store:     a.store,
		Broker:    broker,
		Publisher: a.eventPublisher,
		Cache:     cache.New[models.Roster]("roster", a.cfg.Cache.ListTTL, a.logger),
		Tracer:    a.tracing.Tracer(),
		Clock:     service.SystemClock,
		Logger:    a.logger,
	})
	return nil
}

func (a *App) initHTTP(ctx context.Context) *apperrors.AppError {
	rosterHandler := handler.NewRosterHandler(a.rosterService, a.cfg.Roster.OpensAt, a.cfg.Roster.ClosesAt, a.logger)

	a.httpServer = &http.Server{
		Addr:              a.cfg.Server.HTTPAddr,
		Handler:           rosterHandler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

func (a *App) initMessageSubscriber(ctx context.Context) *apperrors.AppError {
	if a.natsClient == nil {
		return nil
	}

	a.eventSubscriber = events.NewEventSubscriber(a.natsClient, a.rosterService, a.logger)
	if err := a.eventSubscriber.Start(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.CodeEventSubscribtionError, "failed to start event subscriber")
	}
	return nil
}

func (a *App) initScheduler(ctx context.Context) *apperrors.AppError {
	if !a.cfg.Roster.ResetEnabled {
		return nil
	}

	resetAt, err := utils.ParseTimeOfDay(a.cfg.Roster.ResetAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigError, "invalid roster.reset_at")
	}

	resetScheduler := scheduler.NewResetScheduler(a.rosterService, a.logger)
	a.scheduler = scheduler.NewScheduler(resetScheduler, a.settings.Location, resetAt, a.logger)
	return nil
}

func (a *App) Service() service.RosterService {
	return a.rosterService
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

// Addr is the address the HTTP server listens on once started.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

func (a *App) Start() *apperrors.AppError {
	if a.httpServer == nil {
		return apperrors.New(apperrors.CodeInternalServer, "http server not initialized")
	}

	lis, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to listen on "+a.httpServer.Addr)
	}
	a.listener = lis

	go func() {
		a.logger.Info("HTTP server listening", "addr", lis.Addr().String())
		if err := a.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", "error", err)
		}
	}()

	if a.scheduler != nil {
		go a.scheduler.Start()
		a.logger.Info("Daily roster reset scheduler is started", "reset_at", a.cfg.Roster.ResetAt)
	}

	a.logger.Info("Application started successfully")
	return nil
}

func (a *App) Stop() *apperrors.AppError {
	a.logger.Info("Stopping application...")

	if a.httpServer != nil && a.listener != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("HTTP shutdown error", "error", err)
		}
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if a.eventSubscriber != nil {
		a.eventSubscriber.Stop()
	}

	a.logger.Info("Application stopped")
	a.runCleanup()
	return nil
}

// runCleanup releases resources in reverse order of acquisition.
func (a *App) runCleanup() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil && a.logger != nil {
			a.logger.Error("Cleanup error", "error", err)
		}
	}
	a.cleanup = nil
}

// Migrate brings the configured store's schema up to date and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	switch cfg.Store.Driver {
	case config.StoreDriverDynamoDB:
		dynamoClient, err := database.NewDynamoDBClient(ctx, cfg)
		if err != nil {
			return err
		}
		return dynamoClient.EnsureTable(ctx)

	default:
		sqliteClient, err := database.NewSQLiteClient(ctx, cfg.Store.DSN, migrations.FS)
		if err != nil {
			return err
		}
		return sqliteClient.Close()
	}
}
