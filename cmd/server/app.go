package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/phrazzld/docgen/internal/authoring"
	"github.com/phrazzld/docgen/internal/breaker"
	"github.com/phrazzld/docgen/internal/config"
	"github.com/phrazzld/docgen/internal/domain/keys"
	"github.com/phrazzld/docgen/internal/events"
	"github.com/phrazzld/docgen/internal/identity"
	"github.com/phrazzld/docgen/internal/metrics"
	"github.com/phrazzld/docgen/internal/placeholder"
	"github.com/phrazzld/docgen/internal/platform/gdocs"
	"github.com/phrazzld/docgen/internal/platform/memory"
	"github.com/phrazzld/docgen/internal/platform/natsbus"
	"github.com/phrazzld/docgen/internal/platform/postgres"
	"github.com/phrazzld/docgen/internal/retry"
	"github.com/phrazzld/docgen/internal/service"
	"github.com/phrazzld/docgen/internal/service/auth"
	"github.com/phrazzld/docgen/internal/store"
	"github.com/phrazzld/docgen/internal/task"
	"golang.org/x/sync/errgroup"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	stores stores

	jwtService      auth.JWTService
	templateService service.TemplateService
	documentService service.DocumentService
	orchestrator    *task.Orchestrator
	authoring       *authoring.Guarded

	broadcaster *events.Broadcaster
	publisher   *natsbus.Publisher
	metrics     *metrics.Prometheus
}

// stores groups the persistence backends of one run.
type stores struct {
	templates store.TemplateStore
	documents store.DocumentStore
	clients   store.ClientStore
	tasks     task.TaskStore
}

// newApplication creates a new application instance with all dependencies
// initialized. Resources opened before a failure are released.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		metrics: metrics.NewPrometheus(),
	}
	initialized := false
	defer func() {
		if !initialized {
			app.cleanup()
		}
	}()

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	if err := app.setupStores(ctx); err != nil {
		return nil, err
	}

	client, err := newAuthoringClient(ctx, cfg.Authoring, logger)
	if err != nil {
		return nil, err
	}
	app.authoring = authoring.NewGuarded(client, breaker.New(breaker.Settings{
		Name:      "authoring",
		Threshold: cfg.Breaker.Threshold,
		Window:    cfg.Breaker.Window,
		Cooldown:  cfg.Breaker.Cooldown,
		IsFailure: authoring.IsDownstreamFailure,
		OnStateChange: func(name string, from, to breaker.State) {
			app.metrics.CircuitStateChanged(name, to)
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	}))

	sink, err := app.setupEvents()
	if err != nil {
		return nil, err
	}

	normalizer := keys.NewNormalizer(keys.DefaultFallback)
	registry := placeholder.NewRegistry(normalizer, logger)

	app.orchestrator = task.NewOrchestrator(task.Deps{
		Templates:  app.stores.templates,
		Documents:  app.stores.documents,
		Tasks:      app.stores.tasks,
		Registry:   registry,
		Identity:   identity.NewEngine(app.stores.clients, nil, logger),
		Normalizer: normalizer,
		Authoring:  app.authoring,
		Sink:       sink,
		Metrics:    app.metrics,
	}, retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		BaseDelay:      cfg.Retry.BaseDelay,
		MaxDelay:       cfg.Retry.MaxDelay,
		AttemptTimeout: cfg.Retry.AttemptTimeout,
		Jitter:         cfg.Retry.Jitter,
	}, task.TaskRunnerConfig{
		WorkerCount:            cfg.Task.WorkerCount,
		QueueSize:              cfg.Task.QueueSize,
		StuckTaskAge:           cfg.Task.StuckTaskAge,
		StuckTaskCheckInterval: cfg.Task.StuckTaskCheckInterval,
	}, logger)

	app.templateService, err = service.NewTemplateService(app.stores.templates, registry, app.authoring, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create template service: %w", err)
	}
	app.documentService, err = service.NewDocumentService(app.stores.documents, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create document service: %w", err)
	}

	initialized = true
	logger.Info("application initialized successfully")
	return app, nil
}

// setupStores opens the configured persistence backend.
func (app *application) setupStores(ctx context.Context) error {
	switch app.config.Database.Store {
	case "memory":
		app.logger.Warn("using in-memory store, data is lost on restart")
		app.stores = stores{
			templates: memory.NewTemplateStore(),
			documents: memory.NewDocumentStore(),
			clients:   memory.NewClientStore(),
			tasks:     memory.NewTaskStore(),
		}
		return nil
	case "postgres":
		db, err := openDatabase(ctx, app.config.Database.URL, app.logger)
		if err != nil {
			return err
		}
		app.db = db
		app.stores = stores{
			templates: postgres.NewPostgresTemplateStore(db, app.logger),
			documents: postgres.NewPostgresDocumentStore(db, app.logger),
			clients:   postgres.NewPostgresClientStore(db, app.logger),
			tasks:     postgres.NewPostgresTaskStore(db, app.logger),
		}
		return nil
	default:
		return fmt.Errorf("unknown store %q", app.config.Database.Store)
	}
}

// newAuthoringClient returns the Google Docs client, or the in-memory fake
// when no credentials are configured.
func newAuthoringClient(ctx context.Context, cfg config.AuthoringConfig, logger *slog.Logger) (authoring.Client, error) {
	if cfg.CredentialsFile == "" {
		logger.Warn("no authoring credentials configured, using in-memory authoring client",
			"source_dir", cfg.SourceDir)
		return memory.NewAuthoringClient(cfg.SourceDir), nil
	}

	client, err := gdocs.New(ctx, gdocs.Config{
		CredentialsFile: cfg.CredentialsFile,
		OutputFolderID:  cfg.OutputFolderID,
		RateLimit:       cfg.RateLimit,
		Burst:           cfg.Burst,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize google docs client: %w", err)
	}
	return client, nil
}

// setupEvents creates the progress broadcaster and, when configured, the
// NATS publisher, and returns the sink the orchestrator publishes to.
func (app *application) setupEvents() (events.Sink, error) {
	cfg := app.config.Events
	app.broadcaster = events.NewBroadcaster(cfg.BufferSize, app.logger)
	if cfg.NATSURL == "" {
		return app.broadcaster, nil
	}

	conn, err := natsbus.Connect(cfg.NATSURL, "docgen", app.logger)
	if err != nil {
		return nil, err
	}
	app.publisher = natsbus.NewPublisher(conn, cfg.SubjectPrefix, "", app.logger)
	app.logger.Info("publishing progress events to nats", "subject", app.publisher.WildcardSubject())

	return events.NewMultiSink(app.logger,
		app.broadcaster,
		events.WithBudget(app.publisher, cfg.LatencyBudget, app.logger),
	), nil
}

// Run starts the generation workers and the HTTP server and blocks until ctx
// is cancelled or either fails.
func (app *application) Run(ctx context.Context) error {
	if err := app.orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	defer app.orchestrator.Stop()

	// Request contexts end at shutdown so open progress streams return.
	baseCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelRequests)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	app.logger.Info("server shutdown completed")
	return err
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.publisher != nil {
		if err := app.publisher.Close(app.config.Events.LatencyBudget); err != nil {
			app.logger.Error("error closing nats connection", "error", err)
		}
		app.publisher = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
		app.db = nil
	}
}
