package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/stanstork/mapscrape-api/internal/actor"
	"github.com/stanstork/mapscrape-api/internal/batch"
	"github.com/stanstork/mapscrape-api/internal/config"
	"github.com/stanstork/mapscrape-api/internal/executor"
	"github.com/stanstork/mapscrape-api/internal/handlers"
	"github.com/stanstork/mapscrape-api/internal/middleware"
	"github.com/stanstork/mapscrape-api/internal/migration"
	"github.com/stanstork/mapscrape-api/internal/repository"
	"github.com/stanstork/mapscrape-api/internal/routes"
	"github.com/stanstork/mapscrape-api/internal/temporal"
	"github.com/stanstork/mapscrape-api/internal/temporal/activities"
	"github.com/stanstork/mapscrape-api/internal/temporal/workflows"

	_ "github.com/lib/pq" // PostgreSQL driver
	tc "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

type application struct {
	config         *config.Config
	db             *sql.DB
	temporalClient tc.Client
	actorClient    *actor.Client
	runs           repository.RunRepository
	logger         zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	goose.SetLogger(migration.NewGooseAdapter(logger))

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	temporalClient, err := tc.Dial(tc.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporal.NewZerologAdapter(logger),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Unable to create Temporal client")
	}
	defer temporalClient.Close()

	app := &application{
		config:         cfg,
		db:             db,
		temporalClient: temporalClient,
		actorClient:    newActorClient(cfg, logger),
		runs:           repository.NewRunRepository(db),
		logger:         logger,
	}

	temporalWorker := app.startTemporalWorker(logger)

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.Logging(logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.CORSOrigins),
		h.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	app.startServer(corsHandler, temporalWorker, logger)

	logger.Info().Msg("Application terminated.")
}

func newActorClient(cfg *config.Config, logger zerolog.Logger) *actor.Client {
	actorCfg := actor.DefaultConfig()
	actorCfg.BaseURL = cfg.Actor.BaseURL
	actorCfg.ActorID = cfg.Actor.ActorID
	actorCfg.PlatformValue = cfg.Actor.PlatformValue
	actorCfg.AppValue = cfg.Actor.AppValue
	actorCfg.Timeout = cfg.Actor.Timeout

	creds := actor.Credentials{
		APIToken: cfg.Auth.APIToken,
		TokenSource: actor.NewTokenSource(context.Background(), actor.OAuth2Config{
			ClientID:     cfg.Auth.OAuth2.ClientID,
			ClientSecret: cfg.Auth.OAuth2.ClientSecret,
			TokenURL:     cfg.Auth.OAuth2.TokenURL,
			AccessToken:  cfg.Auth.OAuth2.AccessToken,
			RefreshToken: cfg.Auth.OAuth2.RefreshToken,
		}),
	}
	return actor.NewClient(actorCfg, creds, actor.WithLogger(logger))
}

// newRunner wires the actor client into a batch runner. Extra executor options
// apply to every row the runner executes.
func (app *application) newRunner(opts ...executor.Opt) *batch.Runner {
	opts = append([]executor.Opt{executor.WithPollInterval(app.config.Actor.PollInterval)}, opts...)
	executorFor := func(call actor.CallOptions) batch.Executor {
		return executor.New(app.actorClient.WithCall(call), app.logger, opts...)
	}
	return batch.NewRunner(app.actorClient.ActorID(), executorFor, app.runs, app.logger)
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	authHandler := handlers.NewAuthHandler(app.config.JWTSecret, logger)
	scrapeHandler := handlers.NewScrapeHandler(app.newRunner(), app.temporalClient, logger)
	runHandler := handlers.NewRunHandler(app.runs, logger)

	return routes.NewRouter(authHandler, scrapeHandler, runHandler)
}

func (app *application) startTemporalWorker(logger zerolog.Logger) worker.Worker {
	activityImpl := &activities.Activities{
		Runner: app.newRunner(executor.WithPollHook(activities.Heartbeat)),
	}

	w := worker.New(app.temporalClient, temporal.TaskQueueName, worker.Options{})

	w.RegisterWorkflow(workflows.ScrapeBatchWorkflow)
	w.RegisterActivity(activityImpl)

	// Start the worker in a goroutine so it doesn't block.
	go func() {
		logger.Info().Msg("Starting Temporal worker...")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("Unable to start worker")
		}
	}()

	return w
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, temporalWorker worker.Worker, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	logger.Info().Msg("Stopping Temporal worker...")
	temporalWorker.Stop()
	logger.Info().Msg("Temporal worker stopped.")
}
