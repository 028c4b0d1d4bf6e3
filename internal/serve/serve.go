package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/corvidmail/mail-backend/internal/apptracker"
	"github.com/corvidmail/mail-backend/internal/apptracker/dryrun"
	"github.com/corvidmail/mail-backend/internal/apptracker/sentry"
	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/metrics"
	"github.com/corvidmail/mail-backend/internal/serve/auth"
	"github.com/corvidmail/mail-backend/internal/serve/httphandler"
	"github.com/corvidmail/mail-backend/internal/serve/middleware"
	"github.com/corvidmail/mail-backend/internal/services"
	"github.com/corvidmail/mail-backend/internal/utils"
	"github.com/corvidmail/mail-backend/internal/validators"
)

type Configs struct {
	Port              int
	DatabaseURL       string
	LogLevel          log.Level
	AuthJWTSecret     string
	MaxChangesPerPage int
	MaxObjectsPerPage int
	SentryDSN         string
	AppTracker        apptracker.AppTracker
}

// maxRequestBodyBytes caps JSON request bodies. Requests past the cap fail
// decoding and render as requestTooLarge.
const maxRequestBodyBytes = 1 << 20

// serverShutdownTimeout is the timeout for graceful server shutdown.
const serverShutdownTimeout = 10 * time.Second

type handlerDeps struct {
	Models         *data.Models
	SyncService    *services.SyncService
	EmailService   *services.EmailService
	MailboxService *services.MailboxService
	AuxService     *services.AuxService
	PurgeScheduler *services.PurgeScheduler
	MetricsService metrics.MetricsService
	AppTracker     apptracker.AppTracker
	JWTManager     *auth.JWTManager
	Validator      *validator.Validate
}

func Serve(cfg Configs) error {
	if cfg.AppTracker == nil {
		if cfg.SentryDSN != "" {
			tracker, err := sentry.NewSentryTracker(cfg.SentryDSN, "", 5)
			if err != nil {
				return fmt.Errorf("initializing Sentry tracker: %w", err)
			}
			cfg.AppTracker = tracker
		} else {
			cfg.AppTracker = &dryrun.DryRunTracker{}
		}
	}

	deps, cleanup, err := initHandlerDeps(cfg)
	if err != nil {
		return fmt.Errorf("initializing handler dependencies: %w", err)
	}
	defer cleanup()

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handleHTTP(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErrChan := make(chan error, 1)
	go func() {
		log.Infof("starting mail sync backend on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrChan <- err
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	select {
	case err := <-serveErrChan:
		return fmt.Errorf("running HTTP server: %w", err)
	case sig := <-signalChan:
		log.Infof("received signal %s, stopping server", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}

func initHandlerDeps(cfg Configs) (handlerDeps, func(), error) {
	ctx := context.Background()
	dbConnectionPool, err := db.OpenDBConnectionPool(cfg.DatabaseURL)
	if err != nil {
		return handlerDeps{}, nil, fmt.Errorf("connecting to the database: %w", err)
	}

	sqlxDB, err := dbConnectionPool.SqlxDB(ctx)
	if err != nil {
		return handlerDeps{}, nil, fmt.Errorf("getting sqlx.DB from the connection pool: %w", err)
	}
	metricsService := metrics.NewMetricsService(sqlxDB)
	models, err := data.NewModels(dbConnectionPool, metricsService)
	if err != nil {
		return handlerDeps{}, nil, fmt.Errorf("creating models: %w", err)
	}

	purgeScheduler := services.NewPurgeScheduler(models.QueryStates, metricsService, cfg.AppTracker)
	metricsService.RegisterPoolMetrics("query_state_purge", purgeScheduler.Pool())

	syncService := services.NewSyncService(models, services.SyncLimits{
		MaxChangesPerPage: cfg.MaxChangesPerPage,
		MaxObjectsPerPage: cfg.MaxObjectsPerPage,
	}, purgeScheduler, metricsService)

	var jwtManager *auth.JWTManager
	if cfg.AuthJWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.AuthJWTSecret)
	} else {
		log.Warn("auth-jwt-secret is empty, authentication is disabled")
	}

	deps := handlerDeps{
		Models:         models,
		SyncService:    syncService,
		EmailService:   services.NewEmailService(models, dbConnectionPool),
		MailboxService: services.NewMailboxService(models, dbConnectionPool),
		AuxService:     services.NewAuxService(models, dbConnectionPool),
		PurgeScheduler: purgeScheduler,
		MetricsService: metricsService,
		AppTracker:     cfg.AppTracker,
		JWTManager:     jwtManager,
		Validator:      validators.NewValidator(),
	}
	cleanup := func() {
		purgeScheduler.Stop()
		utils.DeferredClose(ctx, dbConnectionPool, "closing database connection pool")
	}
	return deps, cleanup, nil
}

func handleHTTP(deps handlerDeps) http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RecoverHandler(deps.AppTracker))
	mux.Use(middleware.MetricsMiddleware(deps.MetricsService))
	mux.Use(middleware.BodySizeLimit(maxRequestBodyBytes))

	mux.Get("/health", httphandler.HealthHandler{Models: deps.Models}.ServeHTTP)
	mux.Handle("/metrics", promhttp.HandlerFor(deps.MetricsService.GetRegistry(), promhttp.HandlerOpts{}))

	syncHandler := httphandler.SyncHandler{SyncService: deps.SyncService, AppTracker: deps.AppTracker}
	emailHandler := httphandler.EmailHandler{EmailService: deps.EmailService, Models: deps.Models, Validator: deps.Validator, AppTracker: deps.AppTracker}
	mailboxHandler := httphandler.MailboxHandler{MailboxService: deps.MailboxService, Models: deps.Models, Validator: deps.Validator, AppTracker: deps.AppTracker}
	auxHandler := httphandler.AuxHandler{AuxService: deps.AuxService, Validator: deps.Validator, AppTracker: deps.AppTracker}

	mux.Route("/accounts/{accountID}", func(r chi.Router) {
		r.Use(middleware.AuthenticatedMiddleware(deps.JWTManager))

		r.Get("/state", syncHandler.GlobalState)
		r.Route("/{collectionType}", func(r chi.Router) {
			r.Get("/state", syncHandler.CollectionState)
			r.Post("/changes", syncHandler.Changes)
			r.Post("/query", syncHandler.Query)
			r.Post("/queryChanges", syncHandler.QueryChanges)
		})

		r.Route("/emails", func(r chi.Router) {
			r.Post("/", emailHandler.Create)
			r.Get("/{emailID}", emailHandler.Get)
			r.Put("/{emailID}/keywords", emailHandler.UpdateKeywords)
			r.Post("/{emailID}/move", emailHandler.Move)
			r.Delete("/{emailID}", emailHandler.Destroy)
		})

		r.Route("/mailboxes", func(r chi.Router) {
			r.Post("/", mailboxHandler.Create)
			r.Get("/{mailboxID}", mailboxHandler.Get)
			r.Patch("/{mailboxID}", mailboxHandler.Update)
			r.Delete("/{mailboxID}", mailboxHandler.Destroy)
		})

		r.Route("/identities", func(r chi.Router) {
			r.Post("/", auxHandler.CreateIdentity)
			r.Delete("/{identityID}", auxHandler.DestroyIdentity)
		})

		r.Route("/emailSubmissions", func(r chi.Router) {
			r.Post("/", auxHandler.CreateSubmission)
			r.Post("/{submissionID}/cancel", auxHandler.CancelSubmission)
		})

		r.Route("/pushSubscriptions", func(r chi.Router) {
			r.Post("/", auxHandler.CreatePushSubscription)
			r.Delete("/{subscriptionID}", auxHandler.DestroyPushSubscription)
		})
	})

	return mux
}
