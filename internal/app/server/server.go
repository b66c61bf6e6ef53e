package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"appraze/internal/domain/audit"
	"appraze/internal/domain/auth"
	"appraze/internal/domain/billing"
	"appraze/internal/domain/employees"
	"appraze/internal/domain/generation"
	"appraze/internal/domain/notifications"
	"appraze/internal/domain/profiles"
	"appraze/internal/domain/reviews"
	"appraze/internal/domain/teams"
	"appraze/internal/platform/config"
	"appraze/internal/platform/crypto"
	"appraze/internal/platform/db"
	"appraze/internal/platform/email"
	"appraze/internal/platform/jobs"
	"appraze/internal/platform/llm"
	"appraze/internal/platform/metrics"
	"appraze/internal/platform/payments"
	"appraze/internal/platform/queue"
	"appraze/internal/transport/http/api"
	audithandler "appraze/internal/transport/http/handlers/audit"
	authhandler "appraze/internal/transport/http/handlers/auth"
	billinghandler "appraze/internal/transport/http/handlers/billing"
	employeehandler "appraze/internal/transport/http/handlers/employees"
	profilehandler "appraze/internal/transport/http/handlers/profile"
	reviewhandler "appraze/internal/transport/http/handlers/reviews"
	teamhandler "appraze/internal/transport/http/handlers/team"
	"appraze/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector

	outbox *queue.Outbox
	worker *queue.Worker
	cancel context.CancelFunc
}

// New wires stores, services and handlers against a fresh pool and starts the
// background scheduler. Callers own the returned App and must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	box, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	if !box.Configured() {
		slog.Warn("DATA_ENCRYPTION_KEY not set; review content stored in plaintext")
	}

	app := &App{Config: cfg, DB: pool, Metrics: metrics.New(), Jobs: jobs.New(pool)}

	var mailer notifications.Mailer = email.New(cfg)
	if cfg.QueueEnabled() {
		app.outbox = queue.NewOutbox(cfg)
		app.worker = queue.NewWorker(cfg, mailer, app.Metrics)
		app.worker.Start()
		mailer = app.outbox
	}
	notifier := notifications.New(mailer, cfg.EmailFrom, cfg.AppURL)

	auditSvc := audit.New(pool)
	authSvc := auth.NewService(auth.NewStore(pool), notifier, cfg.JWTSecret)
	profileSvc := profiles.NewService(profiles.NewStore(pool))
	employeeSvc := employees.NewService(employees.NewStore(pool))
	teamSvc := teams.NewService(teams.NewStore(pool), notifier)

	billingSvc := billing.NewService(billing.NewStore(pool), payments.New(cfg), cfg.AppURL)
	billingSvc.Metrics = app.Metrics

	generator := generation.NewGenerator(llm.New(cfg), cfg.LLMModel)
	reviewSvc := reviews.NewService(reviews.NewStore(pool, box), employeeSvc, generator, notifier, profileSvc)
	reviewSvc.Usage = billingSvc
	reviewSvc.Metrics = app.Metrics
	reviewSvc.StaleAfter = cfg.StaleReviewAfter

	if err := scheduleJobs(app.Jobs, cfg, reviewSvc, authSvc); err != nil {
		app.Close()
		return nil, err
	}
	jobCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.Jobs.Start(jobCtx)

	billingHandler := billinghandler.NewHandler(billingSvc, auditSvc)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(app.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, authSvc))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, app.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	// Stripe signs the raw body, so the webhook sits outside rate limiting
	// and the authenticated group.
	router.Post("/api/webhook", billingHandler.HandleWebhook)
	router.Post("/api/v1/billing/webhook", billingHandler.HandleWebhook)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authhandler.NewHandler(authSvc, auditSvc).RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			profilehandler.NewHandler(profileSvc, auditSvc).RegisterRoutes(r)
			employeehandler.NewHandler(employeeSvc, auditSvc).RegisterRoutes(r)
			reviewhandler.NewHandler(reviewSvc, auditSvc).RegisterRoutes(r)
			teamhandler.NewHandler(teamSvc, profileSvc, authSvc, auditSvc).RegisterRoutes(r)
			billingHandler.RegisterRoutes(r)
			audithandler.NewHandler(auditSvc).RegisterRoutes(r)
		})
	})

	router.Mount("/", spaHandler{staticPath: cfg.FrontendDir, indexPath: "index.html"})
	app.Router = router
	return app, nil
}

func scheduleJobs(svc *jobs.Service, cfg config.Config, reviewSvc *reviews.Service, authSvc *auth.Service) error {
	sweep := func(ctx context.Context) (any, error) {
		n, err := reviewSvc.SweepStale(ctx)
		return map[string]any{"reset": n}, err
	}
	if err := svc.Schedule(cfg.ReviewSweepSchedule, jobs.JobReviewSweep, sweep); err != nil {
		return err
	}
	cleanup := func(ctx context.Context) (any, error) {
		n, err := authSvc.CleanupExpired(ctx)
		return map[string]any{"deleted": n}, err
	}
	return svc.Schedule(cfg.CleanupSchedule, jobs.JobTokenCleanup, cleanup)
}

func (a *App) Close() {
	if a.Jobs != nil {
		a.Jobs.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.outbox != nil {
		if err := a.outbox.Close(); err != nil {
			slog.Warn("outbox close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config) error {
	configureLogging(cfg.LogLevel)

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("appraze server listening", "addr", cfg.Addr, "env", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func configureLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

type spaHandler struct {
	staticPath string
	indexPath  string
}

// ServeHTTP serves built frontend assets and falls back to index.html so
// client-side routes survive a reload. Unknown /api paths stay 404.
func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		api.Fail(w, http.StatusNotFound, "not_found", "route not found", middleware.GetRequestID(r.Context()))
		return
	}

	path := filepath.Join(h.staticPath, filepath.Clean("/"+r.URL.Path))
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
		return
	}
	if err == nil || os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	http.NotFound(w, r)
}
