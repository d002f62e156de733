package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-survey/internal/api/http"
	auth "github.com/mind-engage/mindengage-survey/internal/auth/middleware"
	"github.com/mind-engage/mindengage-survey/internal/config"
	"github.com/mind-engage/mindengage-survey/internal/db"
	"github.com/mind-engage/mindengage-survey/internal/logging"
	"github.com/mind-engage/mindengage-survey/internal/metrics"
	"github.com/mind-engage/mindengage-survey/internal/service"
	"github.com/mind-engage/mindengage-survey/internal/statscache"
	"github.com/mind-engage/mindengage-survey/internal/survey/sqlstore"
	syncx "github.com/mind-engage/mindengage-survey/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	log, err := logging.New(string(cfg.Mode), cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer dbh.Close()

	store := sqlstore.New(dbh)
	outbox := syncx.NewEventRepo(dbh, cfg.SiteID)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithNotifier(outbox),
		service.WithNotifyTimeout(cfg.NotifyTimeout),
	}
	if cfg.RedisAddr != "" {
		rc, err := statscache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("redis unavailable, statistics cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			defer rc.Close()
			opts = append(opts, service.WithStatsCache(statscache.NewRedis(rc, cfg.StatsCacheTTL)))
		}
	}
	svc := service.New(store, opts...)

	if cfg.AdminPassHash != "" {
		if _, err := svc.BootstrapAdmin(ctx, cfg.AdminID, cfg.AdminUser, cfg.AdminPassHash); err != nil {
			log.Fatal("bootstrap admin failed", zap.Error(err))
		}
	}

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.RequestLogger(log), middleware.Recoverer)
	if cfg.EnableMetrics {
		r.Use(metrics.Instrument)
	}
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, svc, cfg.EnableStudentLogin, log))
	}

	// Protected API (JWT → role from DB → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(store, cfg.Mode == config.ModeOffline, log))
		api.Mount(pr, api.Deps{Svc: svc, Events: outbox, Log: log})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(pingCtx); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if cfg.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}

	go svc.RunCloser(ctx, cfg.CloseSweepInterval)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()

	log.Info("listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("mode", string(cfg.Mode)),
		zap.String("db", cfg.DBDriver))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("listen", zap.Error(err))
	}
}
