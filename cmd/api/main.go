package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edu-crm/internal/activities"
	"edu-crm/internal/audit"
	"edu-crm/internal/auth"
	"edu-crm/internal/calls"
	"edu-crm/internal/config"
	"edu-crm/internal/contacts"
	"edu-crm/internal/httpapi"
	"edu-crm/internal/ledger"
	"edu-crm/internal/metrics"
	"edu-crm/internal/queue"
	"edu-crm/internal/routing"
	"edu-crm/internal/transcription"
	"edu-crm/pkg/logger"
	"edu-crm/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "api")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("crm-api"), nats.MaxReconnects(-1))
	if err != nil {
		log.Error("nats connect failed", "err", err)
		os.Exit(1)
	}
	defer nc.Drain()

	tasks, err := queue.NewJetStream(nc, queue.JetStreamConfig{
		Stream:     cfg.NATS.Stream,
		Subject:    cfg.NATS.Subject,
		Durable:    cfg.NATS.Durable,
		MaxDeliver: cfg.NATS.MaxDeliver,
		AckWait:    cfg.NATS.AckWait,
	}, log)
	if err != nil {
		log.Error("queue init failed", "err", err)
		os.Exit(1)
	}

	m := metrics.New()
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	resolver := contacts.NewResolver(contacts.NewPostgresRepo(db))
	store := ledger.NewRedisStore(rdb)

	deps := apiDeps{
		cfg:        cfg,
		auth:       authManager,
		ledger:     store,
		resolver:   resolver,
		router:     routing.NewRouter(resolver, routing.AuditAdapter{Audit: auditSvc}),
		recorder:   calls.NewRecorder(calls.NewPostgresRepo(db), activities.NewPostgresRepo(db), resolver, calls.AuditAdapter{Audit: auditSvc}),
		dispatcher: transcription.NewDispatcher(store, tasks, m),
		metrics:    m,
		ready: map[string]httpapi.Check{
			"postgres": func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) },
			"redis":    func(ctx context.Context) error { return utils.RedisHealthCheck(ctx, rdb, 2*time.Second) },
		},
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerPublicRoutes(r, deps)
	registerWebhookRoutes(r, deps)
	registerProtectedRoutes(r, deps)

	// No WriteTimeout: ledger streams are long-lived and manage their own deadlines.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
