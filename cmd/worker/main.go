package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edu-crm/internal/activities"
	"edu-crm/internal/calls"
	"edu-crm/internal/config"
	"edu-crm/internal/metrics"
	"edu-crm/internal/queue"
	"edu-crm/internal/telephony"
	"edu-crm/internal/transcription"
	"edu-crm/pkg/logger"
	"edu-crm/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
)

const (
	fetchWait = 5 * time.Second
	// slotGrace covers settling a task after its timeout fires.
	slotGrace = 30 * time.Second
)

// The worker consumes transcription tasks. It shares the API's config,
// Postgres schema and Redis, and scales out independently.
func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.ValidateWorker(); err != nil {
		slog.Error("config invalid", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "worker")
	slog.SetDefault(log)

	loc, err := time.LoadLocation(cfg.Transcription.Timezone)
	if err != nil {
		log.Error("timezone load failed", "tz", cfg.Transcription.Timezone, "err", err)
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

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("crm-worker"), nats.MaxReconnects(-1))
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
		FetchWait:  fetchWait,
		Slots: transcription.RedisLimiter{
			Client: rdb,
			Key:    "transcription:inflight",
			Limit:  cfg.Transcription.Concurrency,
			Lease:  cfg.Transcription.TaskTimeout + fetchWait + slotGrace,
		},
	}, log)
	if err != nil {
		log.Error("queue init failed", "err", err)
		os.Exit(1)
	}

	ai, err := transcription.NewOpenAIClient(transcription.OpenAIConfig{
		APIKey:             cfg.OpenAI.APIKey,
		BaseURL:            cfg.OpenAI.BaseURL,
		TranscriptionModel: cfg.OpenAI.TranscriptionModel,
		SummaryModel:       cfg.OpenAI.SummaryModel,
	})
	if err != nil {
		log.Error("openai init failed", "err", err)
		os.Exit(1)
	}

	acts := activities.NewPostgresRepo(db)
	w := &transcription.Worker{
		Logs:       calls.NewPostgresRepo(db),
		Activities: acts,
		Audio:      telephony.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, nil),
		STT:        ai,
		LLM:        ai,
		Location:   loc,
		Timeout:    cfg.Transcription.TaskTimeout,
		Metrics:    metrics.New(),
	}

	log.Info("worker consuming", "subject", cfg.NATS.Subject, "durable", cfg.NATS.Durable, "concurrency", cfg.Transcription.Concurrency)
	if err := tasks.Consume(logger.With(rootCtx, log), cfg.Transcription.Concurrency, w.Handle); err != nil {
		log.Error("consume failed", "err", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}
