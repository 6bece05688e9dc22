package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frontdesk-backend-go/internal/config"
	"frontdesk-backend-go/internal/db"
	httpapi "frontdesk-backend-go/internal/http"
	"frontdesk-backend-go/internal/logging"
	"frontdesk-backend-go/internal/migrations"
	"frontdesk-backend-go/internal/notify"
	"frontdesk-backend-go/internal/services"
	"frontdesk-backend-go/internal/store"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type kvStore interface {
	services.KV
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, flush, err := logging.New(logging.Options{
		Level:         cfg.LogLevel,
		Format:        cfg.LogFormat,
		Service:       "frontdesk-api",
		Dir:           cfg.LogDir,
		RetentionDays: cfg.LogRetentionDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	defer database.Close()
	if err := migrations.Apply(ctx, database, cfg.MigrationsDir, logger); err != nil {
		logger.Fatal("migrations", zap.Error(err))
	}
	pg := store.New(database)

	kv := openKV(ctx, cfg, logger)
	defer kv.Close()

	sender, closeSender, err := openNotifier(cfg, logger)
	if err != nil {
		logger.Fatal("notifier", zap.String("driver", cfg.NotifyDriver), zap.Error(err))
	}
	defer closeSender()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	instruments := services.NewInstruments(registry)

	if err := os.MkdirAll(cfg.MediaStoragePath, 0o755); err != nil {
		logger.Fatal("media storage", zap.String("path", cfg.MediaStoragePath), zap.Error(err))
	}
	loc := cfg.Location()
	tokens := httpapi.NewTokenService(cfg)
	media := &services.DiskStorage{BasePath: cfg.MediaStoragePath, PublicBaseURL: cfg.PublicBaseURL, Assets: pg}
	hub := services.NewEventHub()
	go hub.Run(ctx)

	resolver := services.NewResolver(pg, logger,
		services.EmployeeProvider{Employees: pg, Condominiums: pg},
		services.SuperUserProvider{Condominiums: pg},
	)
	sessions := &services.SessionManager{
		KV:           kv,
		Auth:         resolver,
		Condominiums: pg,
		Logger:       logger,
		Metrics:      instruments,
		TTL:          cfg.SessionTTL(),
	}
	deliveries := &services.DeliveryService{
		Deliveries:    pg,
		Residents:     pg,
		Photos:        media,
		Mirror:        &services.DeliveryMirror{KV: kv},
		Notifier:      sender,
		Renderer:      notify.Renderer{Location: loc, CondominiumName: cfg.CondominiumName},
		Events:        hub,
		Metrics:       instruments,
		Logger:        logger,
		NotifyTimeout: cfg.NotifyTimeout(),
		PendingLimit:  cfg.PendingListLimit,
	}

	server := &httpapi.Server{
		Config:     cfg,
		Tokens:     tokens,
		Sessions:   sessions,
		Deliveries: deliveries,
		Reports:    &services.ReportService{Store: pg, Limit: cfg.PendingListLimit, Location: loc},
		Admin:      &services.AdminService{Store: pg, Condominiums: pg, Tokens: tokens},
		Media:      media,
		Events:     hub,
		Checks: map[string]httpapi.Check{
			"postgres": pg.Ping,
			"kv":       kv.Ping,
			"disk":     httpapi.DiskCheck(cfg.MediaStoragePath, cfg.MinFreeDiskMB),
		},
		Registry: registry,
		Logger:   logger,
	}
	go hostSampleLoop(ctx, cfg, instruments, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	deliveries.Drain()
	logger.Info("shutdown complete")
}

// openKV uses Redis when REDIS_ADDR is set and falls back to process memory.
func openKV(ctx context.Context, cfg config.Config, logger *zap.Logger) kvStore {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, sessions live in process memory")
		return store.NewMemoryKV()
	}
	kv := store.NewRedisKV(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := kv.Ping(pingCtx); err != nil {
		logger.Warn("redis not reachable at start-up", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return kv
}

func openNotifier(cfg config.Config, logger *zap.Logger) (notify.Sender, func(), error) {
	timeout := cfg.NotifyTimeout()
	switch cfg.NotifyDriver {
	case "webhook":
		if cfg.NotifyWebhookURL == "" {
			logger.Warn("NOTIFY_WEBHOOK_URL not set, notifications are only logged")
			return notify.Log{Logger: logger}, func() {}, nil
		}
		cb := config.NewCircuitBreaker("notify-webhook", 30*time.Second, logger)
		return notify.NewWebhook(cfg.NotifyWebhookURL, timeout, cb, logger), func() {}, nil
	case "amqp":
		sender, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue, config.NewCircuitBreaker("notify-amqp", 30*time.Second, logger))
		if err != nil {
			return nil, nil, err
		}
		return sender, func() { _ = sender.Close() }, nil
	case "mqtt":
		sender, err := notify.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			return nil, nil, err
		}
		return sender, func() { _ = sender.Close() }, nil
	case "none", "log":
		return notify.Log{Logger: logger}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown notify driver %q", cfg.NotifyDriver)
	}
}

func hostSampleLoop(ctx context.Context, cfg config.Config, instruments *services.Instruments, logger *zap.Logger) {
	period := time.Duration(cfg.MetricsSampleSeconds) * time.Second
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sample, err := services.CaptureHost(cfg.MediaStoragePath)
			if err != nil {
				logger.Warn("host sample", zap.Error(err))
			}
			instruments.ObserveHost(sample)
		case <-ctx.Done():
			return
		}
	}
}
