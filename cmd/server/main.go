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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notifyhub/internal/cache"
	"notifyhub/internal/engine"
	"notifyhub/internal/event"
	"notifyhub/internal/integration"
	"notifyhub/internal/model"
	"notifyhub/internal/processor"
	"notifyhub/internal/repository"
	"notifyhub/internal/service"
	"notifyhub/pkg/config"
	"notifyhub/pkg/db"
	"notifyhub/pkg/logger"
	"notifyhub/pkg/mq"
	"notifyhub/pkg/redis"
	"notifyhub/pkg/util"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting notifyhub...")

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, time.Hour, log)

	// Event publisher: AMQP when a broker is configured, no-op otherwise.
	var broker *mq.Publisher
	var events event.Publisher = event.NoopPublisher{}
	if cfg.MQ.URL != "" {
		pub, err := mq.Connect(cfg.MQ.URL)
		if err != nil {
			log.Warn("MQ unavailable, lifecycle events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			broker = pub
			events = event.NewAMQPPublisher(pub, log)
		}
	}

	// Repositories, cached.
	notifStore := repository.NewNotificationRepository(dbConn)
	var notifCache cache.Cache[*model.Notification]
	if cfg.Cache.RedisBacked {
		notifCache = cache.NewRedisCache[*model.Notification](rdb, "notification", cfg.Cache.TTL.Std(), log)
	} else {
		notifCache = cache.NewMemoryCache[*model.Notification](cfg.Cache.TTL.Std(), cfg.Cache.MaxEntries)
	}
	notifRepo := cache.NewCachedRepository[*model.Notification](notifStore, notifCache)

	jobStore := repository.NewJobRepository(dbConn)

	// Engine
	eng := engine.NewEngine(jobStore, log)

	// Integration coordinator. Provider integrations are plugged in via
	// the factory; none are bundled with this binary.
	factory := integration.Factory(func(t integration.ServiceType) (integration.Service, error) {
		return nil, fmt.Errorf("no integration bundled for %q", t)
	})
	coordinator := integration.NewCoordinator(factory, notifRepo, eng, deduper, cfg.Engine.DefaultMaxRetries, log)

	svc := service.NewService(
		notifRepo,
		events,
		service.NewAgentClient(cfg.Agent.BaseURL, cfg.Agent.Timeout.Std()),
		coordinator,
		log,
	)
	coordinator.SetNotificationService(svc)

	proc := processor.NewProcessor(notifRepo, svc, events, log)
	if err := eng.RegisterHandler(proc); err != nil {
		log.Fatal("Failed to register notification processor", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go coordinator.Run(ctx, cfg.Sync.Interval.Std())

	// Metrics and health endpoint.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		mqStatus := "disabled"
		if broker != nil {
			mqStatus = "down"
			if broker.Healthy() {
				mqStatus = "ok"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","mq":%q}`, mqStatus)
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}
	go func() {
		log.Info("HTTP listener started", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP listener crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown failed", zap.Error(err))
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Warn("Engine shutdown incomplete", zap.Error(err))
	}

	log.Info("Stopped")
}
