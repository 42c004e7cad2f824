package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/infra/cache"
	"immersion-stats/internal/infra/config"
	applog "immersion-stats/internal/infra/log"
	"immersion-stats/internal/infra/metrics"
	"immersion-stats/internal/infra/queue"
	"immersion-stats/internal/usecase/logevents"
	"immersion-stats/internal/usecase/stats"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("worker: не указан адрес Redis (REDIS_ADDR)")
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: Redis недоступен")
	}

	var events domain.LogEventQueue
	switch cfg.Queues.Backend {
	case "redis":
		events = queue.NewRedisLogEventQueue(rdb, cfg.Queues.LogEvents)
	case "rabbitmq":
		if cfg.RabbitMQURL == "" {
			logger.Fatal().Msg("worker: не указан адрес RabbitMQ (RABBITMQ_URL)")
		}
		events, err = queue.NewRabbitLogEventQueue(cfg.RabbitMQURL, cfg.Queues.LogEvents)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: не удалось инициализировать очередь RabbitMQ")
		}
	default:
		logger.Fatal().Str("backend", cfg.Queues.Backend).Msg("worker: неизвестный QUEUE_BACKEND")
	}
	defer events.Close()

	// Воркеру нужен только сброс версии кеша, источник записей не читается.
	statsService := stats.NewService(nil, nil, cache.NewRedis(rdb), nil, stats.Config{}, logger)

	logger.Info().Str("backend", cfg.Queues.Backend).Msg("worker: запуск обработки очереди")
	logevents.NewWorker(events, statsService, logger).Run(ctx)
	logger.Info().Msg("worker: остановлен")
}
