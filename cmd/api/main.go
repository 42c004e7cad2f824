package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"immersion-stats/internal/adapters/apiclient"
	"immersion-stats/internal/adapters/httpapi"
	"immersion-stats/internal/adapters/repo"
	"immersion-stats/internal/domain"
	"immersion-stats/internal/infra/cache"
	"immersion-stats/internal/infra/config"
	"immersion-stats/internal/infra/db"
	httpinfra "immersion-stats/internal/infra/http"
	applog "immersion-stats/internal/infra/log"
	"immersion-stats/internal/infra/metrics"
	"immersion-stats/internal/usecase/calendar"
	"immersion-stats/internal/usecase/preferences"
	"immersion-stats/internal/usecase/stats"
)

type store interface {
	domain.RecordProvider
	domain.UserRepo
}

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	source, closeSource, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось подключить источник записей")
	}
	defer closeSource()

	var resultCache domain.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Msg("api: Redis недоступен, кеш статистики отключён")
		} else {
			resultCache = cache.NewRedis(rdb)
		}
		cancel()
	}

	clock := calendar.SystemClock{}
	statsService := stats.NewService(source, source, resultCache, clock, stats.Config{
		DefaultTimezone: cfg.TZDefault,
		CacheTTL:        cfg.Stats.CacheTTL,
		DailyTotals:     cfg.Records.DailyTotals,
	}, logger)
	prefsService := preferences.NewService(source, statsService)
	handler := httpapi.NewHandler(statsService, prefsService, clock, logger)

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	server.Router.Group(func(protected chi.Router) {
		protected.Use(httpinfra.TokenAuthMiddleware(cfg.APIToken))
		handler.Mount(protected)
	})

	go func() {
		if err := server.Start(":" + strconv.Itoa(cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки сервера")
	}
}

// openStore выбирает источник записей и пользователей по RECORD_SOURCE.
func openStore(cfg config.AppConfig, logger zerolog.Logger) (store, func(), error) {
	switch cfg.Records.Source {
	case "postgres":
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo.NewPostgres(pool), pool.Close, nil
	case "api":
		client, err := apiclient.New(cfg.Records.APIURL,
			apiclient.WithTimeout(cfg.Records.APITimeout),
			apiclient.WithToken(cfg.Records.APIToken),
			apiclient.WithCacheTTL(cfg.Records.APICacheTTL),
			apiclient.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный RECORD_SOURCE %q", cfg.Records.Source)
	}
}
