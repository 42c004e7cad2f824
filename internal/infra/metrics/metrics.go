package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	StatsComputeSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stats_compute_seconds",
		Help:    "Время расчёта статистики",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	StatsRecordsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stats_records_skipped_total",
		Help: "Записи без валидного момента, пропущенные при агрегации",
	})
	StatsTimezoneFallback = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stats_timezone_fallback_total",
		Help: "Расчёты, выполненные в UTC из-за некорректного часового пояса",
	})
	StatsCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stats_cache_requests_total",
		Help: "Обращения к кешу статистики",
	}, []string{"result"})
	LogEventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "log_events_processed_total",
		Help: "Обработанные события журнала",
	}, []string{"status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		StatsComputeSeconds,
		StatsRecordsSkipped,
		StatsTimezoneFallback,
		StatsCacheRequests,
		LogEventsProcessed,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveCompute записывает время расчёта и счётчики обработки записей.
func ObserveCompute(kind string, start time.Time, skipped int, fallback bool) {
	StatsComputeSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if skipped > 0 {
		StatsRecordsSkipped.Add(float64(skipped))
	}
	if fallback {
		StatsTimezoneFallback.Inc()
	}
}

// IncCache учитывает попадание или промах кеша.
func IncCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	StatsCacheRequests.WithLabelValues(result).Inc()
}

// IncLogEvent учитывает обработанное событие журнала.
func IncLogEvent(status string) {
	LogEventsProcessed.WithLabelValues(status).Inc()
}
