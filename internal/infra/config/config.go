package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZDefault   string `envconfig:"TZ_DEFAULT" default:"UTC"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	APIToken    string `envconfig:"API_TOKEN"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitMQURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Backend   string `envconfig:"QUEUE_BACKEND" default:"rabbitmq"`
		LogEvents string `envconfig:"LOG_EVENTS_QUEUE" default:"log_events"`
	} `envconfig:""`

	Records struct {
		Source      string        `envconfig:"RECORD_SOURCE" default:"postgres"`
		DailyTotals bool          `envconfig:"RECORD_DAILY_TOTALS" default:"false"`
		APIURL      string        `envconfig:"UPSTREAM_API_URL"`
		APIToken    string        `envconfig:"UPSTREAM_API_TOKEN"`
		APITimeout  time.Duration `envconfig:"UPSTREAM_API_TIMEOUT" default:"10s"`
		APICacheTTL time.Duration `envconfig:"UPSTREAM_CACHE_TTL" default:"30s"`
	} `envconfig:""`

	Stats struct {
		CacheTTL time.Duration `envconfig:"STATS_CACHE_TTL" default:"5m"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Process()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Process читает конфиг из окружения и возвращает ошибку вместо завершения процесса.
func Process() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
