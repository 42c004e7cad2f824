package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProcessDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://localhost/immersion")
	cfg, err := Process()
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.AppEnv)
	require.Equal(t, "UTC", cfg.TZDefault)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "rabbitmq", cfg.Queues.Backend)
	require.Equal(t, "log_events", cfg.Queues.LogEvents)
	require.Equal(t, "postgres", cfg.Records.Source)
	require.Equal(t, 10*time.Second, cfg.Records.APITimeout)
	require.Equal(t, 5*time.Minute, cfg.Stats.CacheTTL)
	require.Equal(t, "postgres://localhost/immersion", cfg.PGDSN)
}

func TestProcessOverrides(t *testing.T) {
	t.Setenv("TZ_DEFAULT", "Asia/Tokyo")
	t.Setenv("RECORD_SOURCE", "api")
	t.Setenv("UPSTREAM_CACHE_TTL", "1m")
	t.Setenv("RECORD_DAILY_TOTALS", "true")
	cfg, err := Process()
	require.NoError(t, err)
	require.Equal(t, "Asia/Tokyo", cfg.TZDefault)
	require.Equal(t, "api", cfg.Records.Source)
	require.Equal(t, time.Minute, cfg.Records.APICacheTTL)
	require.True(t, cfg.Records.DailyTotals)
}

func TestProcessRejectsBadDuration(t *testing.T) {
	t.Setenv("STATS_CACHE_TTL", "soon")
	_, err := Process()
	require.Error(t, err)
}
