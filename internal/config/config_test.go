package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("CLASSROOM_JWT_SECRET", "secret")
	t.Setenv("CLASSROOM_DATABASE_URL", "postgres://localhost/classroom")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 4, cfg.NotificationWorkers)
	require.Equal(t, 256, cfg.NotificationBuffer)
	require.Equal(t, 10, cfg.UploadMaxMB)
	require.Equal(t, 30*time.Second, cfg.StreamKeepAlive)
	require.Equal(t, time.UTC, cfg.SweepTimezone)
	require.Equal(t, "classroom", cfg.NotificationChannel)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("CLASSROOM_JWT_SECRET", "secret")
	t.Setenv("CLASSROOM_DATABASE_URL", "postgres://localhost/classroom")
	t.Setenv("CLASSROOM_APP_PORT", ":9090")
	t.Setenv("CLASSROOM_NOTIFICATIONS_WORKERS", "8")
	t.Setenv("CLASSROOM_SWEEP_TIMEZONE", "Asia/Jakarta")
	t.Setenv("CLASSROOM_NATS_URL", "nats://localhost:4222")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 8, cfg.NotificationWorkers)
	require.Equal(t, "Asia/Jakarta", cfg.SweepTimezone.String())
	require.Equal(t, "nats://localhost:4222", cfg.NATSURL)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("CLASSROOM_JWT_SECRET", "")
	t.Setenv("CLASSROOM_DATABASE_URL", "postgres://localhost/classroom")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("CLASSROOM_JWT_SECRET", "secret")
	t.Setenv("CLASSROOM_DATABASE_URL", "")
	_, err = Load()
	require.Error(t, err)
}
