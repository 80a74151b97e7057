package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 5, cfg.LockAttempts)
	require.Equal(t, 600*time.Millisecond, cfg.LockBackoff)
	require.Equal(t, 0.01, cfg.ToleranceSmallBand)
	require.Equal(t, 0.005, cfg.ToleranceLargeBand)
	require.Equal(t, int64(10_000_000), cfg.ToleranceBoundaryMsat)
	require.Equal(t, 30*time.Second, cfg.MonitorPollInterval)
	require.Equal(t, 5*time.Minute, cfg.MonitorTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOCK_ATTEMPTS", "3")
	t.Setenv("LOCK_BACKOFF", "100ms")
	t.Setenv("TOLERANCE_BOUNDARY_MSAT", "5000000")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 3, cfg.LockAttempts)
	require.Equal(t, 100*time.Millisecond, cfg.LockBackoff)
	require.Equal(t, int64(5_000_000), cfg.ToleranceBoundaryMsat)
	require.True(t, cfg.IsProduction())
	require.False(t, cfg.IsDevelopment())
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("LOCK_ATTEMPTS", "not-a-number")
	t.Setenv("MONITOR_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 5, cfg.LockAttempts)
	require.Equal(t, 5*time.Minute, cfg.MonitorTimeout)
}
