package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus-sim/cyclus/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"CYCLUS_SEED", "CYCLUS_DUMP_COUNT", "CYCLUS_STEPS", "CYCLUS_LOG_LEVEL",
		"CYCLUS_SQLITE_PATH", "CYCLUS_WEBSOCKET_PUSH", "CYCLUS_HTTP_PORT",
	}
	for _, v := range vars {
		orig, had := os.LookupEnv(v)
		os.Unsetenv(v)
		t.Cleanup(func() {
			if had {
				os.Setenv(v, orig)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, int64(1), cfg.Seed)
	require.Equal(t, 120, cfg.Steps)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 8080, cfg.HTTPPort)
	require.False(t, cfg.WebSocketPush)
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	os.Setenv("CYCLUS_SEED", "7")
	os.Setenv("CYCLUS_STEPS", "30")
	os.Setenv("CYCLUS_WEBSOCKET_PUSH", "true")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, int64(7), cfg.Seed)
	require.Equal(t, 30, cfg.Steps)
	require.True(t, cfg.WebSocketPush)
}

func TestValidateRejectsNonPositiveSteps(t *testing.T) {
	cfg := &config.Config{Steps: 0, DumpCount: 10, HTTPPort: 8080}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := &config.Config{Steps: 1, DumpCount: 10, HTTPPort: 70000}
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	cfg := &config.Config{Steps: 1, DumpCount: 10, HTTPPort: 8080}
	require.NoError(t, cfg.Validate())
}
