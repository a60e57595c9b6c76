package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-indexd/internal/buildindex"
	"github.com/dshills/gocontext-indexd/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvDBPath, config.EnvWorkers, config.EnvMultiProcess,
		config.EnvHTTPAddr, config.EnvLogLevel,
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "roots:\n  - /tmp/project\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/tmp/project"}, cfg.Roots)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.NotEmpty(t, cfg.UserDataPath)
	assert.Equal(t, filepath.Join(cfg.UserDataPath, "index.db"), cfg.DBPath)
	assert.NotEmpty(t, cfg.AppPath)
	assert.Equal(t, buildindex.DefaultTuning(), cfg.BuildTuning())
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.MultiProcess)
}

func TestLoad_ParsesTuning(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `workers: 3
multi_process: true
tuning:
  tick_interval: 5ms
  drain_budget: 1s
  backpressure_threshold: 4
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.True(t, cfg.MultiProcess)
	tuning := cfg.BuildTuning()
	assert.Equal(t, 5*time.Millisecond, tuning.TickInterval)
	assert.Equal(t, time.Second, tuning.DrainBudget)
	assert.Equal(t, 4, tuning.BackpressureThreshold)
	assert.Equal(t, buildindex.DefaultTuning().BackpressureSleep, tuning.BackpressureSleep)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "wrokers: 3\n")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "workers: 2\nhttp_addr: \":9000\"\n")
	t.Setenv(config.EnvWorkers, "7")
	t.Setenv(config.EnvHTTPAddr, "127.0.0.1:8181")
	t.Setenv(config.EnvMultiProcess, "true")
	t.Setenv(config.EnvDBPath, "/tmp/override.db")
	t.Setenv(config.EnvLogLevel, "debug")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, "127.0.0.1:8181", cfg.HTTPAddr)
	assert.True(t, cfg.MultiProcess)
	assert.Equal(t, "/tmp/override.db", cfg.DBPath)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric workers", map[string]string{config.EnvWorkers: "many"}},
		{"zero workers", map[string]string{config.EnvWorkers: "0"}},
		{"bad bool", map[string]string{config.EnvMultiProcess: "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg config.Config
			err := cfg.ApplyEnv(func(key string) string { return tt.env[key] })
			assert.Error(t, err)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range tests {
		cfg := config.Config{LogLevel: name}
		assert.Equal(t, want, cfg.SlogLevel(), name)
	}
}

func TestIndexerConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "workers: 4\ninclude_tests: true\nlog_file: /tmp/w.log\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	ic := cfg.IndexerConfig()
	assert.Equal(t, 4, ic.Workers)
	assert.True(t, ic.IncludeTests)
	assert.False(t, ic.IncludeVendor)
	assert.Equal(t, "/tmp/w.log", ic.LogFile)
	assert.Equal(t, cfg.UserDataPath, ic.UserDataPath)
	assert.Equal(t, cfg.AppPath, ic.AppPath)
}
