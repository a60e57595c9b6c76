package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/gocontext-indexd/internal/buildindex"
	"github.com/dshills/gocontext-indexd/internal/indexer"
)

// Config holds all configuration loaded from config.yaml and the environment.
type Config struct {
	DBPath        string   `yaml:"db_path"`
	UserDataPath  string   `yaml:"user_data_path"`
	AppPath       string   `yaml:"app_path"`
	LogFile       string   `yaml:"log_file"`
	LogLevel      string   `yaml:"log_level"`
	HTTPAddr      string   `yaml:"http_addr"`
	Workers       int      `yaml:"workers"`
	MultiProcess  bool     `yaml:"multi_process"`
	IncludeTests  bool     `yaml:"include_tests"`
	IncludeVendor bool     `yaml:"include_vendor"`
	Schedule      string   `yaml:"schedule"`
	Roots         []string `yaml:"roots"`
	Tuning        Tuning   `yaml:"tuning"`
}

// Tuning mirrors buildindex.Tuning with YAML durations.
type Tuning struct {
	TickInterval          time.Duration `yaml:"tick_interval"`
	BackpressureSleep     time.Duration `yaml:"backpressure_sleep"`
	DrainBudget           time.Duration `yaml:"drain_budget"`
	BackpressureThreshold int           `yaml:"backpressure_threshold"`
	WorkerBacklog         int           `yaml:"worker_backlog"`
	WorkerPoll            time.Duration `yaml:"worker_poll"`
}

// Environment variables recognised by ApplyEnv.
const (
	EnvDBPath       = "GOCONTEXT_DB_PATH"
	EnvWorkers      = "GOCONTEXT_WORKERS"
	EnvMultiProcess = "GOCONTEXT_MULTI_PROCESS"
	EnvHTTPAddr     = "GOCONTEXT_HTTP_ADDR"
	EnvLogLevel     = "GOCONTEXT_LOG_LEVEL"
)

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.UserDataPath == "" {
		c.UserDataPath = defaultDataDir()
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.UserDataPath, "index.db")
	}
	if c.AppPath == "" {
		c.AppPath = executableDir()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	d := buildindex.DefaultTuning()
	if c.Tuning.TickInterval <= 0 {
		c.Tuning.TickInterval = d.TickInterval
	}
	if c.Tuning.BackpressureSleep <= 0 {
		c.Tuning.BackpressureSleep = d.BackpressureSleep
	}
	if c.Tuning.DrainBudget <= 0 {
		c.Tuning.DrainBudget = d.DrainBudget
	}
	if c.Tuning.BackpressureThreshold <= 0 {
		c.Tuning.BackpressureThreshold = d.BackpressureThreshold
	}
	if c.Tuning.WorkerBacklog <= 0 {
		c.Tuning.WorkerBacklog = d.WorkerBacklog
	}
	if c.Tuning.WorkerPoll <= 0 {
		c.Tuning.WorkerPoll = d.WorkerPoll
	}
}

// Load reads and parses the YAML config file at path, then overlays the
// environment. A missing file yields the defaults. An empty path skips the
// file entirely.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays values returned by getenv on top of the config.
// Empty values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvDBPath)); v != "" {
		c.DBPath = v
	}
	if v := strings.TrimSpace(getenv(EnvHTTPAddr)); v != "" {
		c.HTTPAddr = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(getenv(EnvWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid %s %q: must be a positive integer", EnvWorkers, v)
		}
		c.Workers = n
	}
	if v := strings.TrimSpace(getenv(EnvMultiProcess)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMultiProcess, v, err)
		}
		c.MultiProcess = b
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog.Level; unknown names are info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BuildTuning converts the tuning section for the build task.
func (c *Config) BuildTuning() buildindex.Tuning {
	return buildindex.Tuning{
		TickInterval:          c.Tuning.TickInterval,
		BackpressureSleep:     c.Tuning.BackpressureSleep,
		DrainBudget:           c.Tuning.DrainBudget,
		BackpressureThreshold: c.Tuning.BackpressureThreshold,
		WorkerBacklog:         c.Tuning.WorkerBacklog,
		WorkerPoll:            c.Tuning.WorkerPoll,
	}
}

// IndexerConfig returns the indexer settings of this config.
func (c *Config) IndexerConfig() indexer.Config {
	return indexer.Config{
		Workers:       c.Workers,
		MultiProcess:  c.MultiProcess,
		IncludeTests:  c.IncludeTests,
		IncludeVendor: c.IncludeVendor,
		AppPath:       c.AppPath,
		UserDataPath:  c.UserDataPath,
		LogFile:       c.LogFile,
		Tuning:        c.BuildTuning(),
	}
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "gocontext")
	}
	return filepath.Join(os.TempDir(), "gocontext")
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
