package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration. Values come from defaults, then the
// optional config file, then the environment.
type Config struct {
	HTTPPort          string
	DBPath            string
	WorkDir           string
	DropDir           string
	EnableWatcher     bool
	WorkerCount       int
	JobQueueSize      int
	JobTimeoutSec     int
	ImageModelPath    string
	TextModelDisabled bool
	KeywordsPath      string
	ReconcileSchedule string
	Timezone          string
	Location          *time.Location
	LogMode           string
	AlertWebhookURL   string
	MaxImageBytes     int64
	MaxTextChars      int
	StrictConfig      bool
	ConfigPath        string

	// Warnings collects non-fatal problems found while loading, for the
	// caller to log once a logger exists.
	Warnings []string
}

type fileConfig struct {
	HTTPPort          string `json:"http_port" yaml:"http_port"`
	DBPath            string `json:"db_path" yaml:"db_path"`
	WorkDir           string `json:"work_dir" yaml:"work_dir"`
	DropDir           string `json:"drop_dir" yaml:"drop_dir"`
	EnableWatcher     *bool  `json:"enable_watcher" yaml:"enable_watcher"`
	WorkerCount       int    `json:"worker_count" yaml:"worker_count"`
	JobQueueSize      int    `json:"job_queue_size" yaml:"job_queue_size"`
	JobTimeoutSec     int    `json:"job_timeout_sec" yaml:"job_timeout_sec"`
	ImageModelPath    string `json:"image_model_path" yaml:"image_model_path"`
	TextModelDisabled *bool  `json:"text_model_disabled" yaml:"text_model_disabled"`
	KeywordsPath      string `json:"keywords_path" yaml:"keywords_path"`
	ReconcileSchedule string `json:"reconcile_schedule" yaml:"reconcile_schedule"`
	Timezone          string `json:"timezone" yaml:"timezone"`
	LogMode           string `json:"log_mode" yaml:"log_mode"`
	AlertWebhookURL   string `json:"alert_webhook_url" yaml:"alert_webhook_url"`
	MaxImageBytes     int64  `json:"max_image_bytes" yaml:"max_image_bytes"`
	MaxTextChars      int    `json:"max_text_chars" yaml:"max_text_chars"`
}

const (
	defaultPort              = ":8000"
	defaultWorkDir           = "runtime"
	defaultDBFile            = "ecosort.db"
	defaultDropDir           = "runtime/drop"
	minQueueSize             = 1
	defaultQueueSize         = 100
	maxQueueSize             = 1024
	defaultWorkerCount       = 2
	defaultJobTimeoutSec     = 30
	defaultReconcileSchedule = "15 0 * * *"
	defaultTimezone          = "UTC"
	defaultMaxImageBytes     = 10 << 20
	defaultMaxTextChars      = 1000
)

// Load reads configuration from environment variables and applies sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		WorkerCount:   defaultWorkerCount,
		JobQueueSize:  defaultQueueSize,
		JobTimeoutSec: defaultJobTimeoutSec,
		MaxImageBytes: defaultMaxImageBytes,
		MaxTextChars:  defaultMaxTextChars,
		EnableWatcher: false,
		StrictConfig:  parseBoolEnv("STRICT_CONFIG"),
	}

	cfg.ConfigPath = getEnv("CONFIG_PATH", filepath.Join("config", "config.yaml"))
	fileCfg, fileErr := loadFileConfig(cfg.ConfigPath)
	if fileErr != nil {
		if cfg.StrictConfig && !errors.Is(fileErr, os.ErrNotExist) {
			return cfg, fmt.Errorf("config load failed (%s): %w", cfg.ConfigPath, fileErr)
		}
		if !errors.Is(fileErr, os.ErrNotExist) {
			cfg.warnf("config load failed (%s): %v (using defaults)", cfg.ConfigPath, fileErr)
		}
	}

	cfg.WorkDir = firstNonEmpty(os.Getenv("WORK_DIR"), fileCfg.WorkDir, defaultWorkDir)
	cfg.DBPath = firstNonEmpty(os.Getenv("DB_PATH"), fileCfg.DBPath, filepath.Join(cfg.WorkDir, defaultDBFile))
	cfg.DropDir = firstNonEmpty(os.Getenv("DROP_DIR"), fileCfg.DropDir, defaultDropDir)
	cfg.ImageModelPath = firstNonEmpty(os.Getenv("IMAGE_MODEL_PATH"), fileCfg.ImageModelPath)
	cfg.KeywordsPath = firstNonEmpty(os.Getenv("KEYWORDS_PATH"), fileCfg.KeywordsPath)
	cfg.ReconcileSchedule = firstNonEmpty(os.Getenv("RECONCILE_SCHEDULE"), fileCfg.ReconcileSchedule, defaultReconcileSchedule)
	cfg.Timezone = firstNonEmpty(os.Getenv("TIMEZONE"), fileCfg.Timezone, defaultTimezone)
	cfg.LogMode = firstNonEmpty(os.Getenv("LOG_MODE"), fileCfg.LogMode, "dev")
	cfg.AlertWebhookURL = firstNonEmpty(os.Getenv("ALERT_WEBHOOK_URL"), fileCfg.AlertWebhookURL)

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), fileCfg.HTTPPort, defaultPort)
	if legacyPort := os.Getenv("PORT"); legacyPort != "" && cfg.HTTPPort == defaultPort {
		cfg.HTTPPort = legacyPort
	}
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	if fileCfg.EnableWatcher != nil {
		cfg.EnableWatcher = *fileCfg.EnableWatcher
	}
	cfg.EnableWatcher = parseBoolEnvDefault("ENABLE_WATCHER", cfg.EnableWatcher)
	if fileCfg.TextModelDisabled != nil {
		cfg.TextModelDisabled = *fileCfg.TextModelDisabled
	}
	cfg.TextModelDisabled = parseBoolEnvDefault("TEXT_MODEL_DISABLED", cfg.TextModelDisabled)

	if fileCfg.WorkerCount > 0 {
		cfg.WorkerCount = fileCfg.WorkerCount
	}
	if fileCfg.JobQueueSize > 0 {
		cfg.JobQueueSize = fileCfg.JobQueueSize
	}
	if fileCfg.JobTimeoutSec > 0 {
		cfg.JobTimeoutSec = fileCfg.JobTimeoutSec
	}
	if fileCfg.MaxImageBytes > 0 {
		cfg.MaxImageBytes = fileCfg.MaxImageBytes
	}
	if fileCfg.MaxTextChars > 0 {
		cfg.MaxTextChars = fileCfg.MaxTextChars
	}

	ints := []struct {
		key string
		dst *int
		def int
	}{
		{"WORKER_COUNT", &cfg.WorkerCount, defaultWorkerCount},
		{"JOB_QUEUE_SIZE", &cfg.JobQueueSize, defaultQueueSize},
		{"JOB_TIMEOUT_SEC", &cfg.JobTimeoutSec, defaultJobTimeoutSec},
		{"MAX_TEXT_CHARS", &cfg.MaxTextChars, defaultMaxTextChars},
	}
	for _, item := range ints {
		v, ok, err := parseIntEnv(item.key)
		switch {
		case err != nil:
			if cfg.StrictConfig {
				return cfg, fmt.Errorf("invalid %s: %w", item.key, err)
			}
			cfg.warnf("invalid %s: %v (using default %d)", item.key, err, item.def)
			*item.dst = item.def
		case ok && v <= 0:
			if cfg.StrictConfig {
				return cfg, fmt.Errorf("%s must be positive", item.key)
			}
			cfg.warnf("%s must be positive, using default %d", item.key, item.def)
			*item.dst = item.def
		case ok:
			*item.dst = v
		}
	}

	if v, ok, err := parseIntEnv("MAX_IMAGE_BYTES"); err != nil || (ok && v <= 0) {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid MAX_IMAGE_BYTES=%q", os.Getenv("MAX_IMAGE_BYTES"))
		}
		cfg.warnf("invalid MAX_IMAGE_BYTES=%q, using default %d", os.Getenv("MAX_IMAGE_BYTES"), defaultMaxImageBytes)
		cfg.MaxImageBytes = defaultMaxImageBytes
	} else if ok {
		cfg.MaxImageBytes = int64(v)
	}

	if cfg.JobQueueSize < minQueueSize {
		cfg.JobQueueSize = minQueueSize
	}
	if cfg.JobQueueSize > maxQueueSize {
		cfg.warnf("JOB_QUEUE_SIZE capped at %d (was %d)", maxQueueSize, cfg.JobQueueSize)
		cfg.JobQueueSize = maxQueueSize
	}
	if cfg.JobQueueSize < cfg.WorkerCount {
		cfg.warnf("JOB_QUEUE_SIZE must be >= WORKER_COUNT; using %d", max(defaultQueueSize, cfg.WorkerCount))
		cfg.JobQueueSize = max(defaultQueueSize, cfg.WorkerCount)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
		}
		cfg.warnf("invalid TIMEZONE %q: %v (using UTC)", cfg.Timezone, err)
		cfg.Timezone = defaultTimezone
		loc = time.UTC
	}
	cfg.Location = loc

	if err := validateConfig(cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		cfg.warnf("config validation failed: %v (continuing)", err)
		if _, perr := cron.ParseStandard(cfg.ReconcileSchedule); perr != nil && cfg.ReconcileEnabled() {
			cfg.ReconcileSchedule = defaultReconcileSchedule
		}
	}

	return cfg, nil
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH is required")
	}
	if cfg.EnableWatcher && strings.TrimSpace(cfg.DropDir) == "" {
		return errors.New("DROP_DIR is required when the watcher is enabled")
	}
	if strings.TrimSpace(cfg.ReconcileSchedule) != "off" {
		if _, err := cron.ParseStandard(cfg.ReconcileSchedule); err != nil {
			return fmt.Errorf("invalid RECONCILE_SCHEDULE %q: %w", cfg.ReconcileSchedule, err)
		}
	}
	return nil
}

// ReconcileEnabled reports whether the periodic aggregate reconcile runs.
func (c Config) ReconcileEnabled() bool {
	return strings.TrimSpace(c.ReconcileSchedule) != "off"
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return defaultVal
	}
	return parseBoolEnv(key)
}

func parseIntEnv(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	return val, true, err
}
