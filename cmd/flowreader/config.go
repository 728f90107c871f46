package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// Source kinds.
const (
	sourceDir    = "dir"
	sourceLibSQL = "libsql"
	sourceRedis  = "redis"
)

// Config holds all flowreader configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	Source          string `json:"source"`
	DiagramDir      string `json:"diagram_dir"`
	DBPath          string `json:"db_path"`
	RedisURL        string `json:"redis_url,omitempty"`
	LogLevel        string `json:"log_level"`
	LogFormat       string `json:"log_format"`
	ConditionEngine string `json:"condition_engine"`

	// serve only
	AuditSchedule string `json:"audit_schedule,omitempty"`
	MetricsAddr   string `json:"metrics_addr,omitempty"`
}

func defaultConfig() Config {
	return Config{
		Source:          sourceDir,
		DiagramDir:      filepath.Join(flowreaderDir(), "diagrams"),
		DBPath:          filepath.Join(flowreaderDir(), "flowreader.db"),
		LogLevel:        "info",
		LogFormat:       "text",
		ConditionEngine: "expr",
	}
}

func flowreaderDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowreader"
	}
	return filepath.Join(home, ".flowreader")
}

func settingsPath() string {
	return filepath.Join(flowreaderDir(), "settings.json")
}

// loadConfig layers settings.json and environment variables over the
// defaults. A missing or unreadable settings file is ignored.
func loadConfig(path string, getenv func(string) string) Config {
	cfg := defaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	if v := getenv("FLOWREADER_SOURCE"); v != "" {
		cfg.Source = v
	}
	if v := getenv("FLOWREADER_DIAGRAM_DIR"); v != "" {
		cfg.DiagramDir = v
	}
	if v := getenv("FLOWREADER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("FLOWREADER_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := getenv("FLOWREADER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("FLOWREADER_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("FLOWREADER_CONDITION_ENGINE"); v != "" {
		cfg.ConditionEngine = v
	}
	if v := getenv("FLOWREADER_AUDIT_SCHEDULE"); v != "" {
		cfg.AuditSchedule = v
	}
	if v := getenv("FLOWREADER_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	return cfg
}

// bindFlags registers the shared flags of every command. Flag defaults are
// the already layered values, so a flag only wins when it is set.
func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Source, "source", cfg.Source, "diagram source: dir, libsql or redis")
	fs.StringVar(&cfg.DiagramDir, "dir", cfg.DiagramDir, "diagram directory (source=dir)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "database path (source=libsql)")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "redis URL (source=redis)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.StringVar(&cfg.ConditionEngine, "engine", cfg.ConditionEngine, "engine for conditions without a dialect marker: expr, cel or jq")
}

func (c Config) validate() error {
	switch c.Source {
	case sourceDir:
		if c.DiagramDir == "" {
			return fmt.Errorf("diagram_dir is required for source %q", c.Source)
		}
	case sourceLibSQL:
		if c.DBPath == "" {
			return fmt.Errorf("db_path is required for source %q", c.Source)
		}
	case sourceRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis_url is required for source %q", c.Source)
		}
	default:
		return fmt.Errorf("unknown source %q (want %s, %s or %s)", c.Source, sourceDir, sourceLibSQL, sourceRedis)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// writeSettings persists cfg as the settings file at path.
func writeSettings(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
