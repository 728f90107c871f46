package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig(filepath.Join(t.TempDir(), "missing.json"), envFrom(nil))

	assert.Equal(t, sourceDir, cfg.Source)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "expr", cfg.ConditionEngine)
	assert.Equal(t, "diagrams", filepath.Base(cfg.DiagramDir))
	assert.Equal(t, "flowreader.db", filepath.Base(cfg.DBPath))
	assert.NoError(t, cfg.validate())
}

func TestLoadConfig_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"source":"libsql","db_path":"/tmp/a.db","log_level":"debug"}`), 0o644))

	cfg := loadConfig(path, envFrom(map[string]string{
		"FLOWREADER_DB_PATH":          "/tmp/b.db",
		"FLOWREADER_CONDITION_ENGINE": "cel",
	}))

	assert.Equal(t, sourceLibSQL, cfg.Source)
	assert.Equal(t, "/tmp/b.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "cel", cfg.ConditionEngine)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadConfig_ServeSettings(t *testing.T) {
	cfg := loadConfig(filepath.Join(t.TempDir(), "missing.json"), envFrom(map[string]string{
		"FLOWREADER_SOURCE":         "redis",
		"FLOWREADER_REDIS_URL":      "redis://localhost:6379/2",
		"FLOWREADER_AUDIT_SCHEDULE": "@hourly",
		"FLOWREADER_METRICS_ADDR":   ":9464",
	}))

	assert.Equal(t, sourceRedis, cfg.Source)
	assert.Equal(t, "redis://localhost:6379/2", cfg.RedisURL)
	assert.Equal(t, "@hourly", cfg.AuditSchedule)
	assert.Equal(t, ":9464", cfg.MetricsAddr)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfig_BadSettingsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	cfg := loadConfig(path, envFrom(map[string]string{"FLOWREADER_LOG_FORMAT": "json"}))
	assert.Equal(t, sourceDir, cfg.Source)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestBindFlags(t *testing.T) {
	cfg := loadConfig(filepath.Join(t.TempDir(), "missing.json"), envFrom(map[string]string{
		"FLOWREADER_DIAGRAM_DIR": "/env/dir",
		"FLOWREADER_LOG_LEVEL":   "warn",
	}))
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	bindFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"-dir", "/flag/dir", "-engine", "jq"}))

	assert.Equal(t, "/flag/dir", cfg.DiagramDir)
	assert.Equal(t, "jq", cfg.ConditionEngine)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown source", func(c *Config) { c.Source = "s3" }, "unknown source"},
		{"dir without path", func(c *Config) { c.DiagramDir = "" }, "diagram_dir is required"},
		{"libsql without path", func(c *Config) { c.Source = sourceLibSQL; c.DBPath = "" }, "db_path is required"},
		{"redis without url", func(c *Config) { c.Source = sourceRedis }, "redis_url is required"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "unknown log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	want := defaultConfig()
	want.Source = sourceLibSQL
	want.LogFormat = "json"

	require.NoError(t, writeSettings(path, want))
	assert.Equal(t, want, loadConfig(path, envFrom(nil)))
}

func TestDBURI(t *testing.T) {
	assert.Equal(t, "file:/var/lib/flow.db", dbURI("/var/lib/flow.db"))
	assert.Equal(t, "file:/x.db", dbURI("file:/x.db"))
	assert.Equal(t, "libsql://db.example.com", dbURI("libsql://db.example.com"))
}
