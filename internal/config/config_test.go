package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" || cfg.MetricsNamespace != "peek" {
		t.Fatalf("BindAddr/MetricsNamespace = %q/%q", cfg.BindAddr, cfg.MetricsNamespace)
	}
	if cfg.MaxDuration != 5*time.Minute || cfg.Cooldown != 30*time.Second || cfg.ConsentTimeout != time.Minute {
		t.Fatalf("durations = %s/%s/%s", cfg.MaxDuration, cfg.Cooldown, cfg.ConsentTimeout)
	}
	if !cfg.CheckTargetPermission || !cfg.StatisticsEnabled || cfg.Debug {
		t.Fatalf("flags = %+v", cfg)
	}
	if cfg.JournalBackend != "auto" || cfg.JournalPath != "data/pending_peeks.db" || cfg.JournalKeyPrefix != "peek:journal:" {
		t.Fatalf("journal config = %q %q %q", cfg.JournalBackend, cfg.JournalPath, cfg.JournalKeyPrefix)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("PEEK_MAX_DURATION", "0s")
	t.Setenv("PEEK_COOLDOWN", "2m")
	t.Setenv("PEEK_CHECK_TARGET_PERMISSION", "off")
	t.Setenv("PEEK_DEBUG", "yes")
	t.Setenv("JOURNAL_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxDuration != 0 || cfg.Cooldown != 2*time.Minute {
		t.Fatalf("MaxDuration/Cooldown = %s/%s", cfg.MaxDuration, cfg.Cooldown)
	}
	if cfg.CheckTargetPermission || !cfg.Debug {
		t.Fatalf("CheckTargetPermission/Debug = %v/%v", cfg.CheckTargetPermission, cfg.Debug)
	}
	if cfg.JournalBackend != "redis" || cfg.RedisDB != 3 {
		t.Fatalf("JournalBackend/RedisDB = %q/%d", cfg.JournalBackend, cfg.RedisDB)
	}
}

func TestLoadDurationsAcceptBareSeconds(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("PEEK_MAX_DURATION", "300")
	t.Setenv("PEEK_COOLDOWN", "45")
	t.Setenv("PEEK_CONSENT_TIMEOUT", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxDuration != 5*time.Minute || cfg.Cooldown != 45*time.Second || cfg.ConsentTimeout != 0 {
		t.Fatalf("durations = %s/%s/%s", cfg.MaxDuration, cfg.Cooldown, cfg.ConsentTimeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad duration", env: map[string]string{"PEEK_COOLDOWN": "soon"}, want: "PEEK_COOLDOWN"},
		{name: "negative duration", env: map[string]string{"PEEK_MAX_DURATION": "-1s"}, want: "PEEK_MAX_DURATION"},
		{name: "negative seconds", env: map[string]string{"PEEK_COOLDOWN": "-5"}, want: "PEEK_COOLDOWN"},
		{name: "bad bool", env: map[string]string{"PEEK_DEBUG": "maybe"}, want: "PEEK_DEBUG"},
		{name: "unknown backend", env: map[string]string{"JOURNAL_BACKEND": "sqlite"}, want: "JOURNAL_BACKEND"},
		{name: "postgres without url", env: map[string]string{"JOURNAL_BACKEND": "postgres"}, want: "DATABASE_URL"},
		{name: "redis without addr", env: map[string]string{"JOURNAL_BACKEND": "redis"}, want: "REDIS_ADDR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setCoreEnvEmpty(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	setCoreEnvEmpty(t)
	path := filepath.Join(t.TempDir(), "peek.env")
	if err := os.WriteFile(path, []byte("APP_BIND_ADDR=:9191\nPEEK_COOLDOWN=45s\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("APP_ENV_FILE", path)
	t.Setenv("PEEK_COOLDOWN", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q, want value from env file", cfg.BindAddr)
	}
	if cfg.Cooldown != 10*time.Second {
		t.Fatalf("Cooldown = %s, want explicit env to win", cfg.Cooldown)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want missing env file error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_ENV_FILE",
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"PEEK_MAX_DURATION",
		"PEEK_COOLDOWN",
		"PEEK_CONSENT_TIMEOUT",
		"PEEK_CHECK_TARGET_PERMISSION",
		"PEEK_STATISTICS_ENABLED",
		"PEEK_STATS_PATH",
		"PEEK_DEBUG",
		"PEEK_MESSAGES_PATH",
		"PEEK_SOUND_START",
		"PEEK_SOUND_END",
		"JOURNAL_BACKEND",
		"JOURNAL_PATH",
		"DATABASE_URL",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"JOURNAL_KEY_PREFIX",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
