package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the peek service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	MaxDuration           time.Duration
	Cooldown              time.Duration
	ConsentTimeout        time.Duration
	CheckTargetPermission bool
	StatisticsEnabled     bool
	StatsPath             string
	Debug                 bool
	MessagesPath          string
	SoundStart            string
	SoundEnd              string

	JournalBackend   string
	JournalPath      string
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	JournalKeyPrefix string
}

// Load reads environment variables and applies safe defaults. When
// APP_ENV_FILE names a dotenv file it is read first; non-empty variables
// already in the environment win.
func Load() (Config, error) {
	if path := stringsTrimSpace("APP_ENV_FILE"); path != "" {
		if err := loadEnvFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		BindAddr:              envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "peek"),
		AllowAnyOrigin:        false,
		ShutdownTimeout:       15 * time.Second,
		MaxDuration:           5 * time.Minute,
		Cooldown:              30 * time.Second,
		ConsentTimeout:        60 * time.Second,
		CheckTargetPermission: true,
		StatisticsEnabled:     true,
		StatsPath:             envOrDefault("PEEK_STATS_PATH", "data/stats.yml"),
		MessagesPath:          stringsTrimSpace("PEEK_MESSAGES_PATH"),
		SoundStart:            envOrDefault("PEEK_SOUND_START", "BLOCK_NOTE_BLOCK_PLING"),
		SoundEnd:              envOrDefault("PEEK_SOUND_END", "BLOCK_NOTE_BLOCK_PLING"),
		JournalBackend:        strings.ToLower(envOrDefault("JOURNAL_BACKEND", "auto")),
		JournalPath:           envOrDefault("JOURNAL_PATH", "data/pending_peeks.db"),
		DatabaseURL:           stringsTrimSpace("DATABASE_URL"),
		RedisAddr:             stringsTrimSpace("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		JournalKeyPrefix:      envOrDefault("JOURNAL_KEY_PREFIX", "peek:journal:"),
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxDuration, err = durationFromEnv("PEEK_MAX_DURATION", cfg.MaxDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.Cooldown, err = durationFromEnv("PEEK_COOLDOWN", cfg.Cooldown)
	if err != nil {
		return Config{}, err
	}
	cfg.ConsentTimeout, err = durationFromEnv("PEEK_CONSENT_TIMEOUT", cfg.ConsentTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CheckTargetPermission, err = boolFromEnv("PEEK_CHECK_TARGET_PERMISSION", cfg.CheckTargetPermission)
	if err != nil {
		return Config{}, err
	}
	cfg.StatisticsEnabled, err = boolFromEnv("PEEK_STATISTICS_ENABLED", cfg.StatisticsEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.Debug, err = boolFromEnv("PEEK_DEBUG", cfg.Debug)
	if err != nil {
		return Config{}, err
	}
	cfg.RedisDB, err = intFromEnv("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return Config{}, err
	}

	for key, d := range map[string]time.Duration{
		"APP_SHUTDOWN_TIMEOUT": cfg.ShutdownTimeout,
		"PEEK_MAX_DURATION":    cfg.MaxDuration,
		"PEEK_COOLDOWN":        cfg.Cooldown,
		"PEEK_CONSENT_TIMEOUT": cfg.ConsentTimeout,
	} {
		if d < 0 {
			return Config{}, fmt.Errorf("%s must be >= 0", key)
		}
	}
	switch cfg.JournalBackend {
	case "auto", "memory", "bolt":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("JOURNAL_BACKEND=postgres requires DATABASE_URL")
		}
	case "redis":
		if cfg.RedisAddr == "" {
			return Config{}, fmt.Errorf("JOURNAL_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return Config{}, fmt.Errorf("JOURNAL_BACKEND %q is not supported", cfg.JournalBackend)
	}
	if cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("REDIS_DB must be >= 0")
	}

	return cfg, nil
}

// loadEnvFile fills variables that are unset or empty from a dotenv file.
func loadEnvFile(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("APP_ENV_FILE load error: %w", err)
	}
	for key, value := range values {
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("APP_ENV_FILE set %s: %w", key, err)
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// durationFromEnv accepts a Go duration ("90s", "5m") or a bare integer
// number of seconds.
func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
