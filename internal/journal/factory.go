package journal

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/antoniostano/peek/internal/reliability"
)

const (
	BackendAuto     = "auto"
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Backend       string
	Path          string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	// ConnectAttempts bounds retries for network backends. Default 5.
	ConnectAttempts int
}

// ResolveBackend maps "auto" to a concrete backend: Postgres when a
// database URL is set, then Redis, then the local bolt file.
func ResolveBackend(cfg Config) string {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend != "" && backend != BackendAuto {
		return backend
	}
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		return BackendPostgres
	case strings.TrimSpace(cfg.RedisAddr) != "":
		return BackendRedis
	default:
		return BackendBolt
	}
}

// NewStore opens the configured backend. Network backends are retried
// with capped backoff before giving up.
func NewStore(ctx context.Context, cfg Config) (Store, string, error) {
	backend := ResolveBackend(cfg)
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 5
	}

	switch backend {
	case BackendMemory:
		return NewInMemoryStore(), backend, nil
	case BackendBolt:
		store, err := OpenBoltStore(cfg.Path)
		if err != nil {
			return nil, backend, err
		}
		return store, backend, nil
	case BackendPostgres:
		var store *PostgresStore
		err := reliability.Retry(ctx, attempts, 250*time.Millisecond, 4*time.Second, func(ctx context.Context) error {
			var err error
			store, err = NewPostgresStore(ctx, cfg.DatabaseURL)
			if err != nil {
				log.Printf("journal: postgres not ready: %v", err)
			}
			return err
		})
		if err != nil {
			return nil, backend, err
		}
		return store, backend, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		err := reliability.Retry(ctx, attempts, 250*time.Millisecond, 4*time.Second, func(ctx context.Context) error {
			err := client.Ping(ctx).Err()
			if err != nil {
				log.Printf("journal: redis not ready: %v", err)
			}
			return err
		})
		if err != nil {
			_ = client.Close()
			return nil, backend, fmt.Errorf("redis ping: %w", err)
		}
		store, err := NewRedisStore(RedisConfig{Client: client, KeyPrefix: cfg.KeyPrefix})
		if err != nil {
			_ = client.Close()
			return nil, backend, err
		}
		return store, backend, nil
	default:
		return nil, backend, fmt.Errorf("unknown journal backend %q", backend)
	}
}
