package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/antoniostano/peek/internal/host"
)

type RedisConfig struct {
	Client *redis.Client
	// KeyPrefix namespaces every snapshot key. Default: "peek:journal:".
	KeyPrefix string
}

// RedisStore keeps one JSON value per observer, without expiry.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "peek:journal:"
	}
	return &RedisStore{client: cfg.Client, keyPrefix: cfg.KeyPrefix}, nil
}

func (s *RedisStore) key(observer host.ActorID) string { return s.keyPrefix + string(observer) }

func (s *RedisStore) Put(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(snap.Observer), payload, 0).Err(); err != nil {
		return fmt.Errorf("set snapshot %s: %w", snap.Observer, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, observer host.ActorID) (Snapshot, error) {
	raw, err := s.client.Get(ctx, s.key(observer)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("get snapshot %s: %w", observer, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", observer, err)
	}
	return snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, observer host.ActorID) error {
	if err := s.client.Del(ctx, s.key(observer)).Err(); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", observer, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Snapshot, error) {
	var out []Snapshot
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("get %s: %w", iter.Val(), err)
		}
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			log.Printf("journal: skipping undecodable snapshot %q: %v", iter.Val(), err)
			continue
		}
		out = append(out, snap)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Observer < out[j].Observer })
	return out, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
