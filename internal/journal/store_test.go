package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.etcd.io/bbolt"

	"github.com/antoniostano/peek/internal/host"
)

func sampleSnapshot(observer string) Snapshot {
	return Snapshot{
		Observer:  host.ActorID(observer),
		Subject:   "subject-1",
		SessionID: "sess-" + observer,
		Location:  host.Location{World: "overworld", X: 12.5, Y: 64, Z: -3.25, Yaw: 90, Pitch: -10},
		Mode:      host.ModeSurvival,
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// exerciseStore runs the contract every backend must satisfy.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	first := sampleSnapshot("obs-1")
	if err := s.Put(ctx, first); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := s.Get(ctx, "obs-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Location != first.Location || got.Mode != first.Mode || got.Subject != first.Subject {
		t.Fatalf("Get() = %+v, want %+v", got, first)
	}
	if !got.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("StartedAt = %v, want %v", got.StartedAt, first.StartedAt)
	}

	overwrite := first
	overwrite.Mode = host.ModeCreative
	overwrite.Location.X = 99
	if err := s.Put(ctx, overwrite); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}
	got, _ = s.Get(ctx, "obs-1")
	if got.Mode != host.ModeCreative || got.Location.X != 99 {
		t.Fatalf("overwrite not applied: %+v", got)
	}

	if err := s.Put(ctx, sampleSnapshot("obs-2")); err != nil {
		t.Fatalf("Put(obs-2) error = %v", err)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() len = %d, want 2", len(list))
	}

	if err := s.Delete(ctx, "obs-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "obs-1"); err != nil {
		t.Fatalf("Delete() of missing key error = %v", err)
	}
	if _, err := s.Get(ctx, "obs-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestBoltStore(t *testing.T) {
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "journal", "pending.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore() error = %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.db")
	s, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("OpenBoltStore() error = %v", err)
	}
	if err := s.Put(context.Background(), sampleSnapshot("obs-1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), "obs-1")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Location.World != "overworld" {
		t.Fatalf("Get() after reopen = %+v", got)
	}
}

func TestBoltStoreListSkipsUndecodableEntries(t *testing.T) {
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "pending.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	for _, observer := range []string{"obs-1", "obs-3"} {
		if err := s.Put(ctx, sampleSnapshot(observer)); err != nil {
			t.Fatalf("Put(%s) error = %v", observer, err)
		}
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(pendingBucket)).Put([]byte("obs-2"), []byte("{not json"))
	})
	if err != nil {
		t.Fatalf("write corrupt entry: %v", err)
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Observer != "obs-1" || got[1].Observer != "obs-3" {
		t.Fatalf("List() = %+v, want obs-1 and obs-3", got)
	}
}

func TestBoltStoreRequiresPath(t *testing.T) {
	if _, err := OpenBoltStore("  "); err == nil {
		t.Fatalf("OpenBoltStore(blank) error = nil")
	}
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer s.Close()
	for _, id := range []host.ActorID{"obs-1", "obs-2"} {
		_ = s.Delete(ctx, id)
	}
	exerciseStore(t, s)
	_ = s.Delete(ctx, "obs-2")
}

func TestRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   3,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	s, err := NewRedisStore(RedisConfig{Client: client, KeyPrefix: "peek:test:"})
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer s.Close()
	defer client.FlushDB(ctx)
	exerciseStore(t, s)

	if err := s.Put(ctx, sampleSnapshot("obs-1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := client.Set(ctx, "peek:test:obs-2", "{not json", 0).Err(); err != nil {
		t.Fatalf("write corrupt entry: %v", err)
	}
	got, err := s.List(ctx)
	if err != nil || len(got) != 1 || got[0].Observer != "obs-1" {
		t.Fatalf("List() with corrupt entry = %+v, %v", got, err)
	}
}

func TestResolveBackend(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{}, BackendBolt},
		{Config{Backend: "auto", RedisAddr: "localhost:6379"}, BackendRedis},
		{Config{DatabaseURL: "postgres://x", RedisAddr: "localhost:6379"}, BackendPostgres},
		{Config{Backend: "MEMORY", DatabaseURL: "postgres://x"}, BackendMemory},
	}
	for _, tc := range cases {
		if got := ResolveBackend(tc.cfg); got != tc.want {
			t.Fatalf("ResolveBackend(%+v) = %q, want %q", tc.cfg, got, tc.want)
		}
	}
}

func TestNewStoreRejectsUnknownBackend(t *testing.T) {
	if _, _, err := NewStore(context.Background(), Config{Backend: "floppy"}); err == nil {
		t.Fatalf("NewStore() error = nil for unknown backend")
	}
}

func TestNewStoreBolt(t *testing.T) {
	s, backend, err := NewStore(context.Background(), Config{Path: filepath.Join(t.TempDir(), "j.db")})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()
	if backend != BackendBolt {
		t.Fatalf("backend = %q, want %q", backend, BackendBolt)
	}
}
