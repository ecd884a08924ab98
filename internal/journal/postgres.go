package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antoniostano/peek/internal/host"
)

// PostgresStore keeps snapshots in a pending_peeks table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := initJournalSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initJournalSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pending_peeks (
			observer_id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			world TEXT NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			z DOUBLE PRECISION NOT NULL,
			yaw REAL NOT NULL DEFAULT 0,
			pitch REAL NOT NULL DEFAULT 0,
			mode TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init journal schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, snap Snapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pending_peeks (
			observer_id, subject_id, session_id, world, x, y, z, yaw, pitch, mode, started_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, now())
		ON CONFLICT (observer_id) DO UPDATE SET
			subject_id=EXCLUDED.subject_id,
			session_id=EXCLUDED.session_id,
			world=EXCLUDED.world,
			x=EXCLUDED.x,
			y=EXCLUDED.y,
			z=EXCLUDED.z,
			yaw=EXCLUDED.yaw,
			pitch=EXCLUDED.pitch,
			mode=EXCLUDED.mode,
			started_at=EXCLUDED.started_at,
			updated_at=now()`,
		string(snap.Observer),
		string(snap.Subject),
		snap.SessionID,
		snap.Location.World,
		snap.Location.X,
		snap.Location.Y,
		snap.Location.Z,
		snap.Location.Yaw,
		snap.Location.Pitch,
		string(snap.Mode),
		snap.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

const selectSnapshot = `SELECT observer_id, subject_id, session_id, world, x, y, z, yaw, pitch, mode, started_at
	FROM pending_peeks`

func (s *PostgresStore) Get(ctx context.Context, observer host.ActorID) (Snapshot, error) {
	row := s.pool.QueryRow(ctx, selectSnapshot+` WHERE observer_id=$1`, string(observer))
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) Delete(ctx context.Context, observer host.ActorID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM pending_peeks WHERE observer_id=$1`, string(observer)); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.pool.Query(ctx, selectSnapshot+` ORDER BY observer_id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var (
		snap              Snapshot
		observer, subject string
		mode              string
	)
	err := row.Scan(
		&observer,
		&subject,
		&snap.SessionID,
		&snap.Location.World,
		&snap.Location.X,
		&snap.Location.Y,
		&snap.Location.Z,
		&snap.Location.Yaw,
		&snap.Location.Pitch,
		&mode,
		&snap.StartedAt,
	)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Observer = host.ActorID(observer)
	snap.Subject = host.ActorID(subject)
	snap.Mode = host.Mode(mode)
	return snap, nil
}
