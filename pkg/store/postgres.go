package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists identities, groups and verification edges in
// PostgreSQL. The schema mirrors the upstream identity service: users,
// groups, users_in_groups and connections.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pooled connection to the identity database. The
// caller owns the handle lifecycle and must Close it.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pooling configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

// migrate creates the schema if it does not exist.
func (s *PostgresStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			key   TEXT PRIMARY KEY,
			score DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS groups (
			key      TEXT PRIMARY KEY,
			seed     BOOLEAN NOT NULL DEFAULT FALSE,
			score    DOUBLE PRECISION NOT NULL DEFAULT 0,
			raw_rank DOUBLE PRECISION NOT NULL DEFAULT 0,
			degree   DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS users_in_groups (
			user_key  TEXT NOT NULL REFERENCES users(key),
			group_key TEXT NOT NULL REFERENCES groups(key),
			PRIMARY KEY (user_key, group_key)
		)`,
		`CREATE TABLE IF NOT EXISTS connections (
			from_key TEXT NOT NULL REFERENCES users(key),
			to_key   TEXT NOT NULL REFERENCES users(key),
			PRIMARY KEY (from_key, to_key)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// LoadSnapshot reads the complete identity graph in one pass.
func (s *PostgresStore) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := s.pool.Query(ctx, `SELECT key, seed FROM groups ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	for rows.Next() {
		var g GroupRecord
		if err := rows.Scan(&g.Key, &g.Seed); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group: %w", err)
		}
		snap.Groups = append(snap.Groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	memberships := make(map[string][]string)
	rows, err = s.pool.Query(ctx, `SELECT user_key, group_key FROM users_in_groups ORDER BY user_key, group_key`)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	for rows.Next() {
		var userKey, groupKey string
		if err := rows.Scan(&userKey, &groupKey); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships[userKey] = append(memberships[userKey], groupKey)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT key, score FROM users ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for rows.Next() {
		var id IdentityRecord
		if err := rows.Scan(&id.Key, &id.Score); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan user: %w", err)
		}
		id.Groups = memberships[id.Key]
		snap.Identities = append(snap.Identities, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT from_key, to_key FROM connections ORDER BY from_key, to_key`)
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	for rows.Next() {
		var e EdgeRecord
		if err := rows.Scan(&e.From, &e.To); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		snap.Edges = append(snap.Edges, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// UpdateNodeScore commits an identity's score.
func (s *PostgresStore) UpdateNodeScore(ctx context.Context, key string, score float64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET score = $2 WHERE key = $1`, key, score)
	if err != nil {
		return fmt.Errorf("update user %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user %q: %w", key, ErrIdentityMissing)
	}
	return nil
}

// UpdateGroupScore commits a group's score, raw rank and degree.
func (s *PostgresStore) UpdateGroupScore(ctx context.Context, key string, score, rawRank, degree float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE groups SET score = $2, raw_rank = $3, degree = $4 WHERE key = $1`,
		key, score, rawRank, degree)
	if err != nil {
		return fmt.Errorf("update group %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update group %q: %w", key, ErrGroupMissing)
	}
	return nil
}
