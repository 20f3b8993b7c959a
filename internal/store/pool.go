package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgx connection pool, grounded on
// discovery-service/cmd/api/main.go's pgxpool.ParseConfig +
// pool.New wiring (sans the OTel tracer hook, dropped per DESIGN.md).
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return pool, nil
}

// schema is applied idempotently at startup, matching the teacher's
// tolerance for re-running CREATE TABLE IF NOT EXISTS on restart.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id              BIGSERIAL PRIMARY KEY,
	source          TEXT NOT NULL,
	raw_content     BYTEA NOT NULL,
	filename        TEXT NOT NULL,
	creator         TEXT NOT NULL,
	time_created    TIMESTAMPTZ NOT NULL,
	time_discovered TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS matches (
	id           BIGSERIAL PRIMARY KEY,
	event_id     BIGINT NOT NULL REFERENCES events(id),
	rule_matched TEXT NOT NULL,
	tags_matched TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS ascii_match (
	id             BIGSERIAL PRIMARY KEY,
	match_id       BIGINT NOT NULL REFERENCES matches(id),
	matched_string TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS index_cache (
	source     TEXT NOT NULL,
	source_id  TEXT NOT NULL,
	first_seen TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS index_cache_source_source_id_uq
	ON index_cache (source, source_id);
`

// Migrate applies the schema. Safe to call on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}
