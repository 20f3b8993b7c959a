// Package store hand-authors the Querier interface the rest of the
// teacher monorepo generates with sqlc, since no generated db package
// for the events/matches/ascii_match schema ships in this repo's
// domain. The shape — an interface satisfied by both *pgxpool.Pool and
// pgx.Tx, constructed via New — follows abc-service's
// internal/service/item_service.go idiom exactly.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is the minimal surface both *pgxpool.Pool and pgx.Tx satisfy,
// letting the same generated-style queries run inside or outside a
// transaction depending on what New is handed.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is the persistence contract the sink loader depends on.
type Querier interface {
	InsertEvent(ctx context.Context, arg InsertEventParams) (int64, error)
	InsertMatch(ctx context.Context, arg InsertMatchParams) (int64, error)
	InsertAsciiMatch(ctx context.Context, arg InsertAsciiMatchParams) (int64, error)
}

type InsertEventParams struct {
	Source         string
	RawContent     []byte
	Filename       string
	Creator        string
	TimeCreated    time.Time
	TimeDiscovered time.Time
}

type InsertMatchParams struct {
	EventID     int64
	RuleMatched string
	TagsMatched []string
}

type InsertAsciiMatchParams struct {
	MatchID       int64
	MatchedString string
}

// Queries implements Querier against whatever dbtx it's handed — a pool
// for ad hoc calls, or a transaction for the sink's atomic multi-table
// insert.
type Queries struct {
	db dbtx
}

// New wraps db (a *pgxpool.Pool or a pgx.Tx) in a Queries, mirroring
// the teacher's db.New(pool) / db.New(tx) call sites.
func New(db dbtx) *Queries {
	return &Queries{db: db}
}

func (q *Queries) InsertEvent(ctx context.Context, arg InsertEventParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, `
		INSERT INTO events (source, raw_content, filename, creator, time_created, time_discovered)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		arg.Source, arg.RawContent, arg.Filename, arg.Creator, arg.TimeCreated, arg.TimeDiscovered,
	).Scan(&id)
	return id, err
}

func (q *Queries) InsertMatch(ctx context.Context, arg InsertMatchParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, `
		INSERT INTO matches (event_id, rule_matched, tags_matched)
		VALUES ($1, $2, $3) RETURNING id`,
		arg.EventID, arg.RuleMatched, arg.TagsMatched,
	).Scan(&id)
	return id, err
}

func (q *Queries) InsertAsciiMatch(ctx context.Context, arg InsertAsciiMatchParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, `
		INSERT INTO ascii_match (match_id, matched_string)
		VALUES ($1, $2) RETURNING id`,
		arg.MatchID, arg.MatchedString,
	).Scan(&id)
	return id, err
}
