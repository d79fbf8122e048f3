// Package history persists end-of-session reports and serves prior
// transcripts to resuming sessions.
//
// Two implementations are provided: [Store], backed by PostgreSQL via a
// [pgxpool.Pool], and [MemoryStore] for tests and DSN-less deployments.
// Both satisfy [bridge.Recorder] and [bridge.HistoryFetcher].
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/malangee/ai-engine/internal/bridge"
)

// Compile-time interface checks.
var (
	_ bridge.Recorder       = (*Store)(nil)
	_ bridge.HistoryFetcher = (*Store)(nil)
)

const ddl = `
CREATE TABLE IF NOT EXISTS session_reports (
    session_id            TEXT         PRIMARY KEY,
    owner_id              TEXT         NOT NULL DEFAULT '',
    title                 TEXT         NOT NULL,
    started_at            TIMESTAMPTZ  NOT NULL,
    ended_at              TIMESTAMPTZ  NOT NULL,
    total_duration_ns     BIGINT       NOT NULL DEFAULT 0,
    user_speech_ns        BIGINT       NOT NULL DEFAULT 0,
    scenario_title        TEXT         NOT NULL DEFAULT '',
    scenario_place        TEXT         NOT NULL DEFAULT '',
    scenario_partner      TEXT         NOT NULL DEFAULT '',
    scenario_goal         TEXT         NOT NULL DEFAULT '',
    scenario_completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_session_reports_owner
    ON session_reports (owner_id);

CREATE TABLE IF NOT EXISTS session_messages (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL REFERENCES session_reports (session_id) ON DELETE CASCADE,
    seq         INT          NOT NULL,
    role        TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    timestamp   TIMESTAMPTZ  NOT NULL,
    duration_ns BIGINT       NOT NULL DEFAULT 0,
    UNIQUE (session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_session_messages_session
    ON session_messages (session_id, seq);
`

// Store is the PostgreSQL-backed report store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn, verifies it
// with a ping, and runs [Migrate] so the required tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate ensures the report and message tables exist. Idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("history store: apply schema: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable. Used as a readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveReport implements [bridge.Recorder]. Saving the same session again
// accumulates: durations are added to the stored totals and messages are
// appended after the existing ones, so a resumed session keeps the transcript
// of every connection. The first connection's start time is preserved.
func (s *Store) SaveReport(ctx context.Context, r *bridge.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("history store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsert = `
		INSERT INTO session_reports
		    (session_id, owner_id, title, started_at, ended_at,
		     total_duration_ns, user_speech_ns,
		     scenario_title, scenario_place, scenario_partner, scenario_goal,
		     scenario_completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (session_id) DO UPDATE SET
		    owner_id              = EXCLUDED.owner_id,
		    title                 = EXCLUDED.title,
		    ended_at              = EXCLUDED.ended_at,
		    total_duration_ns     = session_reports.total_duration_ns + EXCLUDED.total_duration_ns,
		    user_speech_ns        = session_reports.user_speech_ns + EXCLUDED.user_speech_ns,
		    scenario_title        = EXCLUDED.scenario_title,
		    scenario_place        = EXCLUDED.scenario_place,
		    scenario_partner      = EXCLUDED.scenario_partner,
		    scenario_goal         = EXCLUDED.scenario_goal,
		    scenario_completed_at = COALESCE(session_reports.scenario_completed_at, EXCLUDED.scenario_completed_at)`

	_, err = tx.Exec(ctx, upsert,
		r.SessionID,
		r.OwnerID,
		r.Title,
		r.StartedAt,
		r.EndedAt,
		r.TotalDuration.Nanoseconds(),
		r.UserSpeechDuration.Nanoseconds(),
		r.Scenario.Title,
		r.Scenario.Place,
		r.Scenario.Partner,
		r.Scenario.Goal,
		r.ScenarioCompletedAt,
	)
	if err != nil {
		return fmt.Errorf("history store: upsert report: %w", err)
	}

	var nextSeq int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM session_messages WHERE session_id = $1`,
		r.SessionID,
	).Scan(&nextSeq); err != nil {
		return fmt.Errorf("history store: next seq: %w", err)
	}

	const insertMsg = `
		INSERT INTO session_messages
		    (session_id, seq, role, content, timestamp, duration_ns)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for i, m := range r.Messages {
		_, err := tx.Exec(ctx, insertMsg,
			r.SessionID,
			nextSeq+i,
			string(m.Role),
			m.Content,
			m.Timestamp,
			m.Duration.Nanoseconds(),
		)
		if err != nil {
			return fmt.Errorf("history store: insert message %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("history store: commit: %w", err)
	}
	return nil
}

// History implements [bridge.HistoryFetcher]. It returns the ordered
// transcript of the named session, or nothing when the session is unknown or
// belongs to a different owner.
func (s *Store) History(ctx context.Context, sessionID, ownerID string) ([]bridge.Message, error) {
	const q = `
		SELECT m.role, m.content, m.timestamp, m.duration_ns
		FROM   session_messages m
		JOIN   session_reports  r ON r.session_id = m.session_id
		WHERE  m.session_id = $1
		  AND  r.owner_id   = $2
		ORDER  BY m.seq`

	rows, err := s.pool.Query(ctx, q, sessionID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("history store: query messages: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (bridge.Message, error) {
		var (
			m          bridge.Message
			role       string
			durationNS int64
		)
		if err := row.Scan(&role, &m.Content, &m.Timestamp, &durationNS); err != nil {
			return m, err
		}
		m.Role = bridge.Role(role)
		m.Duration = time.Duration(durationNS)
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history store: scan messages: %w", err)
	}
	return msgs, nil
}
