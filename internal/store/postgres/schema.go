// Package postgres provides the PostgreSQL-backed implementation of every
// store interface: sessions, chat ledger, entitlements, and the résumé
// vector index.
//
// All tables share a single [pgxpool.Pool] connection pool. The pgvector
// extension must be available in the target database; [Migrate] installs it
// automatically via CREATE EXTENSION IF NOT EXISTS. Change notifications are
// delivered through LISTEN/NOTIFY triggers installed by the same migration.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.CreateSession(ctx, session)
//	_ = st.AppendEntries(ctx, session.ID, entries)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// notifyChannel is the pg_notify channel carrying session and chat change
// events. Payload format: "<session_id>:<kind>".
const notifyChannel = "mockview_updates"

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id                 TEXT         PRIMARY KEY,
    user_id            TEXT         NOT NULL,
    company            TEXT         NOT NULL DEFAULT '',
    role               TEXT         NOT NULL DEFAULT '',
    status             TEXT         NOT NULL DEFAULT 'not_started',
    remaining_seconds  INT          NOT NULL,
    duration_seconds   INT          NOT NULL,
    cv_summary         TEXT         NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_id
    ON sessions (user_id);

CREATE INDEX IF NOT EXISTS idx_sessions_status
    ON sessions (status);
`

const ddlChatEntries = `
CREATE TABLE IF NOT EXISTS chat_entries (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    entry_id    TEXT         NOT NULL DEFAULT '',
    role        TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (session_id, role, text)
);

CREATE INDEX IF NOT EXISTS idx_chat_entries_session_id
    ON chat_entries (session_id, id);
`

const ddlEntitlements = `
CREATE TABLE IF NOT EXISTS entitlements (
    user_id          TEXT         PRIMARY KEY,
    email            TEXT         NOT NULL DEFAULT '',
    available        INT          NOT NULL DEFAULT 0 CHECK (available >= 0),
    total_granted    INT          NOT NULL DEFAULT 0,
    total_completed  INT          NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// ddlNotifyTriggers installs the pg_notify triggers that back the Watcher
// implementation. Session row updates and chat inserts both publish to the
// same channel so a single LISTEN covers a watched session.
const ddlNotifyTriggers = `
CREATE OR REPLACE FUNCTION notify_session_update() RETURNS trigger AS $$
BEGIN
    PERFORM pg_notify('mockview_updates', NEW.id || ':session');
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_sessions_notify ON sessions;
CREATE TRIGGER trg_sessions_notify
    AFTER UPDATE ON sessions
    FOR EACH ROW EXECUTE FUNCTION notify_session_update();

CREATE OR REPLACE FUNCTION notify_chat_insert() RETURNS trigger AS $$
BEGIN
    PERFORM pg_notify('mockview_updates', NEW.session_id || ':chat');
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_chat_entries_notify ON chat_entries;
CREATE TRIGGER trg_chat_entries_notify
    AFTER INSERT ON chat_entries
    FOR EACH ROW EXECUTE FUNCTION notify_chat_insert();
`

// ddlResumeChunks returns the résumé chunk DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlResumeChunks(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS resume_chunks (
    id          TEXT         PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    embedding   vector(%d),
    seq         INT          NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_resume_chunks_session_id
    ON resume_chunks (session_id);

CREATE INDEX IF NOT EXISTS idx_resume_chunks_embedding
    ON resume_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables, extensions, and
// triggers exist. It is idempotent and safe to call on every application
// start.
//
// embeddingDimensions must match the vector model configured for your
// deployment (e.g., 1536 for OpenAI text-embedding-3-small, 768 for
// nomic-embed-text). Changing this value after the first migration requires
// a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlSessions,
		ddlChatEntries,
		ddlEntitlements,
		ddlResumeChunks(embeddingDimensions),
		ddlNotifyTriggers,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
