package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mockview/mockview/pkg/types"
)

// AppendEntries implements [store.ChatLog]. Entries that already exist for
// the session with the same role and text are skipped, which makes replaying
// an unflushed ledger tail safe.
func (s *Store) AppendEntries(ctx context.Context, sessionID string, entries []types.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	const q = `
		INSERT INTO chat_entries (session_id, entry_id, role, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, role, text) DO NOTHING`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("chat log: append: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx, q, sessionID, e.ID, string(e.Role), e.Text, e.CreatedAt); err != nil {
			return fmt.Errorf("chat log: append entry %q: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("chat log: append: commit: %w", err)
	}
	return nil
}

// ListEntries implements [store.ChatLog]. Entries come back in insertion
// order.
func (s *Store) ListEntries(ctx context.Context, sessionID string) ([]types.Entry, error) {
	const q = `
		SELECT entry_id, role, text, created_at
		FROM   chat_entries
		WHERE  session_id = $1
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat log: list: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Entry, error) {
		var (
			e    types.Entry
			role string
		)
		if err := row.Scan(&e.ID, &role, &e.Text, &e.CreatedAt); err != nil {
			return types.Entry{}, err
		}
		e.Role = types.Role(role)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat log: scan rows: %w", err)
	}
	if entries == nil {
		entries = []types.Entry{}
	}
	return entries, nil
}
