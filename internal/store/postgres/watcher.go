package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mockview/mockview/internal/store"
)

// Watch implements [store.Watcher]. It dedicates one pooled connection to
// LISTEN on the shared notification channel and forwards events matching
// sessionID until ctx is cancelled.
//
// Slow consumers do not block the listener: when the outbound channel is
// full the update is dropped. Consumers treat an update as a hint to
// re-read, not as a payload, so a dropped notification is recovered by the
// next one.
func (s *Store) Watch(ctx context.Context, sessionID string) (<-chan store.Update, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("watcher: acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("watcher: listen: %w", err)
	}

	ch := make(chan store.Update, 16)

	go func() {
		defer close(ch)
		defer conn.Release()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("session watcher lost its connection", "session_id", sessionID, "error", err)
				}
				return
			}

			id, kind, ok := strings.Cut(n.Payload, ":")
			if !ok || id != sessionID {
				continue
			}

			u := store.Update{SessionID: id, Kind: store.UpdateKind(kind)}
			select {
			case ch <- u:
			default:
			}
		}
	}()

	return ch, nil
}
