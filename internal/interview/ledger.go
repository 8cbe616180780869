package interview

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mockview/mockview/pkg/types"
)

// Ledger is the in-memory, append-only chat log of one session. It mirrors
// the durable chat_entries rows: entries accumulate here while the session
// runs and are flushed in batches, so the ledger tracks which prefix has
// already landed durably.
//
// Entry identity for reconciliation purposes is the (role, trimmed text)
// pair. IDs and timestamps are ledger-assigned and deliberately ignored when
// merging durable state, because a replayed flush or a resumed session
// re-assigns both.
//
// Ledger is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	entries []types.Entry
	flushed int // entries[:flushed] are durable
	nextID  int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{nextID: 1}
}

// Append adds an entry with the given role and text, assigning its ID and
// timestamp. Blank text is rejected: an empty transcription or reply must be
// surfaced as an error upstream, never stored.
func (l *Ledger) Append(role types.Role, text string) (types.Entry, error) {
	if !role.IsValid() {
		return types.Entry{}, fmt.Errorf("ledger: unknown role %q", role)
	}
	if strings.TrimSpace(text) == "" {
		return types.Entry{}, fmt.Errorf("ledger: blank text for role %q", role)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	e := types.Entry{
		ID:        fmt.Sprintf("e%04d", l.nextID),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	l.nextID++
	l.entries = append(l.entries, e)
	return e, nil
}

// Reconcile merges durable entries into the ledger, typically on session
// load or resume. Durable entries come first in their stored order; any
// in-memory entry whose (role, trimmed text) already exists durably is
// dropped as a duplicate, the rest keep their relative order as the
// unflushed tail.
func (l *Ledger) Reconcile(durable []types.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool, len(durable))
	for _, e := range durable {
		seen[entryKey(e)] = true
	}

	merged := append([]types.Entry(nil), durable...)
	for _, e := range l.entries[l.flushed:] {
		if seen[entryKey(e)] {
			continue
		}
		seen[entryKey(e)] = true
		merged = append(merged, e)
	}

	l.entries = merged
	l.flushed = len(durable)
	if l.nextID <= len(merged) {
		l.nextID = len(merged) + 1
	}
}

// Unflushed returns a copy of the entries not yet written durably.
func (l *Ledger) Unflushed() []types.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.Entry(nil), l.entries[l.flushed:]...)
}

// MarkFlushed records that the first n unflushed entries are now durable.
func (l *Ledger) MarkFlushed(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushed += n
	if l.flushed > len(l.entries) {
		l.flushed = len(l.entries)
	}
}

// Entries returns a copy of the full ledger in append order.
func (l *Ledger) Entries() []types.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.Entry(nil), l.entries...)
}

// Questions returns the asking-side entries of both pipelines, in order.
func (l *Ledger) Questions() []types.Entry {
	return l.filter(func(e types.Entry) bool { return e.Role.IsQuestion() })
}

// Answers returns the responding-side entries of both pipelines, in order.
func (l *Ledger) Answers() []types.Entry {
	return l.filter(func(e types.Entry) bool { return e.Role.IsAnswer() })
}

// Tail returns a copy of the last n entries, or all of them when fewer exist.
func (l *Ledger) Tail(n int) []types.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	return append([]types.Entry(nil), l.entries[len(l.entries)-n:]...)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Ledger) filter(keep func(types.Entry) bool) []types.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.Entry
	for _, e := range l.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// entryKey is the reconciliation identity of an entry.
func entryKey(e types.Entry) string {
	return string(e.Role) + "\x00" + strings.TrimSpace(e.Text)
}
