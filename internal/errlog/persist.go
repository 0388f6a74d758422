package errlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clinsync/clinsync/internal/kv"
)

// LedgerKey is the KV key holding the persisted ledger.
const LedgerKey = "errlog"

// LoadFrom restores the ledger's entries from the KV backend. A missing
// key leaves the ledger empty.
func (l *Ledger) LoadFrom(ctx context.Context, backend kv.KV) error {
	raw, ok, err := backend.GetItem(ctx, LedgerKey)
	if err != nil {
		return fmt.Errorf("failed to load error ledger: %w", err)
	}
	if !ok {
		return nil
	}

	var entries []*AppError
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return fmt.Errorf("failed to parse error ledger: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = entries
	if len(l.entries) > l.max {
		drop := len(l.entries) - l.max
		l.entries = append([]*AppError(nil), l.entries[drop:]...)
	}
	return nil
}

// SaveTo persists the ledger's entries to the KV backend.
func (l *Ledger) SaveTo(ctx context.Context, backend kv.KV) error {
	l.mu.Lock()
	entries := make([]*AppError, len(l.entries))
	copy(entries, l.entries)
	l.mu.Unlock()

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal error ledger: %w", err)
	}
	if err := backend.SetItem(ctx, LedgerKey, string(data)); err != nil {
		return fmt.Errorf("failed to save error ledger: %w", err)
	}
	return nil
}
