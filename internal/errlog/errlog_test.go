package errlog

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/clinsync/clinsync/internal/kv"
	"github.com/clinsync/clinsync/internal/netstatus"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", 0)
}

func testLedger(t *testing.T, max int) *Ledger {
	t.Helper()
	return NewLedger(max, testLogger())
}

func TestHandleFillsIDAndTimestamp(t *testing.T) {
	l := testLedger(t, 10)

	e := l.Handle(context.Background(), New(Storage, Error, "write failed"))
	if e.ID == "" {
		t.Error("expected ID to be filled")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled")
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", l.Len())
	}
}

func TestLedgerBound(t *testing.T) {
	const max = 5
	l := testLedger(t, max)

	for i := 0; i < max*3; i++ {
		l.Handle(context.Background(), New(Unknown, Info, fmt.Sprintf("err-%d", i)))
	}

	entries := l.Entries()
	if len(entries) != max {
		t.Fatalf("expected %d entries, got %d", max, len(entries))
	}
	// Oldest entries are the ones dropped.
	if entries[0].Message != "err-10" {
		t.Errorf("expected oldest surviving entry err-10, got %s", entries[0].Message)
	}
	if entries[max-1].Message != "err-14" {
		t.Errorf("expected newest entry err-14, got %s", entries[max-1].Message)
	}
}

func TestMarkHandled(t *testing.T) {
	l := testLedger(t, 10)

	e := l.Handle(context.Background(), New(Sync, Warning, "partial sync"))
	if err := l.MarkHandled(e.ID); err != nil {
		t.Fatalf("MarkHandled failed: %v", err)
	}
	if !l.Entries()[0].Handled {
		t.Error("entry should be handled")
	}

	if err := l.MarkHandled("nope"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestImmediateRetryWhenOnline(t *testing.T) {
	l := testLedger(t, 10)

	retried := 0
	l.SetRetry(netstatus.NewStaticChecker(true), func(ctx context.Context, e *AppError) error {
		retried++
		return nil
	})

	e := l.Handle(context.Background(), New(Network, Error, "push failed").Retry())
	if retried != 1 {
		t.Errorf("expected 1 retry, got %d", retried)
	}
	if !e.Handled {
		t.Error("successful retry should mark the entry handled")
	}
}

func TestNoRetryWhenOffline(t *testing.T) {
	l := testLedger(t, 10)

	retried := 0
	l.SetRetry(netstatus.NewStaticChecker(false), func(ctx context.Context, e *AppError) error {
		retried++
		return nil
	})

	e := l.Handle(context.Background(), New(Network, Error, "push failed").Retry())
	if retried != 0 {
		t.Errorf("expected no retry while offline, got %d", retried)
	}
	if e.Handled {
		t.Error("entry should stay pending while offline")
	}

	pending := l.Pending()
	if len(pending) != 1 || pending[0].ID != e.ID {
		t.Errorf("expected entry pending for next sync trigger, got %v", pending)
	}
}

func TestNoRetryForNonSyncTypes(t *testing.T) {
	l := testLedger(t, 10)

	retried := 0
	l.SetRetry(netstatus.NewStaticChecker(true), func(ctx context.Context, e *AppError) error {
		retried++
		return nil
	})

	l.Handle(context.Background(), New(Validation, Error, "bad input").Retry())
	if retried != 0 {
		t.Errorf("VALIDATION errors must not auto-retry, got %d retries", retried)
	}
}

func TestResolvePending(t *testing.T) {
	l := testLedger(t, 10)

	l.Handle(context.Background(), New(Network, Error, "offline").Retry())
	l.Handle(context.Background(), New(Sync, Error, "conflict storm").Retry())
	l.Handle(context.Background(), New(Storage, Critical, "disk full").Retry())

	n := l.ResolvePending()
	if n != 2 {
		t.Errorf("expected 2 resolved entries, got %d", n)
	}
	// STORAGE errors are not resolved by a sync run.
	if len(l.Pending()) != 1 {
		t.Errorf("expected 1 remaining pending entry, got %d", len(l.Pending()))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Type
	}{
		{"app error keeps type", New(Auth, Error, "expired session"), Auth},
		{"wrapped app error", fmt.Errorf("context: %w", New(Sync, Error, "diverged")), Sync},
		{"not exist is storage", os.ErrNotExist, Storage},
		{"plain error", fmt.Errorf("boom"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClear(t *testing.T) {
	l := testLedger(t, 10)
	l.Handle(context.Background(), New(Unknown, Info, "x"))
	l.Clear()
	if l.Len() != 0 {
		t.Errorf("expected empty ledger, got %d", l.Len())
	}
}

func TestLedgerPersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()

	l := NewLedger(10, testLogger())
	l.Handle(ctx, New(Network, Error, "remote unreachable").Retry())
	l.Handle(ctx, New(Validation, Warning, "bad phone number"))
	if err := l.SaveTo(ctx, backend); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	restored := NewLedger(10, testLogger())
	if err := restored.LoadFrom(ctx, backend); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if restored.Len() != 2 {
		t.Fatalf("restored %d entries, want 2", restored.Len())
	}
	entries := restored.Entries()
	if entries[0].Type != Network || !entries[0].Retryable {
		t.Errorf("first entry = %+v", entries[0])
	}
	if len(restored.Pending()) != 1 {
		t.Errorf("pending = %d, want 1", len(restored.Pending()))
	}
}

func TestLedgerLoadFromMissingKey(t *testing.T) {
	l := NewLedger(10, testLogger())
	if err := l.LoadFrom(context.Background(), kv.NewMemory()); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("ledger has %d entries, want 0", l.Len())
	}
}

func TestLedgerLoadFromEnforcesBound(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()

	big := NewLedger(20, testLogger())
	for i := 0; i < 10; i++ {
		big.Handle(ctx, New(Unknown, Info, fmt.Sprintf("err-%d", i)))
	}
	if err := big.SaveTo(ctx, backend); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	small := NewLedger(3, testLogger())
	if err := small.LoadFrom(ctx, backend); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if small.Len() != 3 {
		t.Fatalf("restored %d entries, want 3", small.Len())
	}
	// The newest entries survive.
	if got := small.Entries()[0].Message; got != "err-7" {
		t.Errorf("oldest surviving entry = %q, want err-7", got)
	}
}
