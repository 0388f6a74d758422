// Package errlog provides the application error taxonomy and the bounded
// error/retry ledger.
//
// Every failure in the data layer is recorded as an AppError with a closed
// type and severity. The ledger is an append-only ring buffer: entries are
// only ever mutated by flipping the handled flag, and only ever removed by
// an explicit clear or by capacity eviction (oldest first).
package errlog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinsync/clinsync/internal/netstatus"
)

// Type classifies an AppError.
type Type string

const (
	Network    Type = "NETWORK"
	Storage    Type = "STORAGE"
	Validation Type = "VALIDATION"
	Sync       Type = "SYNC"
	Auth       Type = "AUTH"
	Unknown    Type = "UNKNOWN"
)

// Severity grades an AppError.
type Severity string

const (
	Info     Severity = "INFO"
	Warning  Severity = "WARNING"
	Error    Severity = "ERROR"
	Critical Severity = "CRITICAL"
)

// DefaultMaxLogSize bounds the ledger when no explicit capacity is given.
const DefaultMaxLogSize = 100

// AppError is a structured, classified failure record.
type AppError struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	Severity  Severity          `json:"severity"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Handled   bool              `json:"handled"`
	Retryable bool              `json:"retryable"`
	Details   map[string]string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Type, e.Severity, e.Message)
}

// New builds an AppError. ID and timestamp are filled when the entry is
// handed to a ledger; callers may leave them zero.
func New(typ Type, sev Severity, msg string) *AppError {
	return &AppError{Type: typ, Severity: sev, Message: msg}
}

// WithDetail attaches one structured detail and returns the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Retry marks the error retryable and returns it.
func (e *AppError) Retry() *AppError {
	e.Retryable = true
	return e
}

// Classify maps an arbitrary error to a Type. A wrapped *AppError keeps
// its own type; net errors map to NETWORK; everything else is UNKNOWN.
func Classify(err error) Type {
	var app *AppError
	if errors.As(err, &app) {
		return app.Type
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Network
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return Storage
	}
	return Unknown
}

// RetryFunc replays the action behind a retryable error. A nil return
// marks the entry handled.
type RetryFunc func(ctx context.Context, e *AppError) error

// Ledger is the bounded append-only error log.
type Ledger struct {
	mu      sync.Mutex
	entries []*AppError
	max     int

	checker netstatus.Checker
	retry   RetryFunc

	logger *log.Logger
	now    func() time.Time
}

// NewLedger creates a ledger bounded at max entries (DefaultMaxLogSize
// when max <= 0). If logger is nil, a default stderr logger is used.
func NewLedger(max int, logger *log.Logger) *Ledger {
	if max <= 0 {
		max = DefaultMaxLogSize
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[errlog] ", log.LstdFlags)
	}
	return &Ledger{
		max:    max,
		logger: logger,
		now:    time.Now,
	}
}

// SetRetry installs the connectivity checker and retry callback used for
// immediate replay of retryable NETWORK/SYNC errors.
func (l *Ledger) SetRetry(checker netstatus.Checker, fn RetryFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checker = checker
	l.retry = fn
}

// Handle records the error and, for retryable NETWORK/SYNC entries,
// retries immediately when connectivity is currently available. When the
// immediate retry succeeds the entry is marked handled; otherwise it stays
// pending for the next explicit sync trigger. No background timers.
//
// The entry is returned with ID and timestamp filled.
func (l *Ledger) Handle(ctx context.Context, e *AppError) *AppError {
	l.mu.Lock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	l.append(e)
	checker := l.checker
	retry := l.retry
	l.mu.Unlock()

	l.logger.Printf("%s %s: %s (retryable=%v)", e.Severity, e.Type, e.Message, e.Retryable)

	if !e.Retryable || (e.Type != Network && e.Type != Sync) {
		return e
	}
	if checker == nil || retry == nil || !checker.Check(ctx) {
		return e
	}

	if err := retry(ctx, e); err != nil {
		l.logger.Printf("Immediate retry failed for %s: %v", e.ID, err)
		return e
	}

	l.mu.Lock()
	e.Handled = true
	l.mu.Unlock()
	l.logger.Printf("Immediate retry succeeded for %s", e.ID)
	return e
}

// HandleError wraps an arbitrary error in an AppError via Classify and
// records it.
func (l *Ledger) HandleError(ctx context.Context, err error, sev Severity) *AppError {
	var app *AppError
	if errors.As(err, &app) {
		return l.Handle(ctx, app)
	}
	e := New(Classify(err), sev, err.Error())
	if e.Type == Network {
		e.Retryable = true
	}
	return l.Handle(ctx, e)
}

// append adds an entry, evicting the oldest when over capacity.
// Caller must hold l.mu.
func (l *Ledger) append(e *AppError) {
	l.entries = append(l.entries, e)
	if len(l.entries) > l.max {
		drop := len(l.entries) - l.max
		l.entries = append([]*AppError(nil), l.entries[drop:]...)
	}
}

// MarkHandled flips the handled flag on the entry with the given ID.
// Returns an error if the entry is not in the ledger.
func (l *Ledger) MarkHandled(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.ID == id {
			e.Handled = true
			return nil
		}
	}
	return fmt.Errorf("error %s not found in ledger", id)
}

// Entries returns a snapshot of the ledger, oldest first.
func (l *Ledger) Entries() []*AppError {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*AppError, len(l.entries))
	copy(out, l.entries)
	return out
}

// Pending returns unhandled retryable entries, oldest first.
func (l *Ledger) Pending() []*AppError {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*AppError
	for _, e := range l.entries {
		if e.Retryable && !e.Handled {
			out = append(out, e)
		}
	}
	return out
}

// ResolvePending marks unhandled retryable NETWORK/SYNC entries handled.
// Called after a successful sync run, which is itself the retry for those
// failures. Returns the number of entries resolved.
func (l *Ledger) ResolvePending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.entries {
		if e.Retryable && !e.Handled && (e.Type == Network || e.Type == Sync) {
			e.Handled = true
			n++
		}
	}
	return n
}

// Len returns the current number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
