// Package syncer implements the sync coordinator: it reconciles the local
// item store against a remote, resolving divergence with last-writer-wins
// by updated_at (ties prefer the remote copy; the server is the authority
// of record).
//
// Per-record lifecycle:
//
//	LOCAL_ONLY -> PENDING_SYNC -> SYNCED
//	              PENDING_SYNC -> CONFLICT -> SYNCED
//
// A run is idempotent: running twice with no intervening local changes is
// a no-op. Connectivity is re-checked at the start of every run; absence
// aborts immediately with a NETWORK-typed retryable error and no item is
// mutated.
package syncer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/clinsync/clinsync/internal/errlog"
	"github.com/clinsync/clinsync/internal/netstatus"
	"github.com/clinsync/clinsync/internal/record"
	"github.com/clinsync/clinsync/internal/store"
)

// Transition records one item's state change during a run.
type Transition struct {
	Collection record.CollectionKey `json:"collection"`
	ID         string               `json:"id"`
	From       record.SyncState     `json:"from"`
	To         record.SyncState     `json:"to"`
}

// Result reports a completed sync run.
type Result struct {
	Pushed      int           `json:"pushed"`
	Pulled      int           `json:"pulled"`
	Conflicts   int           `json:"conflicts"`
	Deleted     int           `json:"deleted"`
	Transitions []Transition  `json:"transitions,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Total returns the number of items touched by the run.
func (r *Result) Total() int {
	return r.Pushed + r.Pulled + r.Conflicts + r.Deleted
}

// Coordinator reconciles the local store with a remote.
type Coordinator struct {
	store       *store.Store
	remote      Remote
	checker     netstatus.Checker
	ledger      *errlog.Ledger
	collections []record.CollectionKey
	logger      *log.Logger
}

// New creates a coordinator covering every known collection.
// If logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, remote Remote, checker netstatus.Checker, ledger *errlog.Ledger, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Coordinator{
		store:       st,
		remote:      remote,
		checker:     checker,
		ledger:      ledger,
		collections: record.AllCollections(),
		logger:      logger,
	}
}

// RetryFunc returns a ledger retry callback that replays a failed
// operation as one full sync pass. Re-entrant calls are rejected so a
// sync that fails mid-retry cannot recurse through the ledger back into
// itself.
func (c *Coordinator) RetryFunc() errlog.RetryFunc {
	var retrying atomic.Bool
	return func(ctx context.Context, _ *errlog.AppError) error {
		if !retrying.CompareAndSwap(false, true) {
			return fmt.Errorf("sync retry already in progress")
		}
		defer retrying.Store(false)
		_, err := c.Sync(ctx)
		return err
	}
}

// Sync performs one full reconciliation pass. Triggered manually (CLI) or
// on reconnect (daemon); there are no background timers.
func (c *Coordinator) Sync(ctx context.Context) (*Result, error) {
	start := time.Now()

	// Re-check connectivity regardless of the last known state.
	if c.checker != nil && !c.checker.Check(ctx) {
		e := errlog.New(errlog.Network, errlog.Error, "sync aborted: no connectivity").Retry()
		if c.ledger != nil {
			c.ledger.Handle(ctx, e)
		}
		return nil, e
	}
	if err := c.remote.Ping(ctx); err != nil {
		e := errlog.New(errlog.Network, errlog.Error,
			fmt.Sprintf("sync aborted: remote unreachable: %v", err)).Retry()
		if c.ledger != nil {
			c.ledger.Handle(ctx, e)
		}
		return nil, e
	}

	res := &Result{}
	for _, key := range c.collections {
		if err := c.syncCollection(ctx, key, res); err != nil {
			if c.ledger != nil {
				c.ledger.HandleError(ctx, err, errlog.Error)
			}
			return nil, fmt.Errorf("failed to sync %s: %w", key, err)
		}
	}

	// The completed run is the retry for earlier connectivity failures.
	if c.ledger != nil {
		if n := c.ledger.ResolvePending(); n > 0 {
			c.logger.Printf("Resolved %d pending retryable errors", n)
		}
	}

	res.Duration = time.Since(start)
	c.logger.Printf("Sync complete: pushed=%d pulled=%d conflicts=%d deleted=%d in %v",
		res.Pushed, res.Pulled, res.Conflicts, res.Deleted, res.Duration.Round(time.Millisecond))
	return res, nil
}

// syncCollection reconciles one collection.
func (c *Coordinator) syncCollection(ctx context.Context, key record.CollectionKey, res *Result) error {
	locals, err := c.store.All(ctx, key)
	if err != nil {
		return err
	}
	remotes, err := c.remote.Pull(ctx, key)
	if err != nil {
		return errlog.New(errlog.Sync, errlog.Error,
			fmt.Sprintf("failed to pull %s: %v", key, err)).Retry()
	}

	remoteByID := make(map[string]*record.Item, len(remotes))
	for _, it := range remotes {
		remoteByID[it.ID] = it
	}
	localIDs := make(map[string]bool, len(locals))

	for _, local := range locals {
		localIDs[local.ID] = true

		switch {
		case local.Deleted:
			// A remote write that post-dates the delete is the last
			// writer: the record comes back instead of being destroyed.
			if remote, ok := remoteByID[local.ID]; ok && remote.UpdatedAt.After(local.UpdatedAt) {
				if err := c.adopt(ctx, key, remote); err != nil {
					return err
				}
				res.Conflicts++
				res.Transitions = append(res.Transitions,
					Transition{Collection: key, ID: local.ID, From: record.StateConflict, To: record.StateSynced})
				c.logger.Printf("Conflict on %s/%s: newer remote write resurrects deleted record", key, local.ID)
				continue
			}

			// Propagate the deletion, then drop the tombstone.
			if err := c.remote.Delete(ctx, key, local.ID); err != nil {
				return errlog.New(errlog.Sync, errlog.Error,
					fmt.Sprintf("failed to delete %s/%s remotely: %v", key, local.ID, err)).Retry()
			}
			if err := c.store.Purge(ctx, key, local.ID); err != nil {
				return err
			}
			res.Deleted++
			c.logger.Printf("Deleted %s/%s (local + remote)", key, local.ID)

		case !local.Synced:
			if err := c.reconcilePending(ctx, key, local, remoteByID[local.ID], res); err != nil {
				return err
			}

		default:
			// Synced locally. Adopt a newer remote copy; re-push a copy
			// the remote lost.
			remote, ok := remoteByID[local.ID]
			if !ok {
				if err := c.remote.Push(ctx, key, local); err != nil {
					return errlog.New(errlog.Sync, errlog.Error,
						fmt.Sprintf("failed to push %s/%s: %v", key, local.ID, err)).Retry()
				}
				res.Pushed++
				c.logger.Printf("Re-pushed %s/%s (missing remotely)", key, local.ID)
				continue
			}
			if remote.UpdatedAt.After(local.UpdatedAt) {
				if err := c.adopt(ctx, key, remote); err != nil {
					return err
				}
				res.Pulled++
				c.logger.Printf("Pulled newer %s/%s", key, local.ID)
			}
		}
	}

	// Records present remotely but unknown locally.
	for _, remote := range remotes {
		if localIDs[remote.ID] {
			continue
		}
		if err := c.adopt(ctx, key, remote); err != nil {
			return err
		}
		res.Pulled++
		c.logger.Printf("Pulled new %s/%s", key, remote.ID)
	}

	return nil
}

// reconcilePending handles an unsynced local item.
func (c *Coordinator) reconcilePending(ctx context.Context, key record.CollectionKey, local, remote *record.Item, res *Result) error {
	from := local.State()

	// No remote copy, or the copies already agree: push is the happy path.
	if remote == nil {
		if err := c.push(ctx, key, local); err != nil {
			return err
		}
		res.Pushed++
		res.Transitions = append(res.Transitions, Transition{Collection: key, ID: local.ID, From: from, To: record.StateSynced})
		return nil
	}

	switch {
	case remote.UpdatedAt.After(local.UpdatedAt):
		// Conflict, remote is newer: remote wins.
		if err := c.adopt(ctx, key, remote); err != nil {
			return err
		}
		res.Conflicts++
		res.Transitions = append(res.Transitions,
			Transition{Collection: key, ID: local.ID, From: record.StateConflict, To: record.StateSynced})
		c.logger.Printf("Conflict on %s/%s: remote wins (newer)", key, local.ID)

	case remote.UpdatedAt.Equal(local.UpdatedAt) && !bytes.Equal(remote.Fields, local.Fields):
		// Conflict, timestamps tie: the server is the authority of record.
		if err := c.adopt(ctx, key, remote); err != nil {
			return err
		}
		res.Conflicts++
		res.Transitions = append(res.Transitions,
			Transition{Collection: key, ID: local.ID, From: record.StateConflict, To: record.StateSynced})
		c.logger.Printf("Conflict on %s/%s: remote wins (tie)", key, local.ID)

	case remote.UpdatedAt.Equal(local.UpdatedAt):
		// Same timestamp, same payload: just settle the flag.
		local.Synced = true
		if err := c.store.Put(ctx, key, local); err != nil {
			return err
		}
		res.Transitions = append(res.Transitions, Transition{Collection: key, ID: local.ID, From: from, To: record.StateSynced})

	default:
		// Local is newer: last writer wins, push.
		if err := c.push(ctx, key, local); err != nil {
			return err
		}
		res.Pushed++
		res.Transitions = append(res.Transitions, Transition{Collection: key, ID: local.ID, From: from, To: record.StateSynced})
	}

	return nil
}

// push writes the local copy to the remote and settles the synced flag.
func (c *Coordinator) push(ctx context.Context, key record.CollectionKey, item *record.Item) error {
	if err := c.remote.Push(ctx, key, item); err != nil {
		return errlog.New(errlog.Sync, errlog.Error,
			fmt.Sprintf("failed to push %s/%s: %v", key, item.ID, err)).Retry()
	}
	item.Synced = true
	return c.store.Put(ctx, key, item)
}

// adopt replaces the local copy with the remote one.
func (c *Coordinator) adopt(ctx context.Context, key record.CollectionKey, remote *record.Item) error {
	adopted := remote.Clone()
	adopted.Synced = true
	adopted.Deleted = false
	return c.store.Put(ctx, key, adopted)
}
