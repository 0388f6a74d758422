package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clinsync/clinsync/internal/record"
)

// Remote is the coordinator's view of the authoritative copy of record.
//
// The original system has no real backend; the concrete contract here is
// a deliberate decision: a remote is anything that can list, accept, and
// delete per-collection items. The directory-backed implementation below
// models a synced network share (one JSON file per record).
type Remote interface {
	// Ping verifies the remote is reachable.
	Ping(ctx context.Context) error

	// Pull returns the remote items of a collection.
	Pull(ctx context.Context, key record.CollectionKey) ([]*record.Item, error)

	// Push writes one item to the remote, replacing any existing copy.
	Push(ctx context.Context, key record.CollectionKey, item *record.Item) error

	// Delete removes one item from the remote.
	// Returns nil if the item doesn't exist (idempotent).
	Delete(ctx context.Context, key record.CollectionKey, id string) error
}

// DirRemote stores remote state as base/{collection}/{id}.json.
type DirRemote struct {
	base string
}

// NewDirRemote creates a directory-backed remote rooted at base.
func NewDirRemote(base string) *DirRemote {
	return &DirRemote{base: base}
}

// Base returns the remote's root directory.
func (r *DirRemote) Base() string {
	return r.base
}

// CollectionDir returns the directory holding a collection's files.
func (r *DirRemote) CollectionDir(key record.CollectionKey) string {
	return filepath.Join(r.base, string(key))
}

// Ping implements Remote.Ping.
func (r *DirRemote) Ping(ctx context.Context) error {
	if _, err := os.Stat(r.base); err != nil {
		return fmt.Errorf("remote unreachable at %s: %w", r.base, err)
	}
	return nil
}

// Pull implements Remote.Pull.
func (r *DirRemote) Pull(ctx context.Context, key record.CollectionKey) ([]*record.Item, error) {
	items, err := record.ReadAllItemFiles(r.CollectionDir(key))
	if err != nil {
		return nil, fmt.Errorf("failed to pull %s: %w", key, err)
	}
	return items, nil
}

// Push implements Remote.Push. The remote copy is authoritative, so it is
// always stored synced and undeleted.
func (r *DirRemote) Push(ctx context.Context, key record.CollectionKey, item *record.Item) error {
	remote := item.Clone()
	remote.Synced = true
	remote.Deleted = false
	remote.ArchivedAt = nil

	if err := record.WriteItemFile(r.CollectionDir(key), remote); err != nil {
		return fmt.Errorf("failed to push %s/%s: %w", key, item.ID, err)
	}
	return nil
}

// Delete implements Remote.Delete.
func (r *DirRemote) Delete(ctx context.Context, key record.CollectionKey, id string) error {
	path := filepath.Join(r.CollectionDir(key), id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s/%s: %w", key, id, err)
	}
	return nil
}
