// Package store implements the local item store: keyed collections of
// offline records persisted through the key-value primitive.
//
// Each collection is one KV entry holding a JSON-serialized array in
// insertion order. The store is the exclusive owner of those entries; the
// archiver and sync coordinator mutate collections only through the
// operations defined here.
//
// The store is safe for the single-writer model the data layer assumes;
// it is not designed for genuinely concurrent writers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/clinsync/clinsync/internal/errlog"
	"github.com/clinsync/clinsync/internal/kv"
	"github.com/clinsync/clinsync/internal/record"
)

// ErrNotFound is returned when a record is absent from the active set.
var ErrNotFound = errors.New("record not found")

// collectionPrefix namespaces active collections inside the KV store.
// The archive uses its own prefix; see the archive package.
const collectionPrefix = "collection:"

// Store owns the active collections.
type Store struct {
	kv     kv.KV
	logger *log.Logger
	now    func() time.Time
}

// New creates a store over the given KV backend.
// If logger is nil, a default logger writing to stderr is used.
func New(backend kv.KV, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	return &Store{
		kv:     backend,
		logger: logger,
		now:    time.Now,
	}
}

// Key returns the KV key holding the active collection.
func Key(key record.CollectionKey) string {
	return collectionPrefix + string(key)
}

// Get returns the active items of a collection in insertion order.
// Soft-deleted items are never visible here.
func (s *Store) Get(ctx context.Context, key record.CollectionKey) ([]*record.Item, error) {
	items, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	active := make([]*record.Item, 0, len(items))
	for _, it := range items {
		if it.Deleted {
			continue
		}
		active = append(active, it)
	}
	return active, nil
}

// All returns every item including soft-deleted ones. The sync
// coordinator needs deleted items to propagate remote deletions.
func (s *Store) All(ctx context.Context, key record.CollectionKey) ([]*record.Item, error) {
	return s.load(ctx, key)
}

// GetByID returns a single active item. Returns ErrNotFound when the id
// is absent or soft-deleted.
func (s *Store) GetByID(ctx context.Context, key record.CollectionKey, id string) (*record.Item, error) {
	items, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.ID == id && !it.Deleted {
			return it, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", key, id, ErrNotFound)
}

// Put upserts an item by ID. A put on a missing collection creates it.
// No schema validation happens here beyond the envelope; payload
// validation is a caller concern.
func (s *Store) Put(ctx context.Context, key record.CollectionKey, item *record.Item) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}

	items, err := s.load(ctx, key)
	if err != nil {
		return err
	}

	replaced := false
	for i, it := range items {
		if it.ID == item.ID {
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, item)
	}

	return s.save(ctx, key, items)
}

// SoftDelete marks a record deleted without removing it. The record stays
// in the collection, hidden from active reads, until a sync confirms the
// remote deletion and purges it.
// Returns ErrNotFound if the id is absent or already deleted.
func (s *Store) SoftDelete(ctx context.Context, key record.CollectionKey, id string) error {
	items, err := s.load(ctx, key)
	if err != nil {
		return err
	}

	for _, it := range items {
		if it.ID == id && !it.Deleted {
			it.Deleted = true
			it.UpdatedAt = s.now().UTC()
			it.Synced = false
			return s.save(ctx, key, items)
		}
	}
	return fmt.Errorf("%s/%s: %w", key, id, ErrNotFound)
}

// Purge physically removes a record. Only call after a sync confirmed the
// remote deletion. Purging a missing id is a no-op (idempotent).
func (s *Store) Purge(ctx context.Context, key record.CollectionKey, id string) error {
	items, err := s.load(ctx, key)
	if err != nil {
		return err
	}

	kept := items[:0]
	removed := false
	for _, it := range items {
		if it.ID == id {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	if !removed {
		return nil
	}
	return s.save(ctx, key, kept)
}

// Count returns the number of active items in a collection.
func (s *Store) Count(ctx context.Context, key record.CollectionKey) (int, error) {
	active, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

// Replace swaps the entire collection contents. Used by the archiver to
// move items out of (and back into) the active set.
func (s *Store) Replace(ctx context.Context, key record.CollectionKey, items []*record.Item) error {
	return s.save(ctx, key, items)
}

// load reads and decodes a collection. A missing key is an empty
// collection. A corrupted value triggers best-effort recovery: the key is
// cleared, then a CRITICAL STORAGE error surfaces.
func (s *Store) load(ctx context.Context, key record.CollectionKey) ([]*record.Item, error) {
	raw, ok, err := s.kv.GetItem(ctx, Key(key))
	if err != nil {
		return nil, errlog.New(errlog.Storage, errlog.Error,
			fmt.Sprintf("failed to read collection %s: %v", key, err))
	}
	if !ok {
		return nil, nil
	}

	var items []*record.Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Printf("Collection %s is corrupted, clearing: %v", key, err)
		if rmErr := s.kv.RemoveItem(ctx, Key(key)); rmErr != nil {
			s.logger.Printf("Recovery failed for %s: %v", key, rmErr)
		}
		return nil, errlog.New(errlog.Storage, errlog.Critical,
			fmt.Sprintf("collection %s was corrupted and has been cleared", key)).
			WithDetail("collection", string(key))
	}
	return items, nil
}

// save encodes and writes a collection.
func (s *Store) save(ctx context.Context, key record.CollectionKey, items []*record.Item) error {
	if items == nil {
		items = []*record.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return errlog.New(errlog.Storage, errlog.Error,
			fmt.Sprintf("failed to encode collection %s: %v", key, err))
	}
	if err := s.kv.SetItem(ctx, Key(key), string(data)); err != nil {
		return errlog.New(errlog.Storage, errlog.Error,
			fmt.Sprintf("failed to write collection %s: %v", key, err))
	}
	return nil
}
