// Package archive moves cold, synced records out of the active working
// set into compressed per-collection blobs, reversibly.
//
// Eligibility: an item is archivable when it is synced, not deleted, and
// its effective timestamp is older than the configured horizon. Archived
// items carry an archived_at marker that is stripped on restore.
//
// Each archive blob is capped; on overflow the oldest-archived entries
// are evicted first.
package archive

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/clinsync/clinsync/internal/errlog"
	"github.com/clinsync/clinsync/internal/kv"
	"github.com/clinsync/clinsync/internal/record"
	"github.com/clinsync/clinsync/internal/store"
)

// archivePrefix namespaces archive blobs inside the KV store.
const archivePrefix = "archive:"

// Settings configures an archiving run.
type Settings struct {
	Enabled          bool                   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	OlderThanDays    int                    `json:"older_than_days" yaml:"older_than_days" mapstructure:"older_than_days"`
	IncludeTypes     []record.CollectionKey `json:"include_types" yaml:"include_types" mapstructure:"include_types"`
	MaxArchivedItems int                    `json:"max_archived_items" yaml:"max_archived_items" mapstructure:"max_archived_items"`
}

// DefaultSettings archives synced records older than 90 days from every
// collection, keeping at most 1000 archived items per collection.
func DefaultSettings() Settings {
	return Settings{
		Enabled:          true,
		OlderThanDays:    90,
		IncludeTypes:     record.AllCollections(),
		MaxArchivedItems: 1000,
	}
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	if s.OlderThanDays <= 0 {
		return fmt.Errorf("older_than_days must be positive (got %d)", s.OlderThanDays)
	}
	if s.MaxArchivedItems <= 0 {
		return fmt.Errorf("max_archived_items must be positive (got %d)", s.MaxArchivedItems)
	}
	for _, key := range s.IncludeTypes {
		if !key.IsValid() {
			return fmt.Errorf("unknown collection: %s", key)
		}
	}
	return nil
}

// Result reports an archiving run.
type Result struct {
	Success       bool                         `json:"success"`
	Archived      int                          `json:"archived"`
	Evicted       int                          `json:"evicted"`
	PerCollection map[record.CollectionKey]int `json:"per_collection,omitempty"`
	Duration      time.Duration                `json:"duration"`
}

// Archiver moves records between the active store and the archive blobs.
type Archiver struct {
	store  *store.Store
	kv     kv.KV
	codec  Codec
	logger *log.Logger
	now    func() time.Time
}

// New creates an archiver. If codec is nil the gzip codec is used; if
// logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, backend kv.KV, codec Codec, logger *log.Logger) *Archiver {
	if codec == nil {
		codec = NewGzipCodec()
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[archive] ", log.LstdFlags)
	}
	return &Archiver{
		store:  st,
		kv:     backend,
		codec:  codec,
		logger: logger,
		now:    time.Now,
	}
}

// Key returns the KV key holding a collection's archive blob.
func Key(key record.CollectionKey) string {
	return archivePrefix + string(key)
}

// Run performs one archiving pass over the configured collections.
//
// For each collection the archive blob is written before the active set
// shrinks, so a failure mid-run never loses records: the total count
// across active and archive is invariant over a successful run.
func (a *Archiver) Run(ctx context.Context, settings Settings) (*Result, error) {
	start := a.now()
	res := &Result{PerCollection: make(map[record.CollectionKey]int)}

	if !settings.Enabled {
		a.logger.Println("Archiving disabled, skipping run")
		res.Success = true
		return res, nil
	}
	if err := settings.Validate(); err != nil {
		return nil, errlog.New(errlog.Validation, errlog.Error,
			fmt.Sprintf("invalid archive settings: %v", err))
	}

	cutoff := a.now().UTC().AddDate(0, 0, -settings.OlderThanDays)
	a.logger.Printf("Archiving records older than %s", cutoff.Format("2006-01-02"))

	for _, key := range settings.IncludeTypes {
		moved, evicted, err := a.archiveCollection(ctx, key, cutoff, settings.MaxArchivedItems)
		if err != nil {
			return nil, fmt.Errorf("failed to archive %s: %w", key, err)
		}
		if moved > 0 {
			res.PerCollection[key] = moved
		}
		res.Archived += moved
		res.Evicted += evicted
	}

	res.Success = true
	res.Duration = a.now().Sub(start)
	a.logger.Printf("Archive run complete: archived=%d evicted=%d in %v",
		res.Archived, res.Evicted, res.Duration.Round(time.Millisecond))
	return res, nil
}

// archiveCollection moves eligible items from one active collection into
// its archive blob. Returns (moved, evicted, error).
func (a *Archiver) archiveCollection(ctx context.Context, key record.CollectionKey, cutoff time.Time, max int) (int, int, error) {
	items, err := a.store.All(ctx, key)
	if err != nil {
		return 0, 0, err
	}

	var keep, eligible []*record.Item
	for _, it := range items {
		if it.Synced && !it.Deleted && it.EffectiveTime().Before(cutoff) {
			eligible = append(eligible, it)
		} else {
			keep = append(keep, it)
		}
	}
	if len(eligible) == 0 {
		return 0, 0, nil
	}

	archived, err := a.loadArchive(ctx, key)
	if err != nil {
		return 0, 0, err
	}

	archivedAt := a.now().UTC()
	for _, it := range eligible {
		moved := it.Clone()
		moved.ArchivedAt = &archivedAt
		archived = append(archived, moved)
	}

	// Oldest-archived-first eviction on overflow.
	evicted := 0
	if len(archived) > max {
		evicted = len(archived) - max
		archived = append([]*record.Item(nil), archived[evicted:]...)
	}

	// Archive first, then shrink the active set. If the second write
	// fails the worst case is a duplicate in the archive, never a loss.
	if err := a.saveArchive(ctx, key, archived); err != nil {
		return 0, 0, err
	}
	if err := a.store.Replace(ctx, key, keep); err != nil {
		return 0, 0, err
	}

	a.logger.Printf("Archived %d items from %s (evicted %d)", len(eligible), key, evicted)
	return len(eligible), evicted, nil
}

// Restore moves a single archived record back into the active store,
// with archival metadata stripped.
func (a *Archiver) Restore(ctx context.Context, key record.CollectionKey, id string) (*record.Item, error) {
	archived, err := a.loadArchive(ctx, key)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, it := range archived {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s/%s not in archive: %w", key, id, store.ErrNotFound)
	}

	restored := archived[idx].Clone()
	restored.ArchivedAt = nil

	remaining := append(archived[:idx:idx], archived[idx+1:]...)
	if err := a.store.Put(ctx, key, restored); err != nil {
		return nil, err
	}
	if err := a.saveArchive(ctx, key, remaining); err != nil {
		return nil, err
	}

	a.logger.Printf("Restored %s/%s from archive", key, id)
	return restored, nil
}

// Items returns the archived records of a collection, oldest first.
func (a *Archiver) Items(ctx context.Context, key record.CollectionKey) ([]*record.Item, error) {
	return a.loadArchive(ctx, key)
}

// Count returns the number of archived records in a collection.
func (a *Archiver) Count(ctx context.Context, key record.CollectionKey) (int, error) {
	archived, err := a.loadArchive(ctx, key)
	if err != nil {
		return 0, err
	}
	return len(archived), nil
}

// loadArchive reads and decompresses a collection's archive blob.
// A missing blob is an empty archive.
func (a *Archiver) loadArchive(ctx context.Context, key record.CollectionKey) ([]*record.Item, error) {
	raw, ok, err := a.kv.GetItem(ctx, Key(key))
	if err != nil {
		return nil, errlog.New(errlog.Storage, errlog.Error,
			fmt.Sprintf("failed to read archive %s: %v", key, err))
	}
	if !ok {
		return nil, nil
	}

	var items []*record.Item
	if err := a.codec.Decompress(raw, &items); err != nil {
		return nil, errlog.New(errlog.Storage, errlog.Error,
			fmt.Sprintf("failed to decompress archive %s: %v", key, err)).
			WithDetail("collection", string(key))
	}
	return items, nil
}

// saveArchive compresses and writes a collection's archive blob.
func (a *Archiver) saveArchive(ctx context.Context, key record.CollectionKey, items []*record.Item) error {
	if items == nil {
		items = []*record.Item{}
	}
	blob, err := a.codec.Compress(items)
	if err != nil {
		return errlog.New(errlog.Storage, errlog.Error,
			fmt.Sprintf("failed to compress archive %s: %v", key, err))
	}
	if err := a.kv.SetItem(ctx, Key(key), blob); err != nil {
		return errlog.New(errlog.Storage, errlog.Error,
			fmt.Sprintf("failed to write archive %s: %v", key, err))
	}
	return nil
}
