// Package daemon provides the background process that keeps the local
// store reconciled with the remote.
//
// The daemon:
//  1. Performs an initial sync when the remote is reachable
//  2. Watches the remote collection directories for changes
//  3. Re-syncs on reconnect and replays the error ledger
//  4. Periodically runs the archiver
//  5. Handles graceful shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/clinsync/clinsync/internal/archive"
	"github.com/clinsync/clinsync/internal/errlog"
	"github.com/clinsync/clinsync/internal/netstatus"
	"github.com/clinsync/clinsync/internal/record"
	"github.com/clinsync/clinsync/internal/syncer"
)

// Notifier receives daemon lifecycle events. The dashboard implements
// this to broadcast them to connected clients.
type Notifier interface {
	SyncCompleted(res *syncer.Result)
	ArchiveCompleted(res *archive.Result)
	ErrorOccurred(e *errlog.AppError)
	StatusChanged(online bool)
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long to wait before reacting to remote
	// file changes, batching rapid updates together.
	DebounceInterval time.Duration

	// ArchiveInterval is how often to run the archiver. Zero disables
	// periodic archiving.
	ArchiveInterval time.Duration

	// ArchiveSettings controls what the periodic runs archive.
	ArchiveSettings archive.Settings

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 2 * time.Second,
		ArchiveInterval:  time.Hour,
		ArchiveSettings:  archive.DefaultSettings(),
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates remote watching, syncing, and archiving.
type Daemon struct {
	coordinator *syncer.Coordinator
	remote      *syncer.DirRemote
	monitor     *netstatus.Monitor
	archiver    *archive.Archiver
	ledger      *errlog.Ledger
	notifier    Notifier
	config      *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance. notifier may be nil.
// Use Start() to begin watching and syncing.
func New(coordinator *syncer.Coordinator, remote *syncer.DirRemote, monitor *netstatus.Monitor, archiver *archive.Archiver, ledger *errlog.Ledger, notifier Notifier, config *Config) (*Daemon, error) {
	if coordinator == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		coordinator: coordinator,
		remote:      remote,
		monitor:     monitor,
		archiver:    archiver,
		ledger:      ledger,
		notifier:    notifier,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// This blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	var updates <-chan netstatus.Change
	if d.monitor != nil {
		updates = d.monitor.Subscribe()
		if err := d.monitor.Start(); err != nil {
			return fmt.Errorf("failed to start connectivity monitor: %w", err)
		}
	}

	// Initial sync; offline is not fatal, the reconnect path retries.
	d.runSync()

	for _, key := range record.AllCollections() {
		dir := d.remote.CollectionDir(key)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := d.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		d.config.Logger.Printf("Watching: %s", dir)
	}

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.processChangeQueue()
	go d.watchConnectivity(updates)
	if d.archiver != nil && d.config.ArchiveInterval > 0 {
		d.wg.Add(1)
		go d.runArchiveLoop()
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}
	if d.monitor != nil {
		d.monitor.Stop()
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// runSync performs one reconciliation pass and reports the outcome.
func (d *Daemon) runSync() {
	res, err := d.coordinator.Sync(d.ctx)
	if err != nil {
		d.config.Logger.Printf("Sync failed: %v", err)
		if d.notifier != nil {
			var appErr *errlog.AppError
			if errors.As(err, &appErr) {
				d.notifier.ErrorOccurred(appErr)
			}
		}
		return
	}
	if d.notifier != nil {
		d.notifier.SyncCompleted(res)
	}
}

// watchFileEvents monitors filesystem events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			// Only care about Create, Write, Remove
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) == 0 {
				continue
			}

			// Only process .json files
			if filepath.Ext(event.Name) != ".json" {
				continue
			}

			d.config.Logger.Printf("Remote change: %s %s", event.Op, event.Name)
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue triggers a sync once queued changes settle.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	interval := d.config.DebounceInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if d.drainSettledChanges() {
				d.runSync()
			}
		}
	}
}

// drainSettledChanges removes queue entries older than the debounce
// interval and reports whether any were drained.
func (d *Daemon) drainSettledChanges() bool {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	now := time.Now()
	drained := false
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		delete(d.changeQueue, path)
		drained = true
	}
	return drained
}

// watchConnectivity re-syncs when the connection comes back.
func (d *Daemon) watchConnectivity(updates <-chan netstatus.Change) {
	defer d.wg.Done()

	if updates == nil {
		return
	}

	for {
		select {
		case <-d.ctx.Done():
			return

		case change, ok := <-updates:
			if !ok {
				return
			}
			if d.notifier != nil {
				d.notifier.StatusChanged(change.Online)
			}
			if change.Online {
				d.config.Logger.Println("Back online, syncing")
				if d.ledger != nil {
					if n := len(d.ledger.Pending()); n > 0 {
						d.config.Logger.Printf("Replaying %d pending errors", n)
					}
				}
				d.runSync()
			} else {
				d.config.Logger.Println("Connection lost")
			}
		}
	}
}

// runArchiveLoop periodically runs the archiver.
func (d *Daemon) runArchiveLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ArchiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			res, err := d.archiver.Run(d.ctx, d.config.ArchiveSettings)
			if err != nil {
				d.config.Logger.Printf("Archive run failed: %v", err)
				continue
			}
			if res.Archived > 0 || res.Evicted > 0 {
				d.config.Logger.Printf("Archived %d items (%d evicted)", res.Archived, res.Evicted)
			}
			if d.notifier != nil {
				d.notifier.ArchiveCompleted(res)
			}
		}
	}
}
