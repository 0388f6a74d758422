package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinsync/clinsync/internal/archive"
	"github.com/clinsync/clinsync/internal/clinsync"
	"github.com/clinsync/clinsync/internal/config"
	"github.com/clinsync/clinsync/internal/errlog"
	"github.com/clinsync/clinsync/internal/kv"
	"github.com/clinsync/clinsync/internal/logging"
	"github.com/clinsync/clinsync/internal/netstatus"
	"github.com/clinsync/clinsync/internal/store"
	"github.com/clinsync/clinsync/internal/syncer"
)

// env bundles the wired-up components most commands need.
type env struct {
	dataDir string
	cfg     config.Config
	backend kv.KV
	store   *store.Store
	remote  *syncer.DirRemote
	checker netstatus.Checker
	ledger  *errlog.Ledger
}

// openEnv locates the data directory, loads config, and opens the store.
// The caller must call close() when done.
func openEnv(cmd *cobra.Command) (*env, error) {
	dataDir, _ := cmd.Flags().GetString("dir")
	if dataDir == "" {
		dataDir = clinsync.FindDataDir()
	}
	if dataDir == "" {
		return nil, fmt.Errorf("no %s directory found (run 'clinsync init' first)", clinsync.DirName)
	}

	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}

	backend, err := kv.OpenSQLite(clinsync.CachePath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	e := &env{
		dataDir: dataDir,
		cfg:     cfg,
		backend: backend,
		store:   store.New(backend, logging.New("[store] ", cfg.Log)),
		ledger:  errlog.NewLedger(cfg.MaxErrorLog, logging.New("[errlog] ", cfg.Log)),
	}
	if err := e.ledger.LoadFrom(cmd.Context(), backend); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if cfg.RemoteDir != "" {
		e.remote = syncer.NewDirRemote(cfg.RemoteDir)
		e.checker = e.newChecker()
	}
	return e, nil
}

// newChecker builds the connectivity probe: TCP dial when probe_addr is
// set, otherwise reachability of the remote directory.
func (e *env) newChecker() netstatus.Checker {
	if e.cfg.ProbeAddr != "" {
		return &netstatus.DialChecker{Addr: e.cfg.ProbeAddr}
	}
	return &netstatus.PathChecker{Path: e.cfg.RemoteDir}
}

// coordinator builds a sync coordinator, or errors when no remote is
// configured. The ledger's immediate-retry path is pointed back at the
// coordinator so retryable errors recorded while online replay at once.
func (e *env) coordinator(logger *log.Logger) (*syncer.Coordinator, error) {
	if e.remote == nil {
		return nil, fmt.Errorf("no remote_dir configured in %s", config.FileName)
	}
	coord := syncer.New(e.store, e.remote, e.checker, e.ledger, logger)
	e.ledger.SetRetry(e.checker, coord.RetryFunc())
	return coord, nil
}

// archiver builds an archiver over the same store and backend.
func (e *env) archiver() *archive.Archiver {
	return archive.New(e.store, e.backend, nil, logging.New("[archive] ", e.cfg.Log))
}

func (e *env) close() {
	if err := e.ledger.SaveTo(context.Background(), e.backend); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := e.backend.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
	}
}
