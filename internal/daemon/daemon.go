package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofrs/flock"

	"needle/internal/config"
	"needle/internal/download"
	"needle/internal/library"
	"needle/internal/logging"
	"needle/internal/workflow"
)

// ErrAlreadyRunning reports that another daemon holds the data directory lock.
var ErrAlreadyRunning = errors.New("another needle daemon instance is already running")

// Daemon coordinates the background loops and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *library.Store
	services *workflow.Services
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	Downloads    []*download.TrackedDownload
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon over already-built services.
func New(cfg *config.Config, s *workflow.Services, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || s == nil || s.Store == nil || wf == nil {
		return nil, errors.New("daemon requires config, services, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    s.Store,
		services: s,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the workflow loops.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel
	d.running = true
	d.logger.Info("needle daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
	)
	return nil
}

// Stop stops the loops and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.cancel()
	d.cancel = nil
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running = false
	d.logger.Info("needle daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the library store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status reports the loops and the downloads currently tracked.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	return Status{
		Running:      running,
		Workflow:     d.workflow.Status(),
		Downloads:    d.services.Reconciler.Tracker().All(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// RunTask triggers one loop outside its schedule.
func (d *Daemon) RunTask(ctx context.Context, name string) error {
	return d.workflow.RunTask(ctx, name)
}

// ImportDownload reconciles one download of the live tracker now. With
// ignoreWarnings a download held as a warning is imported anyway.
func (d *Daemon) ImportDownload(ctx context.Context, client, downloadID string, ignoreWarnings bool) (*download.TrackedDownload, error) {
	d.logger.Info("download import requested",
		logging.String(logging.FieldClient, client),
		logging.String(logging.FieldDownloadID, downloadID),
		logging.Bool("ignore_warnings", ignoreWarnings),
	)
	return d.services.Monitor.ImportDownload(ctx, client, downloadID, download.ReconcileOptions{IgnoreWarnings: ignoreWarnings})
}
