package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"needle/internal/config"
	"needle/internal/daemon"
	"needle/internal/testsupport"
	"needle/internal/workflow"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustSeedStore(t, cfg)
	s, err := workflow.NewServices(cfg, store, nil, nil)
	if err != nil {
		t.Fatalf("NewServices failed: %v", err)
	}
	mgr := workflow.NewManager(cfg, s, nil)
	d, err := daemon.New(cfg, s, nil, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RSSSyncInterval = 3600
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() || status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected paths %+v", status)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.DownloadPollInterval = 3600
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := second.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	first.Stop()

	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start after release failed: %v", err)
	}
	second.Stop()
}

func TestDaemonRunTask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.DownloadPollInterval = 3600
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.RunTask(ctx, "downloads"); err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}
	if st := d.Status().Workflow.Tasks; len(st) == 0 || st[0].Runs != 1 {
		t.Fatalf("expected one recorded run, got %+v", st)
	}
}
