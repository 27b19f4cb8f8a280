package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"

	"needle/internal/config"
	"needle/internal/daemon"
	"needle/internal/daemonctl"
	"needle/internal/fileops"
	"needle/internal/ipc"
	"needle/internal/library"
	"needle/internal/logging"
	"needle/internal/preflight"
	"needle/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the needle daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logCfg := *cfg
	if opts.LogLevel != "" {
		logCfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(&logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	for _, check := range preflight.Failed(preflight.RunAll(signalCtx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldImpact, "loops touching this path will fail until it is fixed"))
	}
	pidPath := daemonctl.PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := library.Open(cfg)
	if err != nil {
		logger.Error("open library store", logging.Error(err))
		return err
	}

	services, err := workflow.NewServices(cfg, store, logger, nil)
	if err != nil {
		store.Close()
		return fmt.Errorf("build services: %w", err)
	}
	manager := workflow.NewManager(cfg, services, logger)
	d, err := daemon.New(cfg, services, logger, manager)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check that no other daemon uses "+cfg.Paths.DataDir),
		)
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, ipc.SocketPath(cfg), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("needle daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("library_dir", cfg.Paths.LibraryDir),
		logging.String("database", cfg.DatabasePath()),
		logging.Int("indexers", len(cfg.Indexers)),
		logging.Int("download_clients", len(cfg.DownloadClients)),
		logging.Int("quality_profiles", len(cfg.QualityProfiles)),
		logging.String("import_mode", cfg.Import.Mode),
	}
	if free, err := fileops.FreeSpace(cfg.Paths.LibraryDir); err == nil {
		attrs = append(attrs, logging.String("library_free", humanize.IBytes(free)))
	}
	logger.Info("configuration snapshot", logging.Args(attrs...)...)
}
