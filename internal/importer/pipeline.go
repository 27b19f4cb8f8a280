package importer

import (
	"context"
	"log/slog"
	"os"

	"needle/internal/config"
	"needle/internal/downloadclient"
	"needle/internal/fileops"
	"needle/internal/logging"
	"needle/internal/services"
)

// ProcessOptions describes one import request for a path.
type ProcessOptions struct {
	Overrides   Overrides
	Item        *downloadclient.Item
	NewDownload bool
	// Mode overrides the configured import mode when set.
	Mode   string
	Filter bool
}

// Pipeline scans a path, decides and imports.
type Pipeline struct {
	maker    *DecisionMaker
	executor *Executor
	cfg      config.Import
	logger   *slog.Logger
}

// NewPipeline joins a decision maker and an executor.
func NewPipeline(maker *DecisionMaker, executor *Executor, cfg config.Import, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		maker:    maker,
		executor: executor,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "import_pipeline"),
	}
}

// Decide returns the decisions for every audio file under path without
// importing anything.
func (p *Pipeline) Decide(ctx context.Context, path string, opts ProcessOptions) ([]*Decision, error) {
	if err := fileops.CheckPathShape(path); err != nil {
		return nil, services.Wrap(services.ErrValidation, "import", "check path", path, err)
	}
	files, err := ScanAudioFiles(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "import", "scan", path, err)
		}
		return nil, services.Wrap(services.ErrTransient, "import", "scan", path, err)
	}
	if len(files) == 0 {
		p.logger.Info("no audio files found", logging.String(logging.FieldPath, path))
		return nil, nil
	}
	item := &ItemInfo{NewDownload: opts.NewDownload, Item: opts.Item}
	return p.maker.GetImportDecisions(ctx, files, opts.Overrides, item, Config{NewDownload: opts.NewDownload, Filter: opts.Filter})
}

// ProcessPath imports every audio file under path and returns one result per
// file. Empty folders left behind by a successful move are removed when
// configured.
func (p *Pipeline) ProcessPath(ctx context.Context, path string, opts ProcessOptions) ([]*Result, error) {
	decisions, err := p.Decide(ctx, path, opts)
	if err != nil || len(decisions) == 0 {
		return nil, err
	}
	mode := opts.Mode
	if mode == "" {
		mode = p.cfg.Mode
	}
	results := p.executor.Import(ctx, decisions, opts.NewDownload, opts.Item, mode)

	if opts.NewDownload && p.cfg.DeleteEmptyFolders && countType(results, Imported) > 0 {
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			removed, cleanErr := fileops.DeleteEmptyFolders(path)
			if cleanErr != nil {
				logging.WarnWithContext(p.logger, "empty folder cleanup failed", "import_cleanup_failed",
					logging.String(logging.FieldPath, path),
					logging.Error(cleanErr),
					logging.String(logging.FieldImpact, "empty download folders remain on disk"))
			} else if len(removed) > 0 {
				p.logger.Debug("removed empty folders", logging.String(logging.FieldPath, path), logging.Int("count", len(removed)))
			}
		}
	}
	return results, nil
}
