package workflow

import (
	"fmt"
	"log/slog"
	"time"

	"needle/internal/config"
	"needle/internal/customformat"
	"needle/internal/decision"
	"needle/internal/decision/specs"
	"needle/internal/download"
	"needle/internal/downloadclient"
	"needle/internal/events"
	"needle/internal/fileops"
	"needle/internal/history"
	"needle/internal/identification"
	"needle/internal/importer"
	"needle/internal/indexer"
	"needle/internal/library"
	"needle/internal/quality"
)

// Services holds every collaborator built from one configuration.
type Services struct {
	Config     *config.Config
	Store      *library.Store
	Bus        *events.Bus
	History    *history.Service
	Profiles   map[int]*quality.Profile
	Indexers   []indexer.Indexer
	Clients    []downloadclient.Client
	Decisions  *decision.Maker
	Comparator *decision.Comparator
	Grabber    *download.Grabber
	Importer   *importer.Pipeline
	Reconciler *download.Reconciler
	Monitor    *download.Monitor
	Now        func() time.Time
}

// NewServices builds the decision, download and import services over store.
// A nil now uses the wall clock.
func NewServices(cfg *config.Config, store *library.Store, logger *slog.Logger, now func() time.Time) (*Services, error) {
	if cfg == nil || store == nil {
		return nil, fmt.Errorf("services require config and library store")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	profiles, err := quality.ProfilesFromConfig(cfg.QualityProfiles)
	if err != nil {
		return nil, fmt.Errorf("quality profiles: %w", err)
	}
	definitions, err := quality.DefinitionsFromConfig(cfg.Decisions.QualityDefinitions)
	if err != nil {
		return nil, fmt.Errorf("quality definitions: %w", err)
	}
	formats, err := customformat.FromConfig(cfg.CustomFormats)
	if err != nil {
		return nil, fmt.Errorf("custom formats: %w", err)
	}
	indexers, err := indexer.FromConfig(cfg.Indexers, logger, now)
	if err != nil {
		return nil, err
	}
	clients, err := downloadclient.FromConfig(cfg.DownloadClients, logger)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(logger)
	historySvc := history.NewService(store, logger, now)
	historySvc.Subscribe(bus)
	tracker := download.NewTracker()
	calculator := customformat.NewCalculator(formats)

	s := &Services{
		Config:   cfg,
		Store:    store,
		Bus:      bus,
		History:  historySvc,
		Profiles: profiles,
		Indexers: indexers,
		Clients:  clients,
		Now:      now,
	}

	s.Decisions = decision.NewMaker(decision.MakerOptions{
		Catalog: store,
		Specifications: specs.Default(specs.Dependencies{
			Decisions:     cfg.Decisions,
			Profiles:      profiles,
			Definitions:   definitions,
			DelayProfiles: cfg.DelayProfiles,
			Formats:       calculator,
			Files:         store,
			History:       historySvc,
			Queue:         tracker,
			Now:           now,
		}),
		Formats:  calculator,
		Profiles: profiles,
		Workers:  cfg.Workflow.EvaluationWorkers,
		Logger:   logger,
	})
	s.Comparator = decision.NewComparator(decision.ComparatorOptions{
		Profiles:      profiles,
		Definitions:   definitions,
		DelayProfiles: cfg.DelayProfiles,
		Propers:       cfg.Decisions.DownloadPropersAndRepacks,
		Now:           now,
	})
	s.Grabber = download.NewGrabber(download.GrabberOptions{
		Clients:  clients,
		Indexers: indexers,
		Bus:      bus,
		Now:      now,
		Logger:   logger,
	})

	var freeSpace func(string) (uint64, error)
	if !cfg.Import.SkipFreeSpaceCheck {
		freeSpace = fileops.FreeSpace
	}
	importDeps := importer.SpecDependencies{
		Import:     cfg.Import,
		LibraryDir: cfg.Paths.LibraryDir,
		Profiles:   profiles,
		Files:      store,
		History:    historySvc,
		FreeSpace:  freeSpace,
		Now:        now,
		Logger:     logger,
	}
	maker := importer.NewDecisionMaker(importer.MakerOptions{
		Identifier: identification.New(store, identification.Options{
			AlbumThreshold: cfg.Import.AlbumMatchThreshold,
			TrackThreshold: cfg.Import.TrackMatchThreshold,
			CacheTTL:       time.Duration(cfg.Import.IdentificationCacheTTL) * time.Second,
			Now:            now,
			Logger:         logger,
		}),
		Files:   store,
		Album:   importer.DefaultAlbumSpecifications(importDeps),
		Track:   importer.DefaultTrackSpecifications(importDeps),
		Workers: cfg.Workflow.EvaluationWorkers,
		Logger:  logger,
	})
	executor := importer.NewExecutor(importer.ExecutorOptions{
		Files: store,
		Mover: importer.DiskMover{
			RecycleBin: cfg.Paths.RecycleBin,
			Verify:     cfg.Import.VerifyCopies,
			Now:        now,
		},
		Bus:        bus,
		Profiles:   profiles,
		LibraryDir: cfg.Paths.LibraryDir,
		Now:        now,
		Logger:     logger,
	})
	s.Importer = importer.NewPipeline(maker, executor, cfg.Import, logger)

	s.Reconciler = download.NewReconciler(download.ReconcilerOptions{
		Tracker:  tracker,
		History:  historySvc,
		Catalog:  store,
		Files:    store,
		Importer: s.Importer,
		Bus:      bus,
		Now:      now,
		Logger:   logger,
	})
	s.Monitor = download.NewMonitor(download.MonitorOptions{
		Clients:         clients,
		Reconciler:      s.Reconciler,
		RemoveCompleted: cfg.Import.RemoveCompletedDownloads,
		Workers:         cfg.Workflow.EvaluationWorkers,
		Logger:          logger,
	})
	return s, nil
}
