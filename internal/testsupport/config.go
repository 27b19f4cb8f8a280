package testsupport

import (
	"path/filepath"
	"testing"

	"needle/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.QualityProfiles = config.DefaultQualityProfiles()
	cfgVal.DelayProfiles = config.DefaultDelayProfiles()
	cfgVal.Import.SkipFreeSpaceCheck = true

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithRecycleBin enables the recycle bin under the test's temp root.
func WithRecycleBin() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.RecycleBin = filepath.Join(b.baseDir, "recycle")
	}
}

// WithImportMode overrides the import mode.
func WithImportMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Import.Mode = mode
	}
}

// WithBlackhole registers an enabled blackhole client for protocol with
// watch and completed folders under the test's temp root.
func WithBlackhole(name, protocol string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.DownloadClients = append(b.cfg.DownloadClients, config.DownloadClient{
			Name:         name,
			Kind:         config.DownloadClientBlackhole,
			Protocol:     protocol,
			WatchDir:     filepath.Join(b.baseDir, name, "watch"),
			CompletedDir: filepath.Join(b.baseDir, name, "completed"),
			Category:     "music",
			Enabled:      true,
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
