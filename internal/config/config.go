package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	LibraryDir string `toml:"library_dir"`
	RecycleBin string `toml:"recycle_bin"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Workflow contains daemon timing. Intervals are seconds; zero disables a loop.
type Workflow struct {
	RSSSyncInterval      int `toml:"rss_sync_interval"`
	DownloadPollInterval int `toml:"download_poll_interval"`
	SearchInterval       int `toml:"search_interval"`
	ErrorRetryInterval   int `toml:"error_retry_interval"`
	EvaluationWorkers    int `toml:"evaluation_workers"`
}

// Decisions contains release acceptance policy shared by every quality profile.
type Decisions struct {
	DownloadPropersAndRepacks string              `toml:"download_propers_and_repacks"`
	MaximumSizeMB             int                 `toml:"maximum_size_mb"`
	RetentionDays             int                 `toml:"retention_days"`
	MinimumAgeMinutes         int                 `toml:"minimum_age_minutes"`
	RequiredTerms             []string            `toml:"required_terms"`
	IgnoredTerms              []string            `toml:"ignored_terms"`
	AllowedLanguages          []string            `toml:"allowed_languages"`
	QualityDefinitions        []QualityDefinition `toml:"quality_definitions"`
}

// QualityDefinition overrides the bitrate envelope of one quality. Values are kbit/s;
// zero leaves the bound open.
type QualityDefinition struct {
	Quality       string `toml:"quality"`
	MinKbps       int    `toml:"min_kbps"`
	MaxKbps       int    `toml:"max_kbps"`
	PreferredKbps int    `toml:"preferred_kbps"`
}

// Import contains configuration for library imports.
type Import struct {
	Mode                     string  `toml:"mode"`
	MinimumFreeSpaceMB       int     `toml:"minimum_free_space_mb"`
	SkipFreeSpaceCheck       bool    `toml:"skip_free_space_check"`
	VerifyCopies             bool    `toml:"verify_copies"`
	DeleteEmptyFolders       bool    `toml:"delete_empty_folders"`
	RemoveCompletedDownloads bool    `toml:"remove_completed_downloads"`
	AlbumMatchThreshold      float64 `toml:"album_match_threshold"`
	TrackMatchThreshold      float64 `toml:"track_match_threshold"`
	IdentificationCacheTTL   int     `toml:"identification_cache_ttl"`
}

// QualityProfile lists allowed qualities from least to most preferred.
type QualityProfile struct {
	ID                int            `toml:"id"`
	Name              string         `toml:"name"`
	UpgradeAllowed    bool           `toml:"upgrade_allowed"`
	Cutoff            string         `toml:"cutoff"`
	Qualities         []string       `toml:"qualities"`
	MinFormatScore    int            `toml:"min_format_score"`
	CutoffFormatScore int            `toml:"cutoff_format_score"`
	FormatScores      map[string]int `toml:"format_scores"`
}

// CustomFormat is a named set of conditions matched against releases.
type CustomFormat struct {
	Name       string                  `toml:"name"`
	Conditions []CustomFormatCondition `toml:"conditions"`
}

// CustomFormatCondition is one predicate of a custom format.
type CustomFormatCondition struct {
	Type     string  `toml:"type"`
	Value    string  `toml:"value"`
	MinGB    float64 `toml:"min_gb"`
	MaxGB    float64 `toml:"max_gb"`
	Negate   bool    `toml:"negate"`
	Required bool    `toml:"required"`
}

// DelayProfile chooses the preferred protocol for artists carrying its tags.
// A profile without tags is the default.
type DelayProfile struct {
	Tags              []string `toml:"tags"`
	PreferredProtocol string   `toml:"preferred_protocol"`
	EnableUsenet      bool     `toml:"enable_usenet"`
	EnableTorrent     bool     `toml:"enable_torrent"`
	Order             int      `toml:"order"`
}

// Indexer configures one release source.
type Indexer struct {
	Name           string `toml:"name"`
	Kind           string `toml:"kind"`
	Path           string `toml:"path"`
	Priority       int    `toml:"priority"`
	MinimumSeeders int    `toml:"minimum_seeders"`
	Enabled        bool   `toml:"enabled"`
}

// DownloadClient configures one download client.
type DownloadClient struct {
	Name         string `toml:"name"`
	Kind         string `toml:"kind"`
	Protocol     string `toml:"protocol"`
	WatchDir     string `toml:"watch_dir"`
	CompletedDir string `toml:"completed_dir"`
	Category     string `toml:"category"`
	Priority     int    `toml:"priority"`
	CanMoveFiles bool   `toml:"can_move_files"`
	Enabled      bool   `toml:"enabled"`
}

// Config encapsulates all configuration values for needle.
//
// Configuration sections by subsystem:
//   - Paths: data, log, library and recycle bin directories
//   - Logging: log format and level
//   - Workflow: daemon loop intervals and evaluation parallelism
//   - Decisions: release policy and quality bitrate envelopes
//   - Import: import mode, free space floor and matching thresholds
//   - QualityProfiles, CustomFormats, DelayProfiles: ranking preferences
//   - Indexers, DownloadClients: external collaborators
type Config struct {
	Paths           Paths            `toml:"paths"`
	Logging         Logging          `toml:"logging"`
	Workflow        Workflow         `toml:"workflow"`
	Decisions       Decisions        `toml:"decisions"`
	Import          Import           `toml:"import"`
	QualityProfiles []QualityProfile `toml:"quality_profiles"`
	CustomFormats   []CustomFormat   `toml:"custom_formats"`
	DelayProfiles   []DelayProfile   `toml:"delay_profiles"`
	Indexers        []Indexer        `toml:"indexers"`
	DownloadClients []DownloadClient `toml:"download_clients"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("needle.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to. The library
// directory is created on a best-effort basis so the daemon can start while
// external storage is offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	if strings.TrimSpace(c.Paths.RecycleBin) != "" {
		if err := os.MkdirAll(c.Paths.RecycleBin, 0o755); err != nil {
			return fmt.Errorf("create recycle bin %q: %w", c.Paths.RecycleBin, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the library database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "library.db")
}

// LockPath returns the location of the daemon's single-instance lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "needled.lock")
}

// QualityProfileByID returns the configured profile with the given id.
func (c *Config) QualityProfileByID(id int) (QualityProfile, bool) {
	for _, profile := range c.QualityProfiles {
		if profile.ID == id {
			return profile, true
		}
	}
	return QualityProfile{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
