package config

const (
	defaultConfigPath                = "~/.config/needle/config.toml"
	defaultDataDir                   = "~/.local/share/needle"
	defaultLogDir                    = "~/.local/share/needle/logs"
	defaultLibraryDir                = "~/music"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultRSSSyncInterval           = 900
	defaultDownloadPollInterval      = 60
	defaultSearchInterval            = 0
	defaultErrorRetryInterval        = 30
	defaultEvaluationWorkers         = 4
	defaultPropersAndRepacks         = PropersPreferAndUpgrade
	defaultImportMode                = ImportModeAuto
	defaultMinimumFreeSpaceMB        = 100
	defaultAlbumMatchThreshold       = 0.2
	defaultTrackMatchThreshold       = 0.4
	defaultIdentificationCacheTTL    = 600
	defaultIndexerPriority           = 25
	defaultDownloadClientPriority    = 1
	defaultDelayProfilePreferredProt = ProtocolTorrent
)

// Accepted values for decisions.download_propers_and_repacks.
const (
	PropersPreferAndUpgrade = "prefer_and_upgrade"
	PropersDoNotUpgrade     = "do_not_upgrade"
	PropersDoNotPrefer      = "do_not_prefer"
)

// Accepted values for import.mode.
const (
	ImportModeAuto = "auto"
	ImportModeMove = "move"
	ImportModeCopy = "copy"
)

// Accepted protocol names.
const (
	ProtocolTorrent = "torrent"
	ProtocolUsenet  = "usenet"
)

// Accepted kinds for indexers and download clients.
const (
	IndexerKindStatic        = "static"
	DownloadClientBlackhole  = "blackhole"
	ConditionReleaseTitle    = "release_title"
	ConditionReleaseGroup    = "release_group"
	ConditionSize            = "size"
	ConditionProtocol        = "protocol"
	defaultProfileAnyID      = 1
	defaultProfileLosslessID = 2
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			LibraryDir: defaultLibraryDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Workflow: Workflow{
			RSSSyncInterval:      defaultRSSSyncInterval,
			DownloadPollInterval: defaultDownloadPollInterval,
			SearchInterval:       defaultSearchInterval,
			ErrorRetryInterval:   defaultErrorRetryInterval,
			EvaluationWorkers:    defaultEvaluationWorkers,
		},
		Decisions: Decisions{
			DownloadPropersAndRepacks: defaultPropersAndRepacks,
		},
		Import: Import{
			Mode:                   defaultImportMode,
			MinimumFreeSpaceMB:     defaultMinimumFreeSpaceMB,
			VerifyCopies:           true,
			DeleteEmptyFolders:     true,
			AlbumMatchThreshold:    defaultAlbumMatchThreshold,
			TrackMatchThreshold:    defaultTrackMatchThreshold,
			IdentificationCacheTTL: defaultIdentificationCacheTTL,
		},
	}
}

// DefaultQualityProfiles returns the profiles used when the config file defines none.
func DefaultQualityProfiles() []QualityProfile {
	return []QualityProfile{
		{
			ID:             defaultProfileAnyID,
			Name:           "Any",
			UpgradeAllowed: true,
			Cutoff:         "FLAC",
			Qualities: []string{
				"MP3-128", "MP3-160", "MP3-192", "AAC-192", "MP3-VBR-V2", "MP3-256", "AAC-256",
				"MP3-VBR-V0", "MP3-320", "AAC-320", "ALAC", "FLAC", "FLAC 24bit",
			},
		},
		{
			ID:             defaultProfileLosslessID,
			Name:           "Lossless",
			UpgradeAllowed: true,
			Cutoff:         "FLAC 24bit",
			Qualities:      []string{"ALAC", "FLAC", "FLAC 24bit"},
		},
	}
}

// DefaultDelayProfiles returns the untagged profile used when the config file defines none.
func DefaultDelayProfiles() []DelayProfile {
	return []DelayProfile{{
		PreferredProtocol: defaultDelayProfilePreferredProt,
		EnableUsenet:      true,
		EnableTorrent:     true,
		Order:             1,
	}}
}
