package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateDecisions(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateProfiles(); err != nil {
		return err
	}
	if err := c.validateIndexers(); err != nil {
		return err
	}
	return c.validateDownloadClients()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.library_dir is required. Set NEEDLE_LIBRARY_DIR or edit %s (create with 'needle config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.RSSSyncInterval < 0 {
		return errors.New("workflow.rss_sync_interval must not be negative")
	}
	if c.Workflow.DownloadPollInterval < 0 {
		return errors.New("workflow.download_poll_interval must not be negative")
	}
	if c.Workflow.SearchInterval < 0 {
		return errors.New("workflow.search_interval must not be negative")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	return nil
}

func (c *Config) validateDecisions() error {
	switch c.Decisions.DownloadPropersAndRepacks {
	case PropersPreferAndUpgrade, PropersDoNotUpgrade, PropersDoNotPrefer:
	default:
		return fmt.Errorf("decisions.download_propers_and_repacks: unsupported value %q", c.Decisions.DownloadPropersAndRepacks)
	}
	if c.Decisions.MaximumSizeMB < 0 {
		return errors.New("decisions.maximum_size_mb must not be negative")
	}
	if c.Decisions.RetentionDays < 0 {
		return errors.New("decisions.retention_days must not be negative")
	}
	if c.Decisions.MinimumAgeMinutes < 0 {
		return errors.New("decisions.minimum_age_minutes must not be negative")
	}
	for i, def := range c.Decisions.QualityDefinitions {
		if def.Quality == "" {
			return fmt.Errorf("decisions.quality_definitions[%d].quality must be set", i)
		}
		if def.MinKbps < 0 || def.MaxKbps < 0 || def.PreferredKbps < 0 {
			return fmt.Errorf("decisions.quality_definitions[%d] bitrates must not be negative", i)
		}
		if def.MaxKbps > 0 && def.MinKbps > def.MaxKbps {
			return fmt.Errorf("decisions.quality_definitions[%d].min_kbps must not exceed max_kbps", i)
		}
	}
	return nil
}

func (c *Config) validateImport() error {
	switch c.Import.Mode {
	case ImportModeAuto, ImportModeMove, ImportModeCopy:
	default:
		return fmt.Errorf("import.mode must be auto, move or copy, got %q", c.Import.Mode)
	}
	if c.Import.MinimumFreeSpaceMB < 0 {
		return errors.New("import.minimum_free_space_mb must not be negative")
	}
	if c.Import.AlbumMatchThreshold > 1 {
		return errors.New("import.album_match_threshold must be between 0 and 1")
	}
	if c.Import.TrackMatchThreshold > 1 {
		return errors.New("import.track_match_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateProfiles() error {
	seen := make(map[int]struct{}, len(c.QualityProfiles))
	for i, profile := range c.QualityProfiles {
		if profile.ID <= 0 {
			return fmt.Errorf("quality_profiles[%d].id must be positive", i)
		}
		if _, dup := seen[profile.ID]; dup {
			return fmt.Errorf("quality_profiles[%d].id %d is duplicated", i, profile.ID)
		}
		seen[profile.ID] = struct{}{}
		if len(profile.Qualities) == 0 {
			return fmt.Errorf("quality_profiles[%d].qualities must not be empty", i)
		}
		if profile.Cutoff != "" && !containsFold(profile.Qualities, profile.Cutoff) {
			return fmt.Errorf("quality_profiles[%d].cutoff %q is not an allowed quality", i, profile.Cutoff)
		}
	}
	for i, format := range c.CustomFormats {
		if format.Name == "" {
			return fmt.Errorf("custom_formats[%d].name must be set", i)
		}
		for j, cond := range format.Conditions {
			switch cond.Type {
			case ConditionReleaseTitle, ConditionReleaseGroup, ConditionProtocol:
				if strings.TrimSpace(cond.Value) == "" {
					return fmt.Errorf("custom_formats[%d].conditions[%d].value must be set", i, j)
				}
			case ConditionSize:
				if cond.MaxGB > 0 && cond.MinGB > cond.MaxGB {
					return fmt.Errorf("custom_formats[%d].conditions[%d].min_gb must not exceed max_gb", i, j)
				}
			default:
				return fmt.Errorf("custom_formats[%d].conditions[%d].type: unsupported value %q", i, j, cond.Type)
			}
		}
	}
	untagged := 0
	for i, profile := range c.DelayProfiles {
		if err := validateProtocol(profile.PreferredProtocol); err != nil {
			return fmt.Errorf("delay_profiles[%d].preferred_protocol: %w", i, err)
		}
		if !profile.EnableTorrent && !profile.EnableUsenet {
			return fmt.Errorf("delay_profiles[%d] must enable at least one protocol", i)
		}
		if len(profile.Tags) == 0 {
			untagged++
		}
	}
	if untagged > 1 {
		return errors.New("delay_profiles may contain only one profile without tags")
	}
	return nil
}

func (c *Config) validateIndexers() error {
	names := make(map[string]struct{}, len(c.Indexers))
	for i, indexer := range c.Indexers {
		if indexer.Name == "" {
			return fmt.Errorf("indexers[%d].name must be set", i)
		}
		if _, dup := names[strings.ToLower(indexer.Name)]; dup {
			return fmt.Errorf("indexers[%d].name %q is duplicated", i, indexer.Name)
		}
		names[strings.ToLower(indexer.Name)] = struct{}{}
		if indexer.Kind != IndexerKindStatic {
			return fmt.Errorf("indexers[%d].kind: unsupported value %q", i, indexer.Kind)
		}
		if indexer.Enabled && indexer.Path == "" {
			return fmt.Errorf("indexers[%d].path must be set for static indexers", i)
		}
		if indexer.MinimumSeeders < 0 {
			return fmt.Errorf("indexers[%d].minimum_seeders must not be negative", i)
		}
	}
	return nil
}

func (c *Config) validateDownloadClients() error {
	names := make(map[string]struct{}, len(c.DownloadClients))
	for i, client := range c.DownloadClients {
		if client.Name == "" {
			return fmt.Errorf("download_clients[%d].name must be set", i)
		}
		if _, dup := names[strings.ToLower(client.Name)]; dup {
			return fmt.Errorf("download_clients[%d].name %q is duplicated", i, client.Name)
		}
		names[strings.ToLower(client.Name)] = struct{}{}
		if client.Kind != DownloadClientBlackhole {
			return fmt.Errorf("download_clients[%d].kind: unsupported value %q", i, client.Kind)
		}
		if err := validateProtocol(client.Protocol); err != nil {
			return fmt.Errorf("download_clients[%d].protocol: %w", i, err)
		}
		if client.Enabled && (client.WatchDir == "" || client.CompletedDir == "") {
			return fmt.Errorf("download_clients[%d] requires watch_dir and completed_dir", i)
		}
	}
	return nil
}

func validateProtocol(value string) error {
	switch value {
	case ProtocolTorrent, ProtocolUsenet:
		return nil
	default:
		return fmt.Errorf("unsupported value %q", value)
	}
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(value, target) {
			return true
		}
	}
	return false
}
