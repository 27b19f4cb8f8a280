package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"needle/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeWorkflow()
	c.normalizeDecisions()
	c.normalizeImport()
	c.normalizeProfiles()
	if err := c.normalizeIndexers(); err != nil {
		return err
	}
	return c.normalizeDownloadClients()
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("NEEDLE_LIBRARY_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.LibraryDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(strings.TrimSpace(c.Paths.LibraryDir)); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.RecycleBin, err = expandPath(strings.TrimSpace(c.Paths.RecycleBin)); err != nil {
		return fmt.Errorf("paths.recycle_bin: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("NEEDLE_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.EvaluationWorkers <= 0 {
		c.Workflow.EvaluationWorkers = 1
	}
}

func (c *Config) normalizeDecisions() {
	c.Decisions.DownloadPropersAndRepacks = strings.ToLower(strings.TrimSpace(c.Decisions.DownloadPropersAndRepacks))
	if c.Decisions.DownloadPropersAndRepacks == "" {
		c.Decisions.DownloadPropersAndRepacks = defaultPropersAndRepacks
	}
	c.Decisions.RequiredTerms = trimTerms(c.Decisions.RequiredTerms)
	c.Decisions.IgnoredTerms = trimTerms(c.Decisions.IgnoredTerms)
	c.Decisions.AllowedLanguages = language.NormalizeList(c.Decisions.AllowedLanguages)
	for i := range c.Decisions.QualityDefinitions {
		c.Decisions.QualityDefinitions[i].Quality = strings.TrimSpace(c.Decisions.QualityDefinitions[i].Quality)
	}
}

func (c *Config) normalizeImport() {
	c.Import.Mode = strings.ToLower(strings.TrimSpace(c.Import.Mode))
	if c.Import.Mode == "" {
		c.Import.Mode = defaultImportMode
	}
	if c.Import.AlbumMatchThreshold <= 0 {
		c.Import.AlbumMatchThreshold = defaultAlbumMatchThreshold
	}
	if c.Import.TrackMatchThreshold <= 0 {
		c.Import.TrackMatchThreshold = defaultTrackMatchThreshold
	}
	if c.Import.IdentificationCacheTTL <= 0 {
		c.Import.IdentificationCacheTTL = defaultIdentificationCacheTTL
	}
}

func (c *Config) normalizeProfiles() {
	if len(c.QualityProfiles) == 0 {
		c.QualityProfiles = DefaultQualityProfiles()
	}
	for i := range c.QualityProfiles {
		profile := &c.QualityProfiles[i]
		profile.Name = strings.TrimSpace(profile.Name)
		profile.Cutoff = strings.TrimSpace(profile.Cutoff)
		for j := range profile.Qualities {
			profile.Qualities[j] = strings.TrimSpace(profile.Qualities[j])
		}
	}
	if len(c.DelayProfiles) == 0 {
		c.DelayProfiles = DefaultDelayProfiles()
	}
	for i := range c.DelayProfiles {
		profile := &c.DelayProfiles[i]
		profile.PreferredProtocol = strings.ToLower(strings.TrimSpace(profile.PreferredProtocol))
		if profile.PreferredProtocol == "" {
			profile.PreferredProtocol = defaultDelayProfilePreferredProt
		}
		profile.Tags = trimTerms(profile.Tags)
	}
	sort.SliceStable(c.DelayProfiles, func(i, j int) bool {
		return c.DelayProfiles[i].Order < c.DelayProfiles[j].Order
	})
	for i := range c.CustomFormats {
		c.CustomFormats[i].Name = strings.TrimSpace(c.CustomFormats[i].Name)
		for j := range c.CustomFormats[i].Conditions {
			cond := &c.CustomFormats[i].Conditions[j]
			cond.Type = strings.ToLower(strings.TrimSpace(cond.Type))
		}
	}
}

func (c *Config) normalizeIndexers() error {
	for i := range c.Indexers {
		indexer := &c.Indexers[i]
		indexer.Name = strings.TrimSpace(indexer.Name)
		indexer.Kind = strings.ToLower(strings.TrimSpace(indexer.Kind))
		if indexer.Kind == "" {
			indexer.Kind = IndexerKindStatic
		}
		if indexer.Priority <= 0 {
			indexer.Priority = defaultIndexerPriority
		}
		if indexer.Path != "" {
			expanded, err := expandPath(indexer.Path)
			if err != nil {
				return fmt.Errorf("indexers[%d].path: %w", i, err)
			}
			indexer.Path = expanded
		}
	}
	return nil
}

func (c *Config) normalizeDownloadClients() error {
	for i := range c.DownloadClients {
		client := &c.DownloadClients[i]
		client.Name = strings.TrimSpace(client.Name)
		client.Kind = strings.ToLower(strings.TrimSpace(client.Kind))
		if client.Kind == "" {
			client.Kind = DownloadClientBlackhole
		}
		client.Protocol = strings.ToLower(strings.TrimSpace(client.Protocol))
		client.Category = strings.TrimSpace(client.Category)
		if client.Priority <= 0 {
			client.Priority = defaultDownloadClientPriority
		}
		var err error
		if client.WatchDir, err = expandPath(strings.TrimSpace(client.WatchDir)); err != nil {
			return fmt.Errorf("download_clients[%d].watch_dir: %w", i, err)
		}
		if client.CompletedDir, err = expandPath(strings.TrimSpace(client.CompletedDir)); err != nil {
			return fmt.Errorf("download_clients[%d].completed_dir: %w", i, err)
		}
	}
	return nil
}

func trimTerms(values []string) []string {
	out := values[:0]
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
