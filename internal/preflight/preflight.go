package preflight

import (
	"context"
	"fmt"

	"needle/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check that applies to cfg. Disabled indexers and
// clients are skipped.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir),
	}
	if cfg.Paths.RecycleBin != "" {
		results = append(results, CheckDirectoryAccess("Recycle bin", cfg.Paths.RecycleBin))
	}
	if !cfg.Import.SkipFreeSpaceCheck {
		results = append(results, CheckFreeSpace("Library free space", cfg.Paths.LibraryDir, uint64(cfg.Import.MinimumFreeSpaceMB)<<20))
	}

	for _, idx := range cfg.Indexers {
		if !idx.Enabled || ctx.Err() != nil {
			continue
		}
		results = append(results, CheckFileReadable(fmt.Sprintf("Indexer %s feed", idx.Name), idx.Path))
	}
	for _, client := range cfg.DownloadClients {
		if !client.Enabled || ctx.Err() != nil {
			continue
		}
		results = append(results,
			CheckDirectoryAccess(fmt.Sprintf("Client %s watch folder", client.Name), client.WatchDir),
			CheckDirectoryAccess(fmt.Sprintf("Client %s completed folder", client.Name), client.CompletedDir),
		)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
