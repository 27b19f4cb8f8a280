package library_test

import (
	"needle/internal/decision"
	"needle/internal/decision/specs"
	"needle/internal/download"
	"needle/internal/history"
	"needle/internal/identification"
	"needle/internal/importer"
	"needle/internal/library"
)

var (
	_ decision.Catalog        = (*library.Store)(nil)
	_ identification.Catalog  = (*library.Store)(nil)
	_ download.Catalog        = (*library.Store)(nil)
	_ download.FileProvider   = (*library.Store)(nil)
	_ importer.FileRepository = (*library.Store)(nil)
	_ specs.FileProvider      = (*library.Store)(nil)
	_ history.Repository      = (*library.Store)(nil)
)
