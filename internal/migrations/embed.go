package migrations

import "embed"

// FS holds the per-dialect migration scripts. go:embed cannot reference
// parent directories, so the SQL lives next to this file and other packages
// reach it through FS.
//
//go:embed *
var FS embed.FS
