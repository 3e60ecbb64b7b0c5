package sqlite

import "embed"

// MigrationFS embeds the goose migration set into the compiled binary, so
// no migration files need to exist on disk at runtime.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
