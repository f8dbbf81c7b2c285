// Package migrations embeds the per-driver schema files so the rescind
// binary migrates its own database without external assets.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
