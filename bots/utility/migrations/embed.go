// Package migrations embeds the schema, one directory per database driver.
package migrations

import "embed"

// FS holds sqlite/ and postgres/ migration trees, in the layout
// database.RunMigrations expects.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
