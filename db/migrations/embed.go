// Package migrations embeds the catalog schema files.
package migrations

import "embed"

// Files holds the schema files applied when a catalog is initialized.
//
//go:embed *.sql
var Files embed.FS
