// Package migrations embeds the schema migration files applied at startup.
package migrations

import "embed"

// FS contains all migration SQL files.
//
//go:embed *.sql
var FS embed.FS
