// Package migrations embeds the Postgres schema for the refresh-token
// store. Files are applied by goose in lexical order.
package migrations

import "embed"

// FS holds the SQL migration files.
//
//go:embed *.sql
var FS embed.FS
