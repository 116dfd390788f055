// Package migrations embeds the SQL schema so the server and maintenance
// commands can apply it with goose without shipping files alongside the binary.
package migrations

import "embed"

// FS holds all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
