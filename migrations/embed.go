// Package migrations embeds the SQL schema applied by `stockline migrate`.
package migrations

import "embed"

// FS holds the ordered *.up.sql and *.down.sql files.
//
//go:embed *.sql
var FS embed.FS
