package migrations

import "embed"

// FS holds the sqlite schema migrations, applied in version order.
//
//go:embed *.sql
var FS embed.FS
