// Package migrations embeds the SQL files applied by `agenda migrate up`.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
