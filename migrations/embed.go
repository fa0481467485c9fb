// Package migrations holds the ordered SQL schema files applied by database.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
