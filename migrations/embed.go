// Package migrations compiles the SQL schema files into the binary, so a
// deployed printwatch needs no migration files on disk. Importing the
// package (blank import from cmd/printwatch) registers the embedded set
// with the database package.
package migrations

import (
	"embed"

	"github.com/printwatch/printwatch-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "." // files sit at the FS root
}
