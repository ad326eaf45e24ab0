package leads

import (
	"embed"
	"io/fs"
)

// Postgres migrations live in data/sql/migrations; the sqlite directory holds
// the same schema in SQLite dialect.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
