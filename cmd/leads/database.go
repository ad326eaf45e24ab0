package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	leadsmigrations "github.com/goliatone/go-leads/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"
	driverPgx      = "pgx"
)

// persistenceConfig adapts DatabaseConfig to the go-persistence-bun contract.
type persistenceConfig struct {
	db DatabaseConfig
}

func (c persistenceConfig) GetDebug() bool {
	return c.db.Debug
}

func (c persistenceConfig) GetDriver() string {
	return c.db.Driver
}

func (c persistenceConfig) GetServer() string {
	return c.db.DSN
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "go-leads"
}

func dialectFor(driver string) (schema.Dialect, string, error) {
	migrationDialect, err := leadsmigrations.DialectForDriver(driver)
	if err != nil {
		return nil, "", err
	}
	if migrationDialect == leadsmigrations.DialectSQLite {
		return sqlitedialect.New(), migrationDialect, nil
	}
	return pgdialect.New(), migrationDialect, nil
}

// openDatabase opens the configured driver and registers the embedded
// migrations for its dialect. Migrations are not applied here.
func openDatabase(ctx context.Context, cfg DatabaseConfig) (*persistence.Client, error) {
	dialect, migrationDialect, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("leads: open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == driverSQLite {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{db: cfg}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("leads: persistence client: %w", err)
	}

	_, err = leadsmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, leadsmigrations.WithDialects(migrationDialect))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
