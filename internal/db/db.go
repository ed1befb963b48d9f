// Package db holds the enable database: per-level enabled units, their
// cached start plans and the unit catalogue, persisted to a SQLite file that
// is replaced atomically on every write.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/trly/unitd/internal/log"

	// Register migrate's sqlite3 driver.
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"

	// Register sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is the migration version this build reads and writes.
const SchemaVersion = 1

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrSchemaVersion is returned when a file was written with another schema.
var ErrSchemaVersion = errors.New("unsupported database schema version")

// GetConnectionString returns the migrate connection string for path.
func GetConnectionString(path string) string {
	return "sqlite3://" + path
}

// Connect opens the SQLite file at path.
func Connect(path string, readOnly bool) (*sql.DB, error) {
	dsn := "file:" + path
	if readOnly {
		dsn += "?mode=ro"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Up migrates the file at path to SchemaVersion.
func Up(path string, logger log.Logger) error {
	m, err := getMigrationInstance(path, logger)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Migrate(SchemaVersion); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func getMigrationInstance(path string, logger log.Logger) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, GetConnectionString(path))
	if err != nil {
		return nil, err
	}

	m.Log = &migrationLogger{logger: logger}

	return m, nil
}

type migrationLogger struct {
	logger log.Logger
}

func (l *migrationLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug("Migration", "detail", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrationLogger) Verbose() bool {
	return true
}
