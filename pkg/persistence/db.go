// Package persistence opens the SQLite database shared by the durable ticket,
// notification and workflow-state backends and keeps its schema current.
package persistence

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
)

// MemoryPath opens a private in-memory database. Used by tests.
const MemoryPath = ":memory:"

// Open connects to the database at path and migrates it to CurrentSchemaVersion.
// The pool is limited to a single connection: SQLite has one writer, and an
// in-memory database exists only on the connection that created it.
func Open(path string) (*sql.DB, error) {
	logger := logx.NewLogger("persistence")

	dsn := fmt.Sprintf("file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path)
	if path == MemoryPath {
		dsn = MemoryPath
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("📦 Database initialized: %s (schema v%d)", path, CurrentSchemaVersion)
	return db, nil
}
