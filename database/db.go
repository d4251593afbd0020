package database

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"

	"sewstat/logger"
)

//go:embed schema_duckdb.sql
var duckdbSchema string

//go:embed schema_sqlite.sql
var sqliteSchema string

// DB bundles the log lake and the application database
type DB struct {
	Analytics *sql.DB // DuckDB log lake
	App       *sql.DB // SQLite for job tracking/cache
}

// Initialize opens both databases. An empty path opens an in-memory database.
func Initialize(lakePath, appPath string) (*DB, error) {
	for _, p := range []string{lakePath, appPath} {
		if p == "" || p == ":memory:" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
	}

	analytics, err := sql.Open("duckdb", lakePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open lake %s: %w", lakePath, err)
	}
	if _, err := analytics.Exec("PRAGMA threads=4"); err != nil {
		logger.Warn("failed to set duckdb threads", "path", lakePath, "error", err)
	}
	if err := analytics.Ping(); err != nil {
		analytics.Close()
		return nil, fmt.Errorf("failed to ping lake: %w", err)
	}

	if appPath == "" {
		appPath = ":memory:"
	}
	appDB, err := sql.Open("sqlite3", appPath)
	if err != nil {
		analytics.Close()
		return nil, err
	}
	if appPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database
		appDB.SetMaxOpenConns(1)
	} else if _, err := appDB.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		logger.Warn("failed to set WAL mode", "error", err)
	}
	if err := appDB.Ping(); err != nil {
		analytics.Close()
		appDB.Close()
		return nil, err
	}

	return &DB{
		Analytics: analytics,
		App:       appDB,
	}, nil
}

// Close closes both databases
func (db *DB) Close() {
	if db.Analytics != nil {
		db.Analytics.Close()
	}
	if db.App != nil {
		db.App.Close()
	}
}

// execScript runs a multi-statement SQL script split on semicolons
func execScript(conn *sql.DB, name, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement in %s: %w\nStatement: %s", name, err, stmt)
		}
	}
	return nil
}
