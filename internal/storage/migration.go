package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const currentSchemaVersion = 1

// RunMigrations applies any pending database migrations
func (s *SQLite) RunMigrations(ctx context.Context) error {
	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if version < 1 {
		if err := s.migrateToV1(ctx); err != nil {
			return fmt.Errorf("migration to v1 failed: %w", err)
		}
	}

	return nil
}

// SchemaVersion returns the applied schema version, 0 for an empty database
func (s *SQLite) SchemaVersion(ctx context.Context) (int, error) {
	var tableName string
	err := s.db.QueryRowContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='orderset_schema_version'
	`).Scan(&tableName)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM orderset_schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// migrateToV1 creates the version table, the collection registry and the document store
func (s *SQLite) migrateToV1(ctx context.Context) error {
	return s.withConn(ctx, "BEGIN IMMEDIATE", func(conn *sql.Conn) error {
		migrations := []string{
			`CREATE TABLE IF NOT EXISTS orderset_schema_version (
				version INTEGER PRIMARY KEY
			)`,

			// Registered collections; each has its own c_<name> table
			`CREATE TABLE IF NOT EXISTS collections (
				name TEXT PRIMARY KEY,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,

			// Singleton documents keyed by a fixed name
			`CREATE TABLE IF NOT EXISTS documents (
				key TEXT PRIMARY KEY,
				body JSON NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			"INSERT OR REPLACE INTO orderset_schema_version (version) VALUES (1)",
		}

		for _, migration := range migrations {
			if _, err := conn.ExecContext(ctx, migration); err != nil {
				return err
			}
		}
		return nil
	})
}
