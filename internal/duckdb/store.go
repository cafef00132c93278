// Package duckdb stores snapshots of classified genotype calls so an upload
// can be audited after the fact.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding call snapshots.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS genotype_calls (
		run_id VARCHAR,
		panel VARCHAR,
		sample_id VARCHAR,
		variant_id VARCHAR,
		chrom VARCHAR,
		position VARCHAR,
		ref VARCHAR,
		alt VARCHAR,
		genotype VARCHAR,
		category VARCHAR,
		dosage DOUBLE,
		PRIMARY KEY (run_id, panel, sample_id, variant_id)
	)`); err != nil {
		return err
	}

	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS input_files (
		run_id VARCHAR,
		panel VARCHAR,
		path VARCHAR,
		size BIGINT,
		mod_time TIMESTAMP,
		PRIMARY KEY (run_id, panel)
	)`)
	return err
}
