// Package db opens the DuckDB database that holds feature snapshots.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

// DefaultName is the database file stem under <data-dir>/duckdb.
const DefaultName = "geoview"

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Path returns the database file path.
func (c Config) Path() string {
	name := c.DBName
	if name == "" {
		name = DefaultName
	}
	return filepath.Join(c.DataDir, "duckdb", name+".duckdb")
}

// Get returns the process-wide DuckDB connection, opening it on first use.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		instance, initErr = Open(cfg)
	})
	return instance, initErr
}

// Open opens a DuckDB database and applies the schema.
func Open(cfg Config) (*sql.DB, error) {
	path := cfg.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb %s: %w", path, err)
	}

	// spatial gives ST_GeomFromText over geometry_wkt; offline hosts run without it
	_, _ = conn.Exec("INSTALL spatial; LOAD spatial;")

	if err := Migrate(context.Background(), conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate creates the snapshot tables if they do not exist.
func Migrate(ctx context.Context, conn *sql.DB) error {
	const schema = `CREATE TABLE IF NOT EXISTS features (
		session_id   VARCHAR NOT NULL,
		layer_id     VARCHAR NOT NULL,
		type_name    VARCHAR NOT NULL,
		seq          INTEGER NOT NULL,
		feature_id   VARCHAR,
		properties   JSON,
		geometry_wkt VARCHAR
	)`
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating features table: %w", err)
	}
	return nil
}

// Close closes the process-wide connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}
