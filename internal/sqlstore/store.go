package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"bento-route-planner/internal/database"
)

const schemaVersion = 1

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store is a SQL data store implementing database.DataStore.
// It runs on SQLite by default and on Postgres through pgx.
type Store struct {
	db      *sql.DB
	dbPath  string
	dialect dialect
	mu      sync.RWMutex

	destinationRepo  database.DestinationRepository
	geocodeCacheRepo database.GeocodeCacheRepository
}

// Open picks the backing store for the configuration, see database.ResolveBackend
func Open(databaseURL, dbPath string) (database.DataStore, error) {
	backend := database.ResolveBackend(databaseURL, dbPath)
	log.Printf("Using %s data store", backend)

	var store database.DataStore
	var err error
	switch backend {
	case database.BackendPostgres:
		store, err = NewPostgres(databaseURL)
	case database.BackendJSON:
		store, err = database.NewJSONStore(dbPath)
	default:
		store, err = New(dbPath)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// New creates a new SQLite store at the specified path
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("Opening SQLite database at: %s", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite serializes writers anyway and :memory: is per-connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	return newStore(db, dbPath, dialectSQLite)
}

// NewPostgres creates a store on a Postgres database using the pgx driver
func NewPostgres(databaseURL string) (*Store, error) {
	log.Printf("Opening Postgres database")

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newStore(db, "", dialectPostgres)
}

func newStore(db *sql.DB, dbPath string, d dialect) (*Store, error) {
	store := &Store{
		db:      db,
		dbPath:  dbPath,
		dialect: d,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.destinationRepo = &destinationRepository{store: store}
	store.geocodeCacheRepo = &geocodeCacheRepository{store: store}

	return store, nil
}

// rebind rewrites ? placeholders to $n for Postgres
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist, create everything
		return s.createSchema()
	}

	if version < schemaVersion {
		if err := s.runMigrations(version); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS destinations (
			name TEXT PRIMARY KEY,
			address TEXT NOT NULL,
			route_tag TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS geocode_cache (
			address TEXT PRIMARY KEY,
			lat DOUBLE PRECISION NOT NULL,
			lng DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_destinations_route_tag ON destinations(route_tag)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if _, err := s.db.Exec(s.rebind("INSERT INTO schema_version (version) VALUES (?)"), schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	log.Printf("Schema initialized (version %d)", schemaVersion)
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	log.Printf("Migrating schema: from=%d to=%d", fromVersion, schemaVersion)
	_, err := s.db.Exec(s.rebind("UPDATE schema_version SET version = ?"), schemaVersion)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		if s.dialect == dialectSQLite {
			log.Printf("Closing SQLite database at: %s", s.dbPath)
			// Checkpoint WAL before closing
			s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		}
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Repository accessors
func (s *Store) Destinations() database.DestinationRepository  { return s.destinationRepo }
func (s *Store) GeocodeCache() database.GeocodeCacheRepository { return s.geocodeCacheRepo }

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
