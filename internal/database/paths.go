package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName       = "bento-route-planner"
	SQLiteDBFileName = "data.db"
)

// Backend identifies which store implementation serves a configuration
type Backend int

const (
	BackendSQLite Backend = iota
	BackendPostgres
	BackendJSON
)

func (b Backend) String() string {
	switch b {
	case BackendPostgres:
		return "postgres"
	case BackendJSON:
		return "json"
	default:
		return "sqlite"
	}
}

// ResolveBackend picks Postgres when databaseURL is set, the JSON file store
// when dbPath has a .json extension, and SQLite otherwise.
func ResolveBackend(databaseURL, dbPath string) Backend {
	if databaseURL != "" {
		return BackendPostgres
	}
	if strings.EqualFold(filepath.Ext(dbPath), ".json") {
		return BackendJSON
	}
	return BackendSQLite
}

// DataDir returns $XDG_DATA_HOME/bento-route-planner, or
// ~/.bento-route-planner without XDG_DATA_HOME, creating it if needed.
func DataDir() (string, error) {
	var dir string
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		dir = filepath.Join(xdg, appDirName)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "."+appDirName)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// DefaultDBPath is the SQLite file used when neither DB_PATH nor DATABASE_URL is set
func DefaultDBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SQLiteDBFileName), nil
}
