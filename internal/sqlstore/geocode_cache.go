package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"bento-route-planner/internal/models"
)

type geocodeCacheRepository struct {
	store *Store
}

func (r *geocodeCacheRepository) Get(ctx context.Context, address string) (*models.GeocodeCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT address, lat, lng FROM geocode_cache WHERE address = ?`

	var entry models.GeocodeCacheEntry
	err := r.store.db.QueryRowContext(ctx, r.store.rebind(query), address).Scan(
		&entry.Address, &entry.Coords.Lat, &entry.Coords.Lng,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get geocode cache entry: %w", err)
	}

	return &entry, nil
}

func (r *geocodeCacheRepository) GetMany(ctx context.Context, addresses []string) (map[string]models.Coordinates, error) {
	seen := make(map[string]struct{}, len(addresses))
	args := make([]any, 0, len(addresses))
	for _, a := range addresses {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		args = append(args, a)
	}

	out := make(map[string]models.Coordinates, len(args))
	if len(args) == 0 {
		return out, nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := fmt.Sprintf(`SELECT address, lat, lng FROM geocode_cache WHERE address IN (%s)`, placeholders(len(args)))
	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query geocode cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr string
		var c models.Coordinates
		if err := rows.Scan(&addr, &c.Lat, &c.Lng); err != nil {
			return nil, fmt.Errorf("failed to scan geocode cache entry: %w", err)
		}
		out[addr] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating geocode cache: %w", err)
	}

	return out, nil
}

func (r *geocodeCacheRepository) Set(ctx context.Context, entry *models.GeocodeCacheEntry) error {
	if strings.TrimSpace(entry.Address) == "" {
		return fmt.Errorf("geocode cache: empty address key")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `INSERT INTO geocode_cache (address, lat, lng)
	          VALUES (?, ?, ?)
	          ON CONFLICT (address) DO UPDATE
	          SET lat = excluded.lat,
	              lng = excluded.lng`

	_, err := r.store.db.ExecContext(ctx, r.store.rebind(query), entry.Address, entry.Coords.Lat, entry.Coords.Lng)
	if err != nil {
		return fmt.Errorf("failed to set geocode cache entry: %w", err)
	}
	return nil
}

func (r *geocodeCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.store.db.ExecContext(ctx, `DELETE FROM geocode_cache`); err != nil {
		return fmt.Errorf("failed to clear geocode cache: %w", err)
	}
	log.Printf("Geocode cache cleared")
	return nil
}
