package database

import (
	"context"

	"bento-route-planner/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Destinations() DestinationRepository
	GeocodeCache() GeocodeCacheRepository
}

// DestinationRepository handles destination persistence.
// Destinations are keyed by name; the depot is stored like any other row.
type DestinationRepository interface {
	// List returns destinations ordered by name. An empty routeTag or
	// models.AllRouteTags returns every destination.
	List(ctx context.Context, routeTag string) ([]models.Destination, error)
	// Get returns nil, nil when no destination has the name
	Get(ctx context.Context, name string) (*models.Destination, error)
	Upsert(ctx context.Context, d *models.Destination) error
	UpsertMany(ctx context.Context, ds []models.Destination) (int, error)
	// Delete returns ErrNotFound when no destination has the name
	Delete(ctx context.Context, name string) error
	DeleteMany(ctx context.Context, names []string) (int, error)
}

// GeocodeCacheRepository handles persisted address lookups
type GeocodeCacheRepository interface {
	// Get returns nil, nil on a cache miss
	Get(ctx context.Context, address string) (*models.GeocodeCacheEntry, error)
	GetMany(ctx context.Context, addresses []string) (map[string]models.Coordinates, error)
	Set(ctx context.Context, entry *models.GeocodeCacheEntry) error
	Clear(ctx context.Context) error
}
