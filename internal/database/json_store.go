package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"bento-route-planner/internal/models"
)

// JSONData represents the structure of the JSON file
type JSONData struct {
	Destinations []models.Destination          `json:"destinations"`
	GeocodeCache map[string]models.Coordinates `json:"geocode_cache"`
}

// JSONStore is a JSON file-based data store.
// With an empty file path nothing is written to disk.
type JSONStore struct {
	filePath string
	data     *JSONData
	mu       sync.RWMutex

	destinationRepository  DestinationRepository
	geocodeCacheRepository GeocodeCacheRepository
}

func (s *JSONStore) Destinations() DestinationRepository   { return s.destinationRepository }
func (s *JSONStore) GeocodeCache() GeocodeCacheRepository { return s.geocodeCacheRepository }

// NewJSONStore creates a JSON-based data store backed by filePath
func NewJSONStore(filePath string) (*JSONStore, error) {
	store := &JSONStore{
		filePath: filePath,
		data:     &JSONData{},
	}

	if filePath != "" {
		log.Printf("Using JSON data file: %s", filePath)
	}

	if err := store.load(); err != nil {
		return nil, err
	}

	store.destinationRepository = &jsonDestinationRepository{store: store}
	store.geocodeCacheRepository = &jsonGeocodeCacheRepository{store: store}

	return store, nil
}

// NewMemoryStore creates a JSONStore that never touches disk
func NewMemoryStore() *JSONStore {
	store, _ := NewJSONStore("")
	return store
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filePath == "" {
		s.initEmpty()
		return nil
	}

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.initEmpty()
		return s.saveUnlocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read data file: %w", err)
	}

	if err := json.Unmarshal(data, s.data); err != nil {
		return fmt.Errorf("failed to parse data file: %w", err)
	}

	// Ensure collections are not nil
	if s.data.Destinations == nil {
		s.data.Destinations = []models.Destination{}
	}
	if s.data.GeocodeCache == nil {
		s.data.GeocodeCache = make(map[string]models.Coordinates)
	}

	log.Printf("Loaded data: %d destinations, %d cached addresses",
		len(s.data.Destinations), len(s.data.GeocodeCache))

	return nil
}

func (s *JSONStore) initEmpty() {
	s.data = &JSONData{
		Destinations: []models.Destination{},
		GeocodeCache: make(map[string]models.Coordinates),
	}
}

func (s *JSONStore) saveUnlocked() error {
	if s.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first, then rename (atomic)
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Close is a no-op for JSON store (data is saved after each operation)
func (s *JSONStore) Close() error {
	return nil
}

// HealthCheck always returns nil for JSON store
func (s *JSONStore) HealthCheck(ctx context.Context) error {
	return nil
}

// ==================== Destination Repository ====================

type jsonDestinationRepository struct {
	store *JSONStore
}

func (r *jsonDestinationRepository) List(ctx context.Context, routeTag string) ([]models.Destination, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := []models.Destination{}
	for _, d := range r.store.data.Destinations {
		if d.MatchesTag(routeTag) {
			result = append(result, d)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}

func (r *jsonDestinationRepository) Get(ctx context.Context, name string) (*models.Destination, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if i := r.indexOf(name); i >= 0 {
		d := r.store.data.Destinations[i]
		return &d, nil
	}
	return nil, nil
}

func (r *jsonDestinationRepository) Upsert(ctx context.Context, d *models.Destination) error {
	if err := ValidateDestinations(*d); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.upsertUnlocked(*d)
	return r.store.saveUnlocked()
}

func (r *jsonDestinationRepository) UpsertMany(ctx context.Context, ds []models.Destination) (int, error) {
	if err := ValidateDestinations(ds...); err != nil {
		return 0, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, d := range ds {
		r.upsertUnlocked(d)
	}
	if err := r.store.saveUnlocked(); err != nil {
		return 0, err
	}
	return len(ds), nil
}

func (r *jsonDestinationRepository) Delete(ctx context.Context, name string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	i := r.indexOf(name)
	if i < 0 {
		return ErrNotFound
	}
	r.store.data.Destinations = append(r.store.data.Destinations[:i], r.store.data.Destinations[i+1:]...)
	return r.store.saveUnlocked()
}

func (r *jsonDestinationRepository) DeleteMany(ctx context.Context, names []string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	remove := make(map[string]bool, len(names))
	for _, n := range names {
		remove[n] = true
	}

	kept := r.store.data.Destinations[:0]
	deleted := 0
	for _, d := range r.store.data.Destinations {
		if remove[d.Name] {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	r.store.data.Destinations = kept

	if deleted == 0 {
		return 0, nil
	}
	return deleted, r.store.saveUnlocked()
}

func (r *jsonDestinationRepository) indexOf(name string) int {
	for i, d := range r.store.data.Destinations {
		if d.Name == name {
			return i
		}
	}
	return -1
}

func (r *jsonDestinationRepository) upsertUnlocked(d models.Destination) {
	if i := r.indexOf(d.Name); i >= 0 {
		r.store.data.Destinations[i] = d
		return
	}
	r.store.data.Destinations = append(r.store.data.Destinations, d)
}

// ==================== Geocode Cache Repository ====================

type jsonGeocodeCacheRepository struct {
	store *JSONStore
}

func (r *jsonGeocodeCacheRepository) Get(ctx context.Context, address string) (*models.GeocodeCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.data.GeocodeCache[address]
	if !ok {
		return nil, nil
	}
	return &models.GeocodeCacheEntry{Address: address, Coords: c}, nil
}

func (r *jsonGeocodeCacheRepository) GetMany(ctx context.Context, addresses []string) (map[string]models.Coordinates, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make(map[string]models.Coordinates, len(addresses))
	for _, a := range addresses {
		if c, ok := r.store.data.GeocodeCache[a]; ok {
			out[a] = c
		}
	}
	return out, nil
}

func (r *jsonGeocodeCacheRepository) Set(ctx context.Context, entry *models.GeocodeCacheEntry) error {
	if strings.TrimSpace(entry.Address) == "" {
		return fmt.Errorf("geocode cache: empty address key")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.data.GeocodeCache[entry.Address] = entry.Coords
	return r.store.saveUnlocked()
}

func (r *jsonGeocodeCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.data.GeocodeCache = make(map[string]models.Coordinates)
	log.Printf("Geocode cache cleared")
	return r.store.saveUnlocked()
}
