package geocoding

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"bento-route-planner/internal/database"
	"bento-route-planner/internal/models"
)

// DefaultMaxRetries is the retry budget for a single address lookup
const DefaultMaxRetries = 3

type memoEntry struct {
	coords models.Coordinates
	ok     bool
}

// MemoGeocoder resolves addresses through a Geocoder and remembers every
// answer, including misses, for the life of the process. Lookups are keyed
// by the exact address string. Concurrent lookups of one address share a
// single request. An optional persistent cache is consulted before the
// network and filled after it.
type MemoGeocoder struct {
	geocoder   Geocoder
	cache      database.GeocodeCacheRepository
	maxRetries int

	mu    sync.RWMutex
	memo  map[string]memoEntry
	group singleflight.Group
}

// NewMemoGeocoder wraps geocoder. cache may be nil.
func NewMemoGeocoder(geocoder Geocoder, cache database.GeocodeCacheRepository, maxRetries int) *MemoGeocoder {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	return &MemoGeocoder{
		geocoder:   geocoder,
		cache:      cache,
		maxRetries: maxRetries,
		memo:       make(map[string]memoEntry),
	}
}

// Resolve returns the coordinates for address. ok is false when the
// geocoder has no match; err is set only when the lookup itself failed.
func (m *MemoGeocoder) Resolve(ctx context.Context, address string) (models.Coordinates, bool, error) {
	if address == "" {
		return models.Coordinates{}, false, nil
	}

	if e, hit := m.lookupMemo(address); hit {
		return e.coords, e.ok, nil
	}

	v, err, _ := m.group.Do(address, func() (interface{}, error) {
		if e, hit := m.lookupMemo(address); hit {
			return e, nil
		}
		return m.resolveUncached(ctx, address)
	})
	if err != nil {
		return models.Coordinates{}, false, err
	}

	e := v.(memoEntry)
	return e.coords, e.ok, nil
}

// Prefetch loads the persistently cached coordinates of addresses into the
// memo with one store query. Addresses already memoized are skipped.
func (m *MemoGeocoder) Prefetch(ctx context.Context, addresses []string) error {
	if m.cache == nil {
		return nil
	}

	missing := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if _, hit := m.lookupMemo(address); !hit && address != "" {
			missing = append(missing, address)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	found, err := m.cache.GetMany(ctx, missing)
	if err != nil {
		return fmt.Errorf("failed to prefetch geocode cache: %w", err)
	}
	for address, coords := range found {
		m.remember(address, memoEntry{coords: coords, ok: true})
	}

	log.Printf("[GEOCODING] Prefetched cached coordinates: requested=%d found=%d", len(missing), len(found))
	return nil
}

func (m *MemoGeocoder) resolveUncached(ctx context.Context, address string) (memoEntry, error) {
	if m.cache != nil {
		entry, err := m.cache.Get(ctx, address)
		if err != nil {
			log.Printf("[ERROR] Geocode cache read failed: address=%s err=%v", address, err)
		} else if entry != nil {
			e := memoEntry{coords: entry.Coords, ok: true}
			m.remember(address, e)
			return e, nil
		}
	}

	result, err := m.geocoder.GeocodeWithRetry(ctx, address, m.maxRetries)
	if err != nil {
		if IsNotFound(err) {
			e := memoEntry{ok: false}
			m.remember(address, e)
			return e, nil
		}
		return memoEntry{}, err
	}

	e := memoEntry{coords: result.Coords, ok: true}
	m.remember(address, e)

	if m.cache != nil {
		if err := m.cache.Set(ctx, &models.GeocodeCacheEntry{Address: address, Coords: result.Coords}); err != nil {
			log.Printf("[ERROR] Geocode cache write failed: address=%s err=%v", address, err)
		}
	}

	return e, nil
}

func (m *MemoGeocoder) lookupMemo(address string) (memoEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.memo[address]
	return e, ok
}

func (m *MemoGeocoder) remember(address string, e memoEntry) {
	m.mu.Lock()
	m.memo[address] = e
	m.mu.Unlock()
}

// Forget drops address from the in-process memo so the next Resolve asks again
func (m *MemoGeocoder) Forget(address string) {
	m.mu.Lock()
	delete(m.memo, address)
	m.mu.Unlock()
}
