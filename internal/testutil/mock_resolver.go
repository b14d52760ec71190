package testutil

import (
	"context"
	"sync"

	"bento-route-planner/internal/models"
)

// MockResolver is an in-memory address resolver for tests.
// Addresses missing from Coords resolve as unresolved.
type MockResolver struct {
	Coords map[string]models.Coordinates
	Err    error

	mu    sync.Mutex
	Calls []string
}

// NewMockResolver creates a resolver with no known addresses
func NewMockResolver() *MockResolver {
	return &MockResolver{Coords: make(map[string]models.Coordinates)}
}

// Add registers coordinates for an address
func (m *MockResolver) Add(address string, lat, lng float64) *MockResolver {
	m.Coords[address] = models.Coordinates{Lat: lat, Lng: lng}
	return m
}

// Resolve returns the registered coordinates for address
func (m *MockResolver) Resolve(ctx context.Context, address string) (models.Coordinates, bool, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, address)
	m.mu.Unlock()

	if m.Err != nil {
		return models.Coordinates{}, false, m.Err
	}
	c, ok := m.Coords[address]
	return c, ok, nil
}

// CallCount returns the number of Resolve calls
func (m *MockResolver) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Destination builds a destination whose address is "<name> address"
func Destination(name, tag string) models.Destination {
	return models.Destination{Name: name, Address: name + " address", RouteTag: tag}
}
