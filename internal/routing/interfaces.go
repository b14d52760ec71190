package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bento-route-planner/internal/models"
)

// RoutingRequest contains the input for route calculation
type RoutingRequest struct {
	Depot        models.Destination
	Destinations []models.Destination
}

// Router computes an open path from the depot through the requested destinations.
// A nil route with a nil error means there was nothing to route.
type Router interface {
	CalculateRoute(ctx context.Context, req *RoutingRequest) (*models.Route, error)
}

// AddressResolver resolves an address to coordinates.
// ok is false when the address has no match; err is reserved for lookup failures.
type AddressResolver interface {
	Resolve(ctx context.Context, address string) (coords models.Coordinates, ok bool, err error)
}

// Prefetcher is implemented by resolvers that can warm up for a batch of
// addresses before they are resolved one by one
type Prefetcher interface {
	Prefetch(ctx context.Context, addresses []string) error
}

// Solver orders the indices of a cost matrix into an open path starting at 0
type Solver interface {
	Solve(ctx context.Context, m CostMatrix) ([]int, error)
}

// ErrNoSolution is returned when no feasible path exists for a matrix
var ErrNoSolution = errors.New("no feasible route found")

// ErrInvalidMatrix is returned when a cost matrix is not square or has negative entries
var ErrInvalidMatrix = errors.New("invalid cost matrix")

// MissingDestination names a destination whose address could not be resolved
type MissingDestination struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// ErrAddressUnresolved is returned when one or more selected destinations have no coordinates
type ErrAddressUnresolved struct {
	Missing []MissingDestination
}

func (e *ErrAddressUnresolved) Error() string {
	parts := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		parts[i] = fmt.Sprintf("%s (%s)", m.Name, m.Address)
	}
	return fmt.Sprintf("could not resolve %d address(es): %s", len(e.Missing), strings.Join(parts, ", "))
}

// ErrLookupFailed is returned when the coordinate lookup itself is unavailable
type ErrLookupFailed struct {
	Name    string
	Address string
	Err     error
}

func (e *ErrLookupFailed) Error() string {
	return fmt.Sprintf("coordinate lookup failed for %s: %v", e.Name, e.Err)
}

func (e *ErrLookupFailed) Unwrap() error { return e.Err }

// ErrRoutingFailed is returned when the solver produced no route
type ErrRoutingFailed struct {
	Reason string
	Stops  int
	Err    error
}

func (e *ErrRoutingFailed) Error() string {
	return fmt.Sprintf("routing failed: %s", e.Reason)
}

func (e *ErrRoutingFailed) Unwrap() error { return e.Err }
