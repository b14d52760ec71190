package routing

import (
	"context"
	"fmt"
	"log"
	"time"

	"bento-route-planner/internal/geo"
	"bento-route-planner/internal/models"
)

// EstimateConfig controls the duration estimates attached to a route
type EstimateConfig struct {
	DwellMinutes float64
	SpeedsKmh    []float64
}

// Assembler resolves coordinates, builds the cost matrix, runs the solver and
// turns the solver's index order back into a route.
type Assembler struct {
	resolver AddressResolver
	solver   Solver
	estimate EstimateConfig
	now      func() time.Time
}

// NewAssembler creates an Assembler. Without speeds the DefaultSpeedsKmh are used.
func NewAssembler(resolver AddressResolver, solver Solver, estimate EstimateConfig) *Assembler {
	if estimate.DwellMinutes < 0 {
		estimate.DwellMinutes = 0
	}
	if len(estimate.SpeedsKmh) == 0 {
		estimate.SpeedsKmh = DefaultSpeedsKmh
	}
	return &Assembler{
		resolver: resolver,
		solver:   solver,
		estimate: estimate,
		now:      time.Now,
	}
}

// CalculateRoute computes the open path depot → selected destinations.
// An empty selection returns (nil, nil) without resolving or solving anything.
func (a *Assembler) CalculateRoute(ctx context.Context, req *RoutingRequest) (*models.Route, error) {
	selected := uniqueDestinations(req.Depot.Name, req.Destinations)
	if len(selected) == 0 {
		log.Printf("[ROUTING] Empty selection, skipping route calculation")
		return nil, nil
	}

	stops := make([]models.Destination, 0, len(selected)+1)
	stops = append(stops, req.Depot)
	stops = append(stops, selected...)

	coords, err := a.resolveAll(ctx, stops)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(stops))
	for i, d := range stops {
		ids[i] = d.Name
	}

	matrix, err := BuildMatrix(ids, func(id string) (models.Coordinates, bool) {
		c, ok := coords[id]
		return c, ok
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build cost matrix: %w", err)
	}

	order, err := a.solver.Solve(ctx, matrix)
	if err != nil {
		log.Printf("[ERROR] Solver failed: stops=%d err=%v", len(stops), err)
		return nil, &ErrRoutingFailed{Reason: err.Error(), Stops: len(stops), Err: err}
	}
	if len(order) != len(stops) || order[0] != 0 {
		return nil, &ErrRoutingFailed{
			Reason: fmt.Sprintf("solver returned %d of %d stops", len(order), len(stops)),
			Stops:  len(stops),
			Err:    ErrNoSolution,
		}
	}

	route := a.buildRoute(stops, coords, order)
	log.Printf("[ROUTING] Route computed: stops=%d total=%.0fm", len(route.Stops), route.TotalDistanceMeters)
	return route, nil
}

// resolveAll geocodes every stop. Unresolved stops are collected and reported
// together; a lookup failure aborts immediately.
func (a *Assembler) resolveAll(ctx context.Context, stops []models.Destination) (map[string]models.Coordinates, error) {
	if p, ok := a.resolver.(Prefetcher); ok {
		addresses := make([]string, 0, len(stops))
		for _, d := range stops {
			addresses = append(addresses, d.Address)
		}
		// a failed prefetch only costs the batch; each stop is still resolved below
		if err := p.Prefetch(ctx, addresses); err != nil {
			log.Printf("[ROUTING] Prefetch failed: err=%v", err)
		}
	}

	coords := make(map[string]models.Coordinates, len(stops))
	var missing []MissingDestination

	for _, d := range stops {
		if d.Address == "" {
			missing = append(missing, MissingDestination{Name: d.Name, Address: d.Address})
			continue
		}

		c, ok, err := a.resolver.Resolve(ctx, d.Address)
		if err != nil {
			log.Printf("[ERROR] Coordinate lookup failed: name=%s address=%s err=%v", d.Name, d.Address, err)
			return nil, &ErrLookupFailed{Name: d.Name, Address: d.Address, Err: err}
		}
		if !ok {
			missing = append(missing, MissingDestination{Name: d.Name, Address: d.Address})
			continue
		}
		coords[d.Name] = c
	}

	if len(missing) > 0 {
		log.Printf("[ROUTING] Unresolved addresses: count=%d", len(missing))
		return nil, &ErrAddressUnresolved{Missing: missing}
	}

	return coords, nil
}

// buildRoute maps solver indices back to destinations
func (a *Assembler) buildRoute(stops []models.Destination, coords map[string]models.Coordinates, order []int) *models.Route {
	route := &models.Route{
		Stops:      make([]models.RouteStop, len(order)),
		ComputedAt: a.now(),
	}

	for pos, idx := range order {
		d := stops[idx]
		route.Stops[pos] = models.RouteStop{
			Name:    d.Name,
			Address: d.Address,
			Coords:  coords[d.Name],
			IsDepot: idx == 0,
		}
	}

	return a.Recalculate(route)
}

// Recalculate renumbers the stops of route in their current order and
// recomputes legs, total distance and estimates. Legs use the unrounded
// coordinates so the reported total matches the drawn path.
func (a *Assembler) Recalculate(route *models.Route) *models.Route {
	var cumulative float64
	for pos := range route.Stops {
		stop := &route.Stops[pos]
		stop.Order = pos
		stop.DistanceFromPrevMeters = 0
		stop.CumulativeDistanceMeters = 0
		if pos > 0 {
			leg := geo.Haversine(route.Stops[pos-1].Coords, stop.Coords)
			cumulative += leg
			stop.DistanceFromPrevMeters = leg
			stop.CumulativeDistanceMeters = cumulative
		}
	}

	route.TotalDistanceMeters = cumulative
	route.DwellMinutes = a.estimate.DwellMinutes
	route.Estimates = EstimateTable(route, a.estimate.DwellMinutes, a.estimate.SpeedsKmh)
	return route
}

// uniqueDestinations drops the depot and repeated names, keeping first occurrence order
func uniqueDestinations(depotName string, destinations []models.Destination) []models.Destination {
	seen := make(map[string]bool, len(destinations))
	out := make([]models.Destination, 0, len(destinations))
	for _, d := range destinations {
		if d.Name == depotName || seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		out = append(out, d)
	}
	return out
}
