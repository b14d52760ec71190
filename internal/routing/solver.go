package routing

import (
	"context"
	"fmt"
	"log"
	"time"
)

// CheapestArcSolver builds an open path from the depot by repeatedly
// extending the path end with the cheapest arc to an unvisited stop.
// The path never returns to the depot, so return arcs carry no cost.
type CheapestArcSolver struct {
	twoOpt        bool
	maxIterations int
}

// SolverOption configures a CheapestArcSolver
type SolverOption func(*CheapestArcSolver)

// WithTwoOpt enables a 2-opt improvement pass after construction.
// The depot stays pinned at index 0 and only strict improvements are accepted.
func WithTwoOpt(maxIterations int) SolverOption {
	return func(s *CheapestArcSolver) {
		s.twoOpt = true
		if maxIterations > 0 {
			s.maxIterations = maxIterations
		}
	}
}

// NewCheapestArcSolver creates a cheapest-arc-first solver
func NewCheapestArcSolver(opts ...SolverOption) *CheapestArcSolver {
	s := &CheapestArcSolver{maxIterations: 50}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve returns a permutation of 0..n-1 starting at 0.
// Matrices smaller than 2x2 have no path and fail with ErrNoSolution.
func (s *CheapestArcSolver) Solve(ctx context.Context, m CostMatrix) ([]int, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	n := m.Size()
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 stops, got %d", ErrNoSolution, n)
	}

	start := time.Now()

	visited := make([]bool, n)
	visited[0] = true
	path := make([]int, 1, n)
	path[0] = 0

	for len(path) < n {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoSolution, err)
		}

		last := path[len(path)-1]
		next := -1
		for j := 1; j < n; j++ {
			if visited[j] {
				continue
			}
			// strict comparison keeps the lowest index on ties
			if next == -1 || m[last][j] < m[last][next] {
				next = j
			}
		}

		if next == -1 {
			return nil, ErrNoSolution
		}

		visited[next] = true
		path = append(path, next)
	}

	cost := m.PathCost(path)
	log.Printf("[ROUTING] Cheapest-arc construction: stops=%d cost=%dm dur=%v", n, cost, time.Since(start))

	if s.twoOpt && n >= 4 {
		improved, improvedCost := s.improve(ctx, m, path, cost)
		if improvedCost < cost {
			log.Printf("[ROUTING] 2-opt improved path: before=%dm after=%dm", cost, improvedCost)
		}
		path = improved
	}

	return path, nil
}

// improve runs 2-opt over the open path. Position 0 is never moved.
func (s *CheapestArcSolver) improve(ctx context.Context, m CostMatrix, path []int, cost int64) ([]int, int64) {
	best := append([]int(nil), path...)
	bestCost := cost
	n := len(best)

	for it := 0; it < s.maxIterations; it++ {
		if ctx.Err() != nil {
			break
		}

		improved := false
		for i := 1; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				candidate := reverseSegment(best, i, k)
				if c := m.PathCost(candidate); c < bestCost {
					best = candidate
					bestCost = c
					improved = true
				}
			}
		}

		if !improved {
			break
		}
	}

	return best, bestCost
}

// reverseSegment returns a copy of path with positions i..k reversed
func reverseSegment(path []int, i, k int) []int {
	out := make([]int, len(path))
	copy(out, path)
	for a, b := i, k; a < b; a, b = a+1, b-1 {
		out[a], out[b] = out[b], out[a]
	}
	return out
}
