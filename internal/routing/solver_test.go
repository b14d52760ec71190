package routing

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineMatrix builds a matrix of absolute differences between 1-D positions
func lineMatrix(positions ...int64) CostMatrix {
	m := make(CostMatrix, len(positions))
	for i := range positions {
		m[i] = make([]int64, len(positions))
		for j := range positions {
			d := positions[i] - positions[j]
			if d < 0 {
				d = -d
			}
			m[i][j] = d
		}
	}
	return m
}

func assertPermutationFromDepot(t *testing.T, path []int, n int) {
	t.Helper()
	require.Len(t, path, n)
	assert.Equal(t, 0, path[0])
	sorted := append([]int(nil), path...)
	sort.Ints(sorted)
	for i := range sorted {
		assert.Equal(t, i, sorted[i])
	}
}

func TestSolve_TwoStops(t *testing.T) {
	s := NewCheapestArcSolver()
	m := CostMatrix{{0, 1234}, {1234, 0}}

	path, err := s.Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, path)
	assert.Equal(t, int64(1234), m.PathCost(path))
}

func TestSolve_TooSmall(t *testing.T) {
	s := NewCheapestArcSolver()

	_, err := s.Solve(context.Background(), CostMatrix{{0}})
	assert.ErrorIs(t, err, ErrNoSolution)

	_, err = s.Solve(context.Background(), CostMatrix{})
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestSolve_InvalidMatrix(t *testing.T) {
	s := NewCheapestArcSolver()

	_, err := s.Solve(context.Background(), CostMatrix{{0, 1, 2}, {1, 0}})
	assert.ErrorIs(t, err, ErrInvalidMatrix)

	_, err = s.Solve(context.Background(), CostMatrix{{0, -5}, {-5, 0}})
	assert.ErrorIs(t, err, ErrInvalidMatrix)
}

func TestSolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCheapestArcSolver().Solve(ctx, lineMatrix(0, 1, 2))
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestSolve_ColinearVisitsInDistanceOrder(t *testing.T) {
	path, err := NewCheapestArcSolver().Solve(context.Background(), lineMatrix(0, 30, 10, 20))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3, 1}, path)
}

func TestSolve_TiesPickLowestIndex(t *testing.T) {
	m := CostMatrix{
		{0, 7, 7, 7},
		{7, 0, 7, 7},
		{7, 7, 0, 7},
		{7, 7, 7, 0},
	}

	path, err := NewCheapestArcSolver().Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, path)
}

func TestSolve_NoReturnCostCharged(t *testing.T) {
	// The last stop is far from the depot; nothing is charged for that.
	m := CostMatrix{
		{0, 1, 50},
		{1, 0, 2},
		{50, 2, 0},
	}

	path, err := NewCheapestArcSolver().Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, path)
	assert.Equal(t, int64(3), m.PathCost(path))
}

func TestSolve_AlwaysPermutationFromDepot(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewCheapestArcSolver()

	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(12)
		m := make(CostMatrix, n)
		for i := range m {
			m[i] = make([]int64, n)
		}
		for i := 0; i < n; i++ {
			for j := 0; j < i; j++ {
				d := rng.Int63n(10000)
				m[i][j] = d
				m[j][i] = d
			}
		}

		path, err := s.Solve(context.Background(), m)
		require.NoError(t, err)
		assertPermutationFromDepot(t, path, n)
	}
}

func TestSolve_TwoOptImprovesGreedyPath(t *testing.T) {
	m := lineMatrix(0, 10, -15, 40)

	greedy, err := NewCheapestArcSolver().Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, greedy)
	assert.Equal(t, int64(90), m.PathCost(greedy))

	improved, err := NewCheapestArcSolver(WithTwoOpt(10)).Solve(context.Background(), m)
	require.NoError(t, err)
	assertPermutationFromDepot(t, improved, 4)
	assert.Equal(t, []int{0, 2, 1, 3}, improved)
	assert.Equal(t, int64(70), m.PathCost(improved))
}

func TestSolve_TwoOptNeverWorsens(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 30; trial++ {
		n := 4 + rng.Intn(8)
		positions := make([]int64, n)
		for i := range positions {
			positions[i] = rng.Int63n(1000) - 500
		}
		m := lineMatrix(positions...)

		greedy, err := NewCheapestArcSolver().Solve(context.Background(), m)
		require.NoError(t, err)
		improved, err := NewCheapestArcSolver(WithTwoOpt(0)).Solve(context.Background(), m)
		require.NoError(t, err)

		assertPermutationFromDepot(t, improved, n)
		assert.LessOrEqual(t, m.PathCost(improved), m.PathCost(greedy))
	}
}
