package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bento-route-planner/internal/models"
)

func sampleRoute() *models.Route {
	return &models.Route{
		Stops: []models.RouteStop{
			{Order: 0, Name: "出発地", Address: "depot", IsDepot: true},
			{Order: 1, Name: "さくら保育園", Address: "a", DistanceFromPrevMeters: 1200, CumulativeDistanceMeters: 1200},
			{Order: 2, Name: "みどり学童", Address: "b", DistanceFromPrevMeters: 2300, CumulativeDistanceMeters: 3500},
		},
		TotalDistanceMeters: 3500,
		DwellMinutes:        5,
		Estimates:           []models.DurationEstimate{{SpeedKmh: 30, Minutes: 12}},
	}
}

func TestFormatKm(t *testing.T) {
	assert.Equal(t, "3.5 km", formatKm(3500))
	assert.Equal(t, "12,345.7 km", formatKm(12345678))
}

func TestPrintRoute(t *testing.T) {
	var buf bytes.Buffer
	printRoute(&buf, sampleRoute())

	out := buf.String()
	assert.Contains(t, out, "さくら保育園")
	assert.Contains(t, out, "みどり学童")
	assert.Contains(t, out, "total: 3.5 km (2 stops)")
	assert.Contains(t, out, "30 km/h: 12 min")
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	report := newReport(sampleRoute(), 150*time.Millisecond, true)

	require.NoError(t, writeReport(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got.StopCount)
	assert.InDelta(t, 3.5, got.TotalKm, 1e-9)
	assert.True(t, got.TwoOpt)
	assert.Equal(t, "150ms", got.SolveTime)
	assert.NotEmpty(t, got.System.Platform)
	require.NotNil(t, got.Route)
	assert.Equal(t, []string{"出発地", "さくら保育園", "みどり学童"}, got.Route.Names())
}
