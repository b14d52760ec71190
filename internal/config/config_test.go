package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bento-route-planner/internal/importer"
	"bento-route-planner/internal/models"
)

var configKeys = []string{
	"SERVER_ADDR", "DB_PATH", "DATABASE_URL", "GEOCODER", "GOOGLE_MAPS_API_KEY",
	"NOMINATIM_URL", "DEPOT_NAME", "ROUTE_TAGS", "DWELL_MINUTES", "SPEEDS_KMH",
	"TWO_OPT", "GLUG_COLUMNS", "SESSION_MAX_IDLE", "OPEN_BROWSER",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "")
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.ServerAddr)
	assert.Equal(t, GeocoderNominatim, cfg.Geocoder)
	assert.Equal(t, DefaultDepotName, cfg.DepotName)
	assert.Equal(t, DefaultRouteTags, cfg.RouteTags)
	assert.Equal(t, 5.0, cfg.DwellMinutes)
	assert.Equal(t, []float64{30, 40, 50}, cfg.SpeedsKmh)
	assert.False(t, cfg.TwoOpt)
	assert.False(t, cfg.OpenBrowser)
	assert.Equal(t, 12*time.Hour, cfg.SessionMaxIdle)
	assert.Equal(t, importer.DefaultGLUGSchema, cfg.GLUGSchema)
	assert.Equal(t, "data.db", filepath.Base(cfg.DBPath))
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "/tmp/routes.json")
	t.Setenv("DEPOT_NAME", "本社")
	t.Setenv("ROUTE_TAGS", "北, 南 ,北,,東")
	t.Setenv("DWELL_MINUTES", "3.5")
	t.Setenv("SPEEDS_KMH", "20, 35")
	t.Setenv("TWO_OPT", "true")
	t.Setenv("OPEN_BROWSER", "1")
	t.Setenv("SESSION_MAX_IDLE", "30m")
	t.Setenv("GLUG_COLUMNS", "name,pref,city,street,route")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/routes.json", cfg.DBPath)
	assert.Equal(t, "本社", cfg.DepotName)
	assert.Equal(t, []string{"北", "南", "東"}, cfg.RouteTags)
	assert.Equal(t, 3.5, cfg.DwellMinutes)
	assert.Equal(t, []float64{20, 35}, cfg.SpeedsKmh)
	assert.True(t, cfg.TwoOpt)
	assert.True(t, cfg.OpenBrowser)
	assert.Equal(t, 30*time.Minute, cfg.SessionMaxIdle)
	assert.Equal(t, "pref", cfg.GLUGSchema.Prefecture)
}

func TestFromEnv_DatabaseURLSkipsDefaultPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/routes")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.DBPath)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"dwell not a number", "DWELL_MINUTES", "five"},
		{"negative dwell", "DWELL_MINUTES", "-1"},
		{"bad speed", "SPEEDS_KMH", "30,fast"},
		{"zero speed", "SPEEDS_KMH", "30,0"},
		{"bad bool", "TWO_OPT", "maybe"},
		{"bad duration", "SESSION_MAX_IDLE", "soon"},
		{"short GLUG columns", "GLUG_COLUMNS", "a,b,c"},
		{"unknown geocoder", "GEOCODER", "bing"},
		{"google without key", "GEOCODER", "google"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_GoogleWithKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEOCODER", "Google")
	t.Setenv("GOOGLE_MAPS_API_KEY", "key")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, GeocoderGoogle, cfg.Geocoder)
}

func TestFilterOptions(t *testing.T) {
	cfg := &Config{RouteTags: []string{"A", models.AllRouteTags, "B"}}
	assert.Equal(t, []string{models.AllRouteTags, "A", "B"}, cfg.FilterOptions())
}

func TestEstimateConfig(t *testing.T) {
	cfg := &Config{DwellMinutes: 4, SpeedsKmh: []float64{25}}
	ec := cfg.EstimateConfig()
	assert.Equal(t, 4.0, ec.DwellMinutes)
	assert.Equal(t, []float64{25}, ec.SpeedsKmh)
}
