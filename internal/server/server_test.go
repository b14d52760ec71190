package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bento-route-planner/internal/config"
	"bento-route-planner/internal/database"
	"bento-route-planner/internal/geocoding"
	"bento-route-planner/internal/importer"
	"bento-route-planner/internal/models"
	"bento-route-planner/web"
)

type staticGeocoder map[string]models.Coordinates

func (g staticGeocoder) Geocode(ctx context.Context, address string) (*geocoding.GeocodingResult, error) {
	c, ok := g[address]
	if !ok {
		return nil, geocoding.ErrAddressNotFound
	}
	return &geocoding.GeocodingResult{Coords: c, DisplayName: address}, nil
}

func (g staticGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*geocoding.GeocodingResult, error) {
	return g.Geocode(ctx, address)
}

func (g staticGeocoder) Search(ctx context.Context, query string, limit int) ([]geocoding.GeocodingResult, error) {
	res, err := g.Geocode(ctx, query)
	if err != nil {
		return nil, nil
	}
	return []geocoding.GeocodingResult{*res}, nil
}

func setupTestServer(t *testing.T) (*httptest.Server, database.DataStore) {
	t.Helper()

	cfg := &config.Config{
		DepotName:      "出発地",
		RouteTags:      []string{"A", "B"},
		DwellMinutes:   5,
		SpeedsKmh:      []float64{30, 40, 50},
		GLUGSchema:     importer.DefaultGLUGSchema,
		SessionMaxIdle: time.Hour,
	}

	templates, err := loadTemplates(web.Templates)
	require.NoError(t, err)

	db := database.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, db.Destinations().Upsert(ctx, &models.Destination{Name: "出発地", Address: "depot"}))
	require.NoError(t, db.Destinations().Upsert(ctx, &models.Destination{Name: "さくら保育園", Address: "sakura", RouteTag: "A"}))
	require.NoError(t, db.Destinations().Upsert(ctx, &models.Destination{Name: "みどり学童", Address: "midori", RouteTag: "B"}))

	geocoder := staticGeocoder{
		"depot":  {Lat: 35.0, Lng: 139.0},
		"sakura": {Lat: 35.0, Lng: 139.01},
		"midori": {Lat: 35.0, Lng: 139.02},
	}

	staticFS, err := web.StaticFiles()
	require.NoError(t, err)

	handler := NewHandler(cfg, db, geocoder, templates)
	srv := httptest.NewServer(loggingMiddleware(corsMiddleware(setupRoutes(handler, staticFS))))
	t.Cleanup(srv.Close)
	return srv, db
}

func TestLoadTemplates(t *testing.T) {
	templates, err := loadTemplates(web.Templates)
	require.NoError(t, err)

	assert.Contains(t, templates.Pages, "index.html")
	assert.Contains(t, templates.Pages, "admin.html")
	for _, name := range []string{"operator_panel", "route_panel", "route_error", "destination_list", "depot_form", "import_result", "address_suggestions"} {
		assert.NotNil(t, templates.Base.Lookup(name), name)
	}
}

func TestPages(t *testing.T) {
	srv, _ := setupTestServer(t)

	for _, path := range []string{"/", "/admin"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"), path)
	}

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaticAssets(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp, err := http.Get(srv.URL + "/static/js/app.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")

	resp, err = http.Get(srv.URL + "/static/css/app.css")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	srv, _ := setupTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/route", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRoutes_NestedDestinationPathIsNotFound(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/destinations/a/b")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTMXRoutePanel(t *testing.T) {
	srv, db := setupTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/route/compute", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "さくら保育園")
	assert.Contains(t, body.String(), "①")
	assert.Contains(t, body.String(), "data-route=")

	// the memo wrote every resolved address to the persistent cache
	cached, err := db.GeocodeCache().GetMany(context.Background(), []string{"depot", "sakura", "midori"})
	require.NoError(t, err)
	assert.Len(t, cached, 3)
}

func TestHTMXRouteError(t *testing.T) {
	srv, db := setupTestServer(t)
	require.NoError(t, db.Destinations().Upsert(context.Background(), &models.Destination{Name: "ゆめ園", Address: "unknown", RouteTag: "A"}))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/route/compute", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "ゆめ園")
	assert.Contains(t, body.String(), "alert-error")
}

func TestCORS(t *testing.T) {
	srv, _ := setupTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestTemplateFuncs(t *testing.T) {
	assert.Equal(t, "①", circled(1))
	assert.Equal(t, "⑳", circled(20))
	assert.Equal(t, "(21)", circled(21))
	assert.Equal(t, "(0)", circled(0))

	assert.Equal(t, "12.3 km", formatDistance(12345))
	assert.Equal(t, "1,234.6 km", formatDistance(1234567))
}
