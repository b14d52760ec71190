package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNominatim(baseURL string) *nominatimGeocoder {
	return &nominatimGeocoder{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rateLimiter: time.NewTicker(1 * time.Millisecond), // Fast rate limit for testing
		backoffBase: 1 * time.Millisecond,
	}
}

func TestNominatimGeocodeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "京都府京都市中京区寺町通御池上る上本能寺前町488", r.URL.Query().Get("q"))

		response := []nominatimResponse{
			{Lat: "35.0116", Lon: "135.7681", DisplayName: "京都市役所"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	result, err := newTestNominatim(server.URL).Geocode(context.Background(), "京都府京都市中京区寺町通御池上る上本能寺前町488")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 35.0116, result.Coords.Lat)
	assert.Equal(t, 135.7681, result.Coords.Lng)
	assert.Equal(t, "京都市役所", result.DisplayName)
}

func TestNominatimGeocodeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]nominatimResponse{})
	}))
	defer server.Close()

	result, err := newTestNominatim(server.URL).Geocode(context.Background(), "存在しない住所")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsNotFound(err))

	var geocodingErr *ErrGeocodingFailed
	require.True(t, errors.As(err, &geocodingErr))
	assert.Contains(t, geocodingErr.Reason, "no results found")
}

func TestNominatimGeocodeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	result, err := newTestNominatim(server.URL).Geocode(context.Background(), "Test Address")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.False(t, IsNotFound(err))

	var geocodingErr *ErrGeocodingFailed
	require.True(t, errors.As(err, &geocodingErr))
	assert.Contains(t, geocodingErr.Reason, "HTTP 500")
	assert.Equal(t, http.StatusInternalServerError, geocodingErr.StatusCode)
}

func TestNominatimGeocodeInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	result, err := newTestNominatim(server.URL).Geocode(context.Background(), "Test Address")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.False(t, IsNotFound(err))
}

func TestNominatimGeocodeSkipsInvalidCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := []nominatimResponse{
			{Lat: "invalid", Lon: "135.0", DisplayName: "Broken"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	result, err := newTestNominatim(server.URL).Geocode(context.Background(), "Test Address")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsNotFound(err))
}

func TestNominatimGeocodeRateLimiting(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		response := []nominatimResponse{{Lat: "35.0", Lon: "135.0", DisplayName: "Test"}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	geocoder := newTestNominatim(server.URL)
	geocoder.rateLimiter = time.NewTicker(50 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := geocoder.Geocode(context.Background(), "Test")
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	// Should take at least 100ms for 3 requests (50ms * 2 waits)
	assert.True(t, elapsed >= 100*time.Millisecond, "Rate limiting not working")
	assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount))
}

func TestNominatimGeocodeWithRetrySuccess(t *testing.T) {
	var attemptCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attemptCount, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		response := []nominatimResponse{{Lat: "34.6937", Lon: "135.5023", DisplayName: "大阪市"}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	result, err := newTestNominatim(server.URL).GeocodeWithRetry(context.Background(), "大阪市", 3)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 34.6937, result.Coords.Lat)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attemptCount))
}

func TestNominatimGeocodeWithRetryAllFail(t *testing.T) {
	var attemptCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCount, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result, err := newTestNominatim(server.URL).GeocodeWithRetry(context.Background(), "Test", 3)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attemptCount))
}

func TestNominatimGeocodeWithRetryDoesNotRetryNotFound(t *testing.T) {
	var attemptCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCount, 1)
		json.NewEncoder(w).Encode([]nominatimResponse{})
	}))
	defer server.Close()

	_, err := newTestNominatim(server.URL).GeocodeWithRetry(context.Background(), "Nowhere", 3)

	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attemptCount))
}

func TestNominatimGeocodeWithRetryDoesNotRetryClientErrors(t *testing.T) {
	var attemptCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCount, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestNominatim(server.URL).GeocodeWithRetry(context.Background(), "Test", 3)

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attemptCount))
}

func TestNominatimGeocodeContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simulate slow response
		time.Sleep(100 * time.Millisecond)
		json.NewEncoder(w).Encode([]nominatimResponse{{Lat: "35.0", Lon: "135.0", DisplayName: "Test"}})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	result, err := newTestNominatim(server.URL).Geocode(ctx, "Test")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.False(t, IsNotFound(err))
}

func TestNominatimGeocodeUserAgent(t *testing.T) {
	userAgentReceived := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgentReceived <- r.Header.Get("User-Agent")
		json.NewEncoder(w).Encode([]nominatimResponse{{Lat: "35.0", Lon: "135.0", DisplayName: "Test"}})
	}))
	defer server.Close()

	_, err := newTestNominatim(server.URL).Geocode(context.Background(), "Test")

	require.NoError(t, err)
	assert.Equal(t, "BentoRoutePlanner/1.0", <-userAgentReceived)
}

func TestNominatimSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		response := []nominatimResponse{
			{Lat: "35.0", Lon: "135.0", DisplayName: "一"},
			{Lat: "bad", Lon: "135.0", DisplayName: "skipped"},
			{Lat: "35.1", Lon: "135.1", DisplayName: "二"},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	results, err := newTestNominatim(server.URL).Search(context.Background(), "京都", 5)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "一", results[0].DisplayName)
	assert.Equal(t, "二", results[1].DisplayName)
}

func TestNewNominatimGeocoderDefaultURL(t *testing.T) {
	g := NewNominatimGeocoder("").(*nominatimGeocoder)
	assert.Equal(t, DefaultNominatimURL, g.baseURL)
}
