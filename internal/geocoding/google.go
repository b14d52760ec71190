package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"bento-route-planner/internal/models"
)

// DefaultGoogleURL is the Google Maps Platform base URL
const DefaultGoogleURL = "https://maps.googleapis.com"

type googleGeocoder struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *time.Ticker
	backoffBase time.Duration
}

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// NewGoogleGeocoder creates a geocoder backed by the Google Geocoding API
func NewGoogleGeocoder(apiKey, baseURL string) Geocoder {
	if baseURL == "" {
		baseURL = DefaultGoogleURL
	}
	return &googleGeocoder{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rateLimiter: time.NewTicker(100 * time.Millisecond),
		backoffBase: 500 * time.Millisecond,
	}
}

func (g *googleGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	results, err := g.lookup(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		log.Printf("[GEOCODING] No geocoding results found: address=%s", address)
		return nil, &ErrGeocodingFailed{Address: address, Reason: "no results found", Err: ErrAddressNotFound}
	}

	result := results[0]
	log.Printf("[GEOCODING] Response: address=%s lat=%.6f lng=%.6f display_name=%s",
		address, result.Coords.Lat, result.Coords.Lng, result.DisplayName)
	return &result, nil
}

func (g *googleGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error) {
	return geocodeWithRetry(ctx, g.Geocode, address, maxRetries, g.backoffBase)
}

func (g *googleGeocoder) Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error) {
	results, err := g.lookup(ctx, query)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	log.Printf("[GEOCODING] Search response: query=%s results_count=%d", query, len(results))
	return results, nil
}

func (g *googleGeocoder) lookup(ctx context.Context, address string) ([]GeocodingResult, error) {
	select {
	case <-g.rateLimiter.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)
	params.Set("language", "ja")
	params.Set("region", "jp")
	queryURL := g.baseURL + "/maps/api/geocode/json?" + params.Encode()
	log.Printf("[GEOCODING] Request: address=%s", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] Geocoding API request failed: address=%s err=%v", address, err)
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("[ERROR] Geocoding API error: address=%s status=%d body=%s", address, resp.StatusCode, string(body))
		return nil, &ErrGeocodingFailed{
			Address:    address,
			Reason:     fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
			StatusCode: resp.StatusCode,
		}
	}

	var decoded googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		log.Printf("[ERROR] Failed to decode geocoding response: address=%s err=%v", address, err)
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error(), Err: err}
	}

	switch decoded.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []GeocodingResult{}, nil
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return nil, &ErrGeocodingFailed{
			Address:    address,
			Reason:     decoded.Status,
			StatusCode: http.StatusTooManyRequests,
		}
	case "UNKNOWN_ERROR":
		return nil, &ErrGeocodingFailed{
			Address:    address,
			Reason:     decoded.Status,
			StatusCode: http.StatusServiceUnavailable,
		}
	default:
		log.Printf("[ERROR] Geocoding API rejected request: address=%s status=%s message=%s", address, decoded.Status, decoded.ErrorMessage)
		return nil, &ErrGeocodingFailed{
			Address:    address,
			Reason:     fmt.Sprintf("%s: %s", decoded.Status, decoded.ErrorMessage),
			StatusCode: http.StatusBadRequest,
		}
	}

	results := make([]GeocodingResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		results = append(results, GeocodingResult{
			Coords: models.Coordinates{
				Lat: r.Geometry.Location.Lat,
				Lng: r.Geometry.Location.Lng,
			},
			DisplayName: r.FormattedAddress,
		})
	}
	return results, nil
}
