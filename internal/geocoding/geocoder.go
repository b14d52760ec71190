package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"bento-route-planner/internal/models"
)

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates `json:"coords"`
	DisplayName string             `json:"display_name"`
}

// Geocoder provides address-to-coordinates conversion
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
	GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error)
	Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error)
}

// ErrAddressNotFound is wrapped by ErrGeocodingFailed when the service had no match
var ErrAddressNotFound = errors.New("no results found")

// ErrGeocodingFailed is returned when an address cannot be geocoded
type ErrGeocodingFailed struct {
	Address    string
	Reason     string
	StatusCode int
	Err        error
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

func (e *ErrGeocodingFailed) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the address has no match,
// as opposed to the geocoding service being unavailable.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAddressNotFound)
}

// retryable reports whether a failed lookup is worth repeating:
// network errors, rate limiting and server errors.
func retryable(err error) bool {
	if IsNotFound(err) {
		return false
	}
	var gerr *ErrGeocodingFailed
	if errors.As(err, &gerr) && gerr.StatusCode != 0 {
		switch gerr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	return true
}

// geocodeWithRetry retries geocode with exponential backoff starting at base
func geocodeWithRetry(
	ctx context.Context,
	geocode func(context.Context, string) (*GeocodingResult, error),
	address string,
	maxRetries int,
	base time.Duration,
) (*GeocodingResult, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error

	for i := 0; i < maxRetries; i++ {
		result, err := geocode(ctx, address)
		if err == nil {
			log.Printf("[GEOCODING] Success after %d attempt(s): address=%s", i+1, address)
			return result, nil
		}

		lastErr = err

		if !retryable(err) {
			return nil, err
		}

		if i < maxRetries-1 {
			backoff := base * time.Duration(1<<uint(i))
			log.Printf("[GEOCODING] Retry %d/%d: address=%s backoff=%v err=%v", i+1, maxRetries, address, backoff, err)
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
	}

	log.Printf("[ERROR] Geocoding failed after %d retries: address=%s err=%v", maxRetries, address, lastErr)
	return nil, lastErr
}
