package database

import (
	"errors"
	"strings"

	"bento-route-planner/internal/models"
)

var (
	// ErrNotFound is returned when no destination has the requested name
	ErrNotFound = errors.New("destination not found")
	// ErrNameRequired is returned when a destination is written without a name
	ErrNameRequired = errors.New("destination name is required")
)

// ValidateDestinations checks every destination of a write before any is stored
func ValidateDestinations(ds ...models.Destination) error {
	for _, d := range ds {
		if strings.TrimSpace(d.Name) == "" {
			return ErrNameRequired
		}
	}
	return nil
}
