package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"bento-route-planner/internal/geo"
	"bento-route-planner/internal/geocoding"
	"bento-route-planner/internal/models"
)

const addressSearchLimit = 5

// AddressSuggestion is a geocoder candidate for the admin destination form.
// FromDepotMeters is set when the depot coordinates are already cached.
type AddressSuggestion struct {
	geocoding.GeocodingResult
	FromDepotMeters *float64 `json:"from_depot_meters,omitempty"`
}

// HandleAddressSearch handles GET /api/v1/address-search
func (h *Handler) HandleAddressSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		query = strings.TrimSpace(r.URL.Query().Get("address"))
	}
	log.Printf("[HTTP] GET /api/v1/address-search: query=%s", query)

	suggestions := []AddressSuggestion{}

	// a prefecture name alone is already three runes
	if utf8.RuneCountInString(query) < 3 {
		h.respondSuggestions(w, r, suggestions)
		return
	}

	results, err := h.Geocoder.Search(r.Context(), query, addressSearchLimit)
	if err != nil {
		log.Printf("[ERROR] Failed to search addresses: query=%s err=%v", query, err)
		h.respondSuggestions(w, r, suggestions)
		return
	}

	depot, hasDepot := h.cachedDepotCoords(r.Context())
	for _, res := range results {
		s := AddressSuggestion{GeocodingResult: res}
		if hasDepot {
			d := geo.Haversine(depot, res.Coords)
			s.FromDepotMeters = &d
		}
		suggestions = append(suggestions, s)
	}

	log.Printf("[HTTP] GET /api/v1/address-search: query=%s results_count=%d", query, len(suggestions))
	h.respondSuggestions(w, r, suggestions)
}

func (h *Handler) respondSuggestions(w http.ResponseWriter, r *http.Request, suggestions []AddressSuggestion) {
	if h.isHTMX(r) {
		if len(suggestions) == 0 {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			return
		}
		h.renderTemplate(w, "address_suggestions", suggestions)
		return
	}
	h.writeJSON(w, http.StatusOK, suggestions)
}

// cachedDepotCoords reads the depot position from the persistent geocode
// cache only; a search never triggers an extra lookup for the depot.
func (h *Handler) cachedDepotCoords(ctx context.Context) (models.Coordinates, bool) {
	depot, err := h.depot(ctx)
	if err != nil || depot.Address == "" {
		return models.Coordinates{}, false
	}

	entry, err := h.DB.GeocodeCache().Get(ctx, depot.Address)
	if err != nil {
		log.Printf("[ERROR] Failed to read depot coordinates: address=%s err=%v", depot.Address, err)
		return models.Coordinates{}, false
	}
	if entry == nil {
		return models.Coordinates{}, false
	}
	return entry.Coords, true
}
