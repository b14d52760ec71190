package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"bento-route-planner/internal/models"
	"bento-route-planner/internal/session"
)

// DestinationListResponse represents the list response
type DestinationListResponse struct {
	Destinations []models.Destination `json:"destinations"`
	Total        int                  `json:"total"`
}

type destinationRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	RouteTag string `json:"route_tag"`
}

// listDestinations returns the destinations for routeTag, depot excluded
func (h *Handler) listDestinations(ctx context.Context, routeTag string) ([]models.Destination, error) {
	all, err := h.DB.Destinations().List(ctx, routeTag)
	if err != nil {
		return nil, err
	}
	return lo.Reject(all, func(d models.Destination, _ int) bool {
		return d.Name == h.Config.DepotName
	}), nil
}

// depot returns the depot record. A depot that was never set comes back
// with an empty address so route computation reports it as unresolved.
func (h *Handler) depot(ctx context.Context) (models.Destination, error) {
	d, err := h.DB.Destinations().Get(ctx, h.Config.DepotName)
	if err != nil {
		return models.Destination{}, err
	}
	if d == nil {
		return models.Destination{Name: h.Config.DepotName}, nil
	}
	return *d, nil
}

// decodeDestination reads a destination from a JSON body or an htmx form
func (h *Handler) decodeDestination(r *http.Request) (destinationRequest, error) {
	var req destinationRequest
	if h.isHTMX(r) {
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.Name = r.FormValue("name")
		req.Address = r.FormValue("address")
		req.RouteTag = r.FormValue("route_tag")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Address = strings.TrimSpace(req.Address)
	req.RouteTag = strings.TrimSpace(req.RouteTag)
	return req, nil
}

// HandleListDestinations handles GET /api/v1/destinations
func (h *Handler) HandleListDestinations(w http.ResponseWriter, r *http.Request) {
	routeTag := r.URL.Query().Get("route")
	log.Printf("[HTTP] GET /api/v1/destinations: route=%s", routeTag)

	destinations, err := h.listDestinations(r.Context(), routeTag)
	if err != nil {
		log.Printf("[ERROR] Failed to list destinations: route=%s err=%v", routeTag, err)
		h.renderError(w, r, err)
		return
	}

	if h.isHTMX(r) {
		h.renderDestinationList(w, r, destinations)
		return
	}

	h.writeJSON(w, http.StatusOK, DestinationListResponse{
		Destinations: destinations,
		Total:        len(destinations),
	})
}

// HandleGetDestination handles GET /api/v1/destinations/{name}
func (h *Handler) HandleGetDestination(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/destinations/")
	log.Printf("[HTTP] GET /api/v1/destinations/{name}: name=%s", name)

	d, err := h.DB.Destinations().Get(r.Context(), name)
	if err != nil {
		log.Printf("[ERROR] Failed to get destination: name=%s err=%v", name, err)
		h.handleInternalError(w, err)
		return
	}
	if d == nil || name == h.Config.DepotName {
		h.handleNotFound(w, "Destination not found")
		return
	}

	h.writeJSON(w, http.StatusOK, d)
}

// HandleUpsertDestination handles POST /api/v1/destinations and
// PUT /api/v1/destinations/{name}. An existing name is overwritten.
func (h *Handler) HandleUpsertDestination(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeDestination(r)
	if err != nil {
		log.Printf("[HTTP] %s %s: invalid_body err=%v", r.Method, r.URL.Path, err)
		h.handleValidationErrorHTMX(w, r, "Invalid request body")
		return
	}

	if r.Method == http.MethodPut {
		pathName := strings.TrimPrefix(r.URL.Path, "/api/v1/destinations/")
		if req.Name == "" {
			req.Name = pathName
		}
		if req.Name != pathName {
			h.handleValidationErrorHTMX(w, r, "Name in body does not match the URL")
			return
		}
	}

	if req.Name == "" || req.Address == "" {
		log.Printf("[HTTP] %s %s: missing_fields name=%s address=%s", r.Method, r.URL.Path, req.Name, req.Address)
		h.handleValidationErrorHTMX(w, r, "Name and address are required")
		return
	}
	if req.Name == h.Config.DepotName {
		h.handleValidationErrorHTMX(w, r, "The depot is set through /api/v1/depot")
		return
	}

	previous, err := h.DB.Destinations().Get(r.Context(), req.Name)
	if err != nil {
		log.Printf("[ERROR] Failed to read destination: name=%s err=%v", req.Name, err)
		h.renderError(w, r, err)
		return
	}

	d := &models.Destination{Name: req.Name, Address: req.Address, RouteTag: req.RouteTag}
	if err := h.DB.Destinations().Upsert(r.Context(), d); err != nil {
		log.Printf("[ERROR] Failed to upsert destination: name=%s err=%v", d.Name, err)
		h.renderError(w, r, err)
		return
	}
	h.forgetReplaced(previous, d)
	h.Sessions.Each((*session.Session).InvalidateRoute)

	log.Printf("[HTTP] Saved destination: name=%s route=%s", d.Name, d.RouteTag)

	if h.isHTMX(r) {
		destinations, err := h.listDestinations(r.Context(), "")
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		h.renderDestinationList(w, r, destinations)
		return
	}

	h.writeJSON(w, http.StatusOK, d)
}

// HandleDeleteDestination handles DELETE /api/v1/destinations/{name}
func (h *Handler) HandleDeleteDestination(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/destinations/")
	log.Printf("[HTTP] DELETE /api/v1/destinations/{name}: name=%s", name)

	if name == h.Config.DepotName {
		h.handleValidationError(w, "The depot cannot be deleted")
		return
	}

	if err := h.DB.Destinations().Delete(r.Context(), name); err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Destination not found")
			return
		}
		log.Printf("[ERROR] Failed to delete destination: name=%s err=%v", name, err)
		h.handleInternalError(w, err)
		return
	}

	h.forgetEverywhere([]string{name})
	w.WriteHeader(http.StatusNoContent)
}

// HandleBulkDelete handles POST /api/v1/destinations/delete
func (h *Handler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Names []string `json:"names"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	h.deleteNames(w, r, req.Names)
}

// HandleDeleteMarked handles POST /api/v1/destinations/delete-marked.
// It deletes the destinations the caller marked in the admin list.
func (h *Handler) HandleDeleteMarked(w http.ResponseWriter, r *http.Request) {
	s := h.currentSession(w, r)

	destinations, err := h.listDestinations(r.Context(), "")
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.deleteNames(w, r, s.DeleteMarked(destinationNames(destinations)))
}

func (h *Handler) deleteNames(w http.ResponseWriter, r *http.Request, names []string) {
	names = lo.Uniq(lo.Without(lo.Compact(names), h.Config.DepotName))
	if len(names) == 0 {
		h.handleValidationErrorHTMX(w, r, "No destinations selected for deletion")
		return
	}

	deleted, err := h.DB.Destinations().DeleteMany(r.Context(), names)
	if err != nil {
		log.Printf("[ERROR] Failed to delete destinations: count=%d err=%v", len(names), err)
		h.renderError(w, r, err)
		return
	}
	h.forgetEverywhere(names)

	log.Printf("[HTTP] Deleted destinations: requested=%d deleted=%d", len(names), deleted)

	if h.isHTMX(r) {
		destinations, err := h.listDestinations(r.Context(), "")
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		h.renderDestinationList(w, r, destinations)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// HandleGetDepot handles GET /api/v1/depot
func (h *Handler) HandleGetDepot(w http.ResponseWriter, r *http.Request) {
	d, err := h.depot(r.Context())
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// HandleSetDepot handles PUT /api/v1/depot
func (h *Handler) HandleSetDepot(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeDestination(r)
	if err != nil {
		h.handleValidationErrorHTMX(w, r, "Invalid request body")
		return
	}
	if req.Address == "" {
		h.handleValidationErrorHTMX(w, r, "Depot address is required")
		return
	}

	previous, err := h.DB.Destinations().Get(r.Context(), h.Config.DepotName)
	if err != nil {
		log.Printf("[ERROR] Failed to read depot: err=%v", err)
		h.renderError(w, r, err)
		return
	}

	d := &models.Destination{Name: h.Config.DepotName, Address: req.Address}
	if err := h.DB.Destinations().Upsert(r.Context(), d); err != nil {
		log.Printf("[ERROR] Failed to set depot: err=%v", err)
		h.renderError(w, r, err)
		return
	}
	h.forgetReplaced(previous, d)
	h.Sessions.Each((*session.Session).InvalidateRoute)

	log.Printf("[HTTP] Depot set: address=%s", d.Address)

	if h.isHTMX(r) {
		h.renderTemplate(w, "depot_form", d)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) renderDestinationList(w http.ResponseWriter, r *http.Request, destinations []models.Destination) {
	s := h.currentSession(w, r)
	marked := lo.Associate(s.DeleteMarked(destinationNames(destinations)), func(name string) (string, bool) {
		return name, true
	})
	h.renderTemplate(w, "destination_list", map[string]interface{}{
		"Destinations": destinations,
		"Marked":       marked,
		"AllMarked":    len(destinations) > 0 && len(marked) == len(destinations),
	})
}

// forgetAddress drops a remembered lookup so a re-saved address is looked up again
func (h *Handler) forgetAddress(address string) {
	if h.Memo != nil {
		h.Memo.Forget(address)
	}
}

// forgetReplaced forgets the saved address and, when it changed, the one it replaced
func (h *Handler) forgetReplaced(previous, saved *models.Destination) {
	if previous != nil && previous.Address != "" && previous.Address != saved.Address {
		h.forgetAddress(previous.Address)
	}
	h.forgetAddress(saved.Address)
}

// forgetEverywhere clears per-name session state for deleted destinations
// and flags every held route as stale.
func (h *Handler) forgetEverywhere(names []string) {
	h.Sessions.Each(func(s *session.Session) {
		s.Forget(names)
		s.InvalidateRoute()
	})
}

func destinationNames(destinations []models.Destination) []string {
	return lo.Map(destinations, func(d models.Destination, _ int) string {
		return d.Name
	})
}
