package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"bento-route-planner/internal/models"
	"bento-route-planner/internal/routing"
	"bento-route-planner/internal/session"
)

// RouteView is a route together with its standing in the session
type RouteView struct {
	*models.Route
	Path   []models.Coordinates `json:"path"`
	Stale  bool                 `json:"stale"`
	Edited bool                 `json:"edited"`
}

// RouteResponse wraps the current route; Route is null when nothing is selected
type RouteResponse struct {
	Route *RouteView `json:"route"`
}

func routeView(s *session.Session) *RouteView {
	route, stale := s.Route()
	if route == nil {
		return nil
	}
	return &RouteView{Route: route, Path: route.Path(), Stale: stale, Edited: s.Edited()}
}

// computeRoute routes the session's selected, visible destinations and
// stores the result in the session. An empty selection clears the route.
// On failure the previous route is kept, marked stale. A result computed for
// a selection that changed meanwhile is discarded.
func (h *Handler) computeRoute(ctx context.Context, s *session.Session) error {
	gen := s.Generation()

	visible, err := h.listDestinations(ctx, s.Filter())
	if err != nil {
		return err
	}
	depot, err := h.depot(ctx)
	if err != nil {
		return err
	}

	selected := lo.Filter(visible, func(d models.Destination, _ int) bool {
		return s.IsSelected(d.Name)
	})

	route, err := h.Assembler.CalculateRoute(ctx, &routing.RoutingRequest{
		Depot:        depot,
		Destinations: selected,
	})
	if err != nil {
		if !s.InvalidateRouteIfCurrent(gen) {
			// a newer computation owns the session state; its outcome is what the caller sees
			log.Printf("[ROUTING] Ignoring failure of superseded computation: session=%s err=%v", s.ID, err)
			return nil
		}
		return err
	}

	s.SetRouteIfCurrent(gen, route)
	return nil
}

// HandleComputeRoute handles POST /api/v1/route/compute
func (h *Handler) HandleComputeRoute(w http.ResponseWriter, r *http.Request) {
	s := h.currentSession(w, r)
	log.Printf("[HTTP] POST /api/v1/route/compute: session=%s filter=%s", s.ID, s.Filter())

	if err := h.computeRoute(r.Context(), s); err != nil {
		log.Printf("[ROUTING] Route computation failed: session=%s err=%v", s.ID, err)
		h.handleRouteError(w, r, err)
		return
	}

	h.respondRoute(w, r, s)
}

// HandleGetRoute handles GET /api/v1/route
func (h *Handler) HandleGetRoute(w http.ResponseWriter, r *http.Request) {
	h.respondRoute(w, r, h.currentSession(w, r))
}

// HandleMoveStop handles POST /api/v1/route/move.
// Positions count from the depot at 0; the depot cannot move.
func (h *Handler) HandleMoveStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From formInt `json:"from"`
		To   formInt `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleValidationErrorHTMX(w, r, "Invalid request body")
		return
	}

	s := h.currentSession(w, r)
	if _, err := s.MoveStop(int(req.From), int(req.To), h.Assembler.Recalculate); err != nil {
		if errors.Is(err, session.ErrInvalidMove) {
			h.handleValidationErrorHTMX(w, r, err.Error())
			return
		}
		h.renderError(w, r, err)
		return
	}

	h.respondRoute(w, r, s)
}

// HandleResetRoute handles POST /api/v1/route/reset
func (h *Handler) HandleResetRoute(w http.ResponseWriter, r *http.Request) {
	s := h.currentSession(w, r)
	s.ResetRoute()
	log.Printf("[SESSION] Reset route: id=%s", s.ID)
	h.respondRoute(w, r, s)
}

// formInt accepts a JSON number or a numeric string, as form encoders send
type formInt int

func (n *formInt) UnmarshalJSON(b []byte) error {
	v, err := strconv.Atoi(strings.Trim(string(b), `"`))
	if err != nil {
		return fmt.Errorf("invalid position %s: %w", b, err)
	}
	*n = formInt(v)
	return nil
}

func (h *Handler) respondRoute(w http.ResponseWriter, r *http.Request, s *session.Session) {
	view := routeView(s)
	if h.isHTMX(r) {
		h.renderTemplate(w, "route_panel", view)
		return
	}
	h.writeJSON(w, http.StatusOK, RouteResponse{Route: view})
}
