package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/samber/lo"

	"bento-route-planner/internal/models"
	"bento-route-planner/internal/session"
)

// SelectionItem is one destination row of the operator list
type SelectionItem struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	RouteTag string `json:"route_tag"`
	Selected bool   `json:"selected"`
}

// SessionView is the operator's working state
type SessionView struct {
	SessionID     string          `json:"session_id"`
	Filter        string          `json:"filter"`
	FilterOptions []string        `json:"filter_options"`
	Destinations  []SelectionItem `json:"destinations"`
	AllSelected   bool            `json:"all_selected"`
	Route         *RouteView      `json:"route"`
	RouteError    *ErrorDetail    `json:"route_error,omitempty"`
}

func (h *Handler) sessionView(ctx context.Context, s *session.Session) (*SessionView, error) {
	visible, err := h.listDestinations(ctx, s.Filter())
	if err != nil {
		return nil, err
	}

	items := lo.Map(visible, func(d models.Destination, _ int) SelectionItem {
		return SelectionItem{Name: d.Name, Address: d.Address, RouteTag: d.RouteTag, Selected: s.IsSelected(d.Name)}
	})

	return &SessionView{
		SessionID:     s.ID,
		Filter:        s.Filter(),
		FilterOptions: h.Config.FilterOptions(),
		Destinations:  items,
		AllSelected:   s.AllSelected(destinationNames(visible)),
		Route:         routeView(s),
	}, nil
}

// recomputeAndRespond recomputes the route after a selection or filter
// change. A failed computation is reported inside the view, not as an
// HTTP error, because the change itself succeeded.
func (h *Handler) recomputeAndRespond(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var routeErr *ErrorDetail
	if err := h.computeRoute(r.Context(), s); err != nil {
		status, detail := routeErrorDetail(err)
		if status == http.StatusInternalServerError {
			log.Printf("[ERROR] Recompute failed: session=%s err=%v", s.ID, err)
		} else {
			log.Printf("[ROUTING] Recompute failed: session=%s code=%s", s.ID, detail.Code)
		}
		routeErr = &detail
	}

	view, err := h.sessionView(r.Context(), s)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	view.RouteError = routeErr

	h.respondSession(w, r, view)
}

func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, view *SessionView) {
	if h.isHTMX(r) {
		h.renderTemplate(w, "operator_panel", view)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// HandleResetSession handles DELETE /api/v1/session. The session is dropped
// and its cookie expired; the next request starts from a fresh selection.
func (h *Handler) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		h.Sessions.Delete(c.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if h.isHTMX(r) {
		w.Header().Set("HX-Refresh", "true")
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetSession handles GET /api/v1/session
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	s := h.currentSession(w, r)

	view, err := h.sessionView(r.Context(), s)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.respondSession(w, r, view)
}

// HandleSetFilter handles PUT /api/v1/session/filter
func (h *Handler) HandleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RouteTag string `json:"route_tag"`
	}
	if h.isHTMX(r) {
		req.RouteTag = r.FormValue("route_tag")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	s := h.currentSession(w, r)
	s.SetFilter(req.RouteTag)
	log.Printf("[SESSION] Filter changed: id=%s filter=%s", s.ID, s.Filter())

	h.recomputeAndRespond(w, r, s)
}

// HandleToggle handles POST /api/v1/session/toggle
func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	name, ok := h.decodeName(w, r)
	if !ok {
		return
	}

	s := h.currentSession(w, r)
	selected := s.Toggle(name)
	log.Printf("[SESSION] Toggled: id=%s name=%s selected=%t", s.ID, name, selected)

	h.recomputeAndRespond(w, r, s)
}

// HandleToggleAll handles POST /api/v1/session/toggle-all
func (h *Handler) HandleToggleAll(w http.ResponseWriter, r *http.Request) {
	s := h.currentSession(w, r)

	visible, err := h.listDestinations(r.Context(), s.Filter())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	s.ToggleAll(destinationNames(visible))

	h.recomputeAndRespond(w, r, s)
}

// HandleToggleDeleteMark handles POST /api/v1/session/delete-mark
func (h *Handler) HandleToggleDeleteMark(w http.ResponseWriter, r *http.Request) {
	name, ok := h.decodeName(w, r)
	if !ok {
		return
	}

	s := h.currentSession(w, r)
	marked := s.ToggleDeleteMark(name)

	h.respondDeleteMarks(w, r, map[string]interface{}{"name": name, "marked": marked})
}

// HandleToggleAllDeleteMarks handles POST /api/v1/session/delete-mark-all
func (h *Handler) HandleToggleAllDeleteMarks(w http.ResponseWriter, r *http.Request) {
	s := h.currentSession(w, r)

	destinations, err := h.listDestinations(r.Context(), "")
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	marked := s.ToggleAllDeleteMarks(destinationNames(destinations))

	h.respondDeleteMarks(w, r, map[string]interface{}{"marked": marked})
}

func (h *Handler) respondDeleteMarks(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
	if h.isHTMX(r) {
		destinations, err := h.listDestinations(r.Context(), "")
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		h.renderDestinationList(w, r, destinations)
		return
	}

	s := h.currentSession(w, r)
	destinations, err := h.listDestinations(r.Context(), "")
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	body["marked_names"] = s.DeleteMarked(destinationNames(destinations))
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) decodeName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Name string `json:"name"`
	}
	if h.isHTMX(r) {
		req.Name = r.FormValue("name")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return "", false
	}
	if req.Name == "" {
		h.handleValidationErrorHTMX(w, r, "Name is required")
		return "", false
	}
	return req.Name, true
}
