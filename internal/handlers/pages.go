package handlers

import (
	"net/http"
)

// HandleIndexPage handles GET /
func (h *Handler) HandleIndexPage(w http.ResponseWriter, r *http.Request) {
	s := h.currentSession(w, r)

	view, err := h.sessionView(r.Context(), s)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := map[string]interface{}{
		"Title":      "配送ルート",
		"ActivePage": "home",
		"Session":    view,
	}

	h.renderTemplate(w, "index.html", data)
}

// HandleAdminPage handles GET /admin
func (h *Handler) HandleAdminPage(w http.ResponseWriter, r *http.Request) {
	s := h.currentSession(w, r)

	destinations, err := h.listDestinations(r.Context(), "")
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	depot, err := h.depot(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	marked := make(map[string]bool)
	for _, name := range s.DeleteMarked(destinationNames(destinations)) {
		marked[name] = true
	}

	data := map[string]interface{}{
		"Title":        "管理",
		"ActivePage":   "admin",
		"Destinations": destinations,
		"Marked":       marked,
		"AllMarked":    len(destinations) > 0 && len(marked) == len(destinations),
		"Depot":        depot,
		"RouteTags":    h.Config.RouteTags,
		"GLUGFilters":  h.Config.FilterOptions(),
	}

	h.renderTemplate(w, "admin.html", data)
}
