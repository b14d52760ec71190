package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"html/template"
	"log"
	"net/http"
	"time"

	"bento-route-planner/internal/config"
	"bento-route-planner/internal/database"
	"bento-route-planner/internal/geocoding"
	"bento-route-planner/internal/routing"
	"bento-route-planner/internal/session"
)

// SessionCookieName is the cookie carrying the operator session ID
const SessionCookieName = "session_id"

// TemplateSet holds base templates and page templates separately
type TemplateSet struct {
	Base  *template.Template
	Pages map[string]string
	Funcs template.FuncMap
}

// AddressForgetter drops remembered coordinates for an address
type AddressForgetter interface {
	Forget(address string)
}

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB        database.DataStore
	Geocoder  geocoding.Geocoder
	Memo      AddressForgetter
	Assembler *routing.Assembler
	Sessions  *session.Store
	Config    *config.Config
	Templates *TemplateSet
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// isHTMX checks if the request is an htmx request
func (h *Handler) isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleValidationErrorHTMX handles 400 errors with htmx support
func (h *Handler) handleValidationErrorHTMX(w http.ResponseWriter, r *http.Request, message string) {
	if h.isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `<div class="alert alert-warning">%s</div>`, html.EscapeString(message))
		return
	}
	h.handleValidationError(w, message)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	log.Printf("[ERROR] Internal error: %v", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// routeErrorDetail classifies a route computation failure.
// It returns the HTTP status and the error body for err.
func routeErrorDetail(err error) (int, ErrorDetail) {
	var unresolved *routing.ErrAddressUnresolved
	var failed *routing.ErrRoutingFailed
	var lookup *routing.ErrLookupFailed

	switch {
	case errors.As(err, &unresolved):
		return http.StatusUnprocessableEntity, ErrorDetail{
			Code:    "ADDRESS_UNRESOLVED",
			Message: fmt.Sprintf("%d address(es) could not be located", len(unresolved.Missing)),
			Details: map[string]interface{}{"missing": unresolved.Missing},
		}
	case errors.As(err, &failed):
		return http.StatusUnprocessableEntity, ErrorDetail{
			Code:    "ROUTING_FAILED",
			Message: failed.Reason,
			Details: map[string]interface{}{"stops": failed.Stops},
		}
	case errors.As(err, &lookup):
		return http.StatusBadGateway, ErrorDetail{
			Code:    "GEOCODER_UNAVAILABLE",
			Message: fmt.Sprintf("Address lookup failed for %s", lookup.Name),
			Details: map[string]interface{}{"name": lookup.Name, "address": lookup.Address},
		}
	default:
		return http.StatusInternalServerError, ErrorDetail{
			Code:    "INTERNAL_ERROR",
			Message: "An error occurred. Please try again.",
		}
	}
}

// handleRouteError writes the error response for a failed route computation
func (h *Handler) handleRouteError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := routeErrorDetail(err)
	if status == http.StatusInternalServerError {
		log.Printf("[ERROR] Internal error: %v", err)
	}
	if h.isHTMX(r) {
		h.renderTemplateStatus(w, status, "route_error", detail)
		return
	}
	h.writeJSON(w, status, ErrorResponse{Error: detail})
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// currentSession returns the caller's session, creating one and setting the
// cookie when the request carries none or an unknown ID.
func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(SessionCookieName); err == nil {
		id = c.Value
	}

	s, created := h.Sessions.GetOrCreate(id)
	if created {
		cookie := &http.Cookie{
			Name:     SessionCookieName,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(h.Config.SessionMaxIdle / time.Second),
		}
		http.SetCookie(w, cookie)
		// later lookups within this request must see the same session
		others := r.Cookies()
		r.Header.Del("Cookie")
		for _, c := range others {
			if c.Name != SessionCookieName {
				r.AddCookie(c)
			}
		}
		r.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	return s
}

// renderTemplate renders an HTML template
func (h *Handler) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	h.renderTemplateStatus(w, http.StatusOK, name, data)
}

// renderTemplateStatus renders a page or partial into a buffer and writes it
// with status. Nothing is written before the template has executed.
func (h *Handler) renderTemplateStatus(w http.ResponseWriter, status int, name string, data interface{}) {
	// Always clone to avoid "cannot Clone after executed" error
	tmpl, err := h.Templates.Base.Clone()
	if err != nil {
		log.Printf("[ERROR] Template clone error: template=%s err=%v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if pageContent, ok := h.Templates.Pages[name]; ok {
		if _, err := tmpl.New(name).Parse(pageContent); err != nil {
			log.Printf("[ERROR] Template parse error: template=%s err=%v", name, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		err = tmpl.ExecuteTemplate(&buf, "layout.html", data)
	} else {
		err = tmpl.ExecuteTemplate(&buf, name, data)
	}
	if err != nil {
		log.Printf("[ERROR] Template execute error: template=%s err=%v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// renderError renders an error response (JSON for API, HTML for htmx)
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if h.isHTMX(r) {
		log.Printf("[ERROR] Internal error: %v", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `<div class="alert alert-error">%s</div>`, html.EscapeString(err.Error()))
		return
	}
	h.handleInternalError(w, err)
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"

	if err := h.DB.HealthCheck(r.Context()); err != nil {
		log.Printf("[ERROR] Health check failed: %v", err)
		status = "degraded"
		dbStatus = "error"
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"version":  "1.0.0",
		"database": dbStatus,
		"sessions": h.Sessions.Len(),
	})
}
