package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"bento-route-planner/internal/importer"
	"bento-route-planner/internal/session"
)

const maxUploadBytes = 10 << 20

// ImportResponse reports the outcome of an import
type ImportResponse struct {
	Format   string `json:"format"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Written  int    `json:"written"`
}

// HandleImportGLUG handles POST /api/v1/import/glug?route=
func (h *Handler) HandleImportGLUG(w http.ResponseWriter, r *http.Request) {
	h.handleImport(w, r, "GLUG", func(file []byte) (*importer.Result, error) {
		// the multipart form is parsed by now, so FormValue sees both sources
		routeTag := r.FormValue("route")
		return importer.ReadGLUG(bytes.NewReader(file), h.Config.GLUGSchema, importer.Options{
			DepotName: h.Config.DepotName,
			RouteTag:  routeTag,
		})
	})
}

// HandleImportCSV handles POST /api/v1/import/csv
func (h *Handler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	h.handleImport(w, r, "CSV", func(file []byte) (*importer.Result, error) {
		return importer.ReadCSV(bytes.NewReader(file), importer.Options{DepotName: h.Config.DepotName})
	})
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request, format string, parse func([]byte) (*importer.Result, error)) {
	file, err := readUpload(w, r)
	if err != nil {
		log.Printf("[HTTP] POST %s: invalid upload err=%v", r.URL.Path, err)
		h.handleValidationErrorHTMX(w, r, "A file upload named \"file\" is required")
		return
	}

	res, err := parse(file)
	if err != nil {
		var serr *importer.ErrSchemaMismatch
		if errors.As(err, &serr) {
			log.Printf("[IMPORT] %s rejected: missing=%v", format, serr.Missing)
			h.writeError(w, http.StatusBadRequest, "IMPORT_SCHEMA_ERROR", serr.Error(), map[string]interface{}{
				"missing": serr.Missing,
				"header":  serr.Header,
			})
			return
		}
		h.renderError(w, r, err)
		return
	}

	written, err := h.DB.Destinations().UpsertMany(r.Context(), res.Destinations)
	if err != nil {
		log.Printf("[ERROR] Failed to store %s import: count=%d err=%v", format, res.Imported(), err)
		h.renderError(w, r, err)
		return
	}
	for _, d := range res.Destinations {
		h.forgetAddress(d.Address)
	}
	h.Sessions.Each((*session.Session).InvalidateRoute)

	log.Printf("[IMPORT] %s stored: written=%d skipped=%d", format, written, res.Skipped)

	resp := ImportResponse{Format: format, Imported: res.Imported(), Skipped: res.Skipped, Written: written}
	if h.isHTMX(r) {
		h.renderTemplate(w, "import_result", resp)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleExportCSV handles GET /api/v1/export/csv
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	destinations, err := h.listDestinations(r.Context(), "")
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := importer.WriteCSV(&buf, destinations, h.Config.DepotName); err != nil {
		h.handleInternalError(w, err)
		return
	}

	filename := fmt.Sprintf("destinations_%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())

	log.Printf("[HTTP] Exported destinations: count=%d", len(destinations))
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, err
	}

	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
