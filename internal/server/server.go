package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"bento-route-planner/internal/config"
	"bento-route-planner/internal/database"
	"bento-route-planner/internal/geocoding"
	"bento-route-planner/internal/handlers"
	"bento-route-planner/internal/routing"
	"bento-route-planner/internal/session"
	"bento-route-planner/internal/sqlstore"
	"bento-route-planner/web"
)

// MetersPerKilometer converts route distances for display
const MetersPerKilometer = 1000.0

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         database.DataStore
	listener   net.Listener
	addr       string
	stopPrune  context.CancelFunc
}

// New creates and initializes a new server (does not start it)
func New(cfg *config.Config) (*Server, error) {
	log.Printf("Initializing data store...")
	db, err := sqlstore.Open(cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	log.Printf("Loading templates...")
	templates, err := loadTemplates(web.Templates)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	handler := NewHandler(cfg, db, NewGeocoder(cfg), templates)
	staticFS, err := web.StaticFiles()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load static assets: %w", err)
	}
	mux := setupRoutes(handler, staticFS)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      loggingMiddleware(corsMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         db,
		addr:       cfg.ServerAddr,
	}, nil
}

// NewGeocoder returns the configured geocoding backend
func NewGeocoder(cfg *config.Config) geocoding.Geocoder {
	if cfg.Geocoder == config.GeocoderGoogle {
		log.Printf("[GEOCODING] Using Google Geocoding API")
		return geocoding.NewGoogleGeocoder(cfg.GoogleMapsAPIKey, "")
	}
	log.Printf("[GEOCODING] Using Nominatim")
	return geocoding.NewNominatimGeocoder(cfg.NominatimURL)
}

// NewAssembler wires a route assembler to resolver with the configured solver options
func NewAssembler(cfg *config.Config, resolver routing.AddressResolver) *routing.Assembler {
	var opts []routing.SolverOption
	if cfg.TwoOpt {
		opts = append(opts, routing.WithTwoOpt(0))
	}
	return routing.NewAssembler(resolver, routing.NewCheapestArcSolver(opts...), cfg.EstimateConfig())
}

// NewHandler assembles the request handler and its collaborators
func NewHandler(cfg *config.Config, db database.DataStore, geocoder geocoding.Geocoder, templates *handlers.TemplateSet) *handlers.Handler {
	memo := geocoding.NewMemoGeocoder(geocoder, db.GeocodeCache(), geocoding.DefaultMaxRetries)
	return &handlers.Handler{
		DB:        db,
		Geocoder:  geocoder,
		Memo:      memo,
		Assembler: NewAssembler(cfg, memo),
		Sessions:  session.NewStore(),
		Config:    cfg,
		Templates: templates,
	}
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s.stopPrune = cancel
	go s.pruneSessions(ctx, s.handler.Config.SessionMaxIdle)

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopPrune != nil {
		s.stopPrune()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

// pruneSessions drops idle sessions until ctx is cancelled
func (s *Server) pruneSessions(ctx context.Context, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	interval := maxIdle / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.handler.Sessions.Prune(maxIdle)
		}
	}
}

// Template helper functions
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
		"add": func(a, b int) int {
			return a + b
		},
		"toJSON": func(v interface{}) string {
			b, err := json.Marshal(v)
			if err != nil {
				return "null"
			}
			return string(b)
		},
		"formatDistance": formatDistance,
		"circled":        circled,
	}
}

// formatDistance renders meters as kilometers with one decimal
func formatDistance(meters float64) string {
	return humanize.FormatFloat("#,###.#", meters/MetersPerKilometer) + " km"
}

// circled returns the enclosed numeral for n in 1..20, "(n)" beyond that
func circled(n int) string {
	if n >= 1 && n <= 20 {
		return string(rune('①' + n - 1))
	}
	return fmt.Sprintf("(%d)", n)
}

// loadTemplates loads all templates from the embedded filesystem
func loadTemplates(templatesFS fs.FS) (*handlers.TemplateSet, error) {
	funcs := templateFuncs()
	base := template.New("").Funcs(funcs)

	layoutContent, err := fs.ReadFile(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}
	_, err = base.New("layout.html").Parse(string(layoutContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	partialFiles, err := fs.Glob(templatesFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob partials: %w", err)
	}

	for _, file := range partialFiles {
		content, err := fs.ReadFile(templatesFS, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read partial %s: %w", file, err)
		}
		name := file[len("templates/partials/"):]
		_, err = base.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", file, err)
		}
	}

	// Page templates stay as strings; each render parses one into a clone of base
	pages := make(map[string]string)
	pageFiles := []string{"index.html", "admin.html"}
	for _, name := range pageFiles {
		content, err := fs.ReadFile(templatesFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", name, err)
		}
		pages[name] = string(content)
	}

	return &handlers.TemplateSet{
		Base:  base,
		Pages: pages,
		Funcs: funcs,
	}, nil
}

// methods dispatches by HTTP method
func methods(byMethod map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := byMethod[r.Method]; ok {
			h(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler, staticFS fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	mux.HandleFunc("/api/v1/health", handler.HandleHealthCheck)

	mux.HandleFunc("/api/v1/destinations", methods(map[string]http.HandlerFunc{
		http.MethodGet:  handler.HandleListDestinations,
		http.MethodPost: handler.HandleUpsertDestination,
	}))

	mux.HandleFunc("/api/v1/destinations/delete", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleBulkDelete,
	}))

	mux.HandleFunc("/api/v1/destinations/delete-marked", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleDeleteMarked,
	}))

	destination := methods(map[string]http.HandlerFunc{
		http.MethodGet:    handler.HandleGetDestination,
		http.MethodPut:    handler.HandleUpsertDestination,
		http.MethodDelete: handler.HandleDeleteDestination,
	})
	mux.HandleFunc("/api/v1/destinations/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/destinations/" || strings.Contains(strings.TrimPrefix(r.URL.Path, "/api/v1/destinations/"), "/") {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		destination(w, r)
	})

	mux.HandleFunc("/api/v1/depot", methods(map[string]http.HandlerFunc{
		http.MethodGet: handler.HandleGetDepot,
		http.MethodPut: handler.HandleSetDepot,
	}))

	mux.HandleFunc("/api/v1/import/glug", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleImportGLUG,
	}))
	mux.HandleFunc("/api/v1/import/csv", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleImportCSV,
	}))
	mux.HandleFunc("/api/v1/export/csv", methods(map[string]http.HandlerFunc{
		http.MethodGet: handler.HandleExportCSV,
	}))

	mux.HandleFunc("/api/v1/session", methods(map[string]http.HandlerFunc{
		http.MethodGet:    handler.HandleGetSession,
		http.MethodDelete: handler.HandleResetSession,
	}))
	mux.HandleFunc("/api/v1/session/filter", methods(map[string]http.HandlerFunc{
		http.MethodPut: handler.HandleSetFilter,
	}))
	mux.HandleFunc("/api/v1/session/toggle", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleToggle,
	}))
	mux.HandleFunc("/api/v1/session/toggle-all", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleToggleAll,
	}))
	mux.HandleFunc("/api/v1/session/delete-mark", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleToggleDeleteMark,
	}))
	mux.HandleFunc("/api/v1/session/delete-mark-all", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleToggleAllDeleteMarks,
	}))

	mux.HandleFunc("/api/v1/route", methods(map[string]http.HandlerFunc{
		http.MethodGet: handler.HandleGetRoute,
	}))
	mux.HandleFunc("/api/v1/route/compute", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleComputeRoute,
	}))
	mux.HandleFunc("/api/v1/route/move", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleMoveStop,
	}))
	mux.HandleFunc("/api/v1/route/reset", methods(map[string]http.HandlerFunc{
		http.MethodPost: handler.HandleResetRoute,
	}))

	mux.HandleFunc("/api/v1/address-search", methods(map[string]http.HandlerFunc{
		http.MethodGet: handler.HandleAddressSearch,
	}))

	// Page routes
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		handler.HandleIndexPage(w, r)
	})

	mux.HandleFunc("/admin", methods(map[string]http.HandlerFunc{
		http.MethodGet: handler.HandleAdminPage,
	}))

	return mux
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		log.Printf("[HTTP] %s %s %d %v", r.Method, r.URL.Path, lrw.statusCode, duration)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow localhost origins
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, HX-Request, HX-Target, HX-Current-URL")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
