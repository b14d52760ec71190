package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"bento-route-planner/internal/database"
	"bento-route-planner/internal/importer"
	"bento-route-planner/internal/models"
	"bento-route-planner/internal/routing"
)

// Geocoder backends
const (
	GeocoderNominatim = "nominatim"
	GeocoderGoogle    = "google"
)

// DefaultDepotName is the reserved destination name holding the depot address
const DefaultDepotName = "出発地"

// DefaultRouteTags is the fixed list of delivery routes offered by the filter
var DefaultRouteTags = []string{"A", "B①", "B②", "C", "D", "E", "F", "G", "その他"}

// Config holds runtime configuration for the server and the CLI
type Config struct {
	ServerAddr       string
	DBPath           string
	DatabaseURL      string
	Geocoder         string
	GoogleMapsAPIKey string
	NominatimURL     string
	DepotName        string
	RouteTags        []string
	DwellMinutes     float64
	SpeedsKmh        []float64
	TwoOpt           bool
	GLUGSchema       importer.GLUGSchema
	SessionMaxIdle   time.Duration
	OpenBrowser      bool
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		ServerAddr:       getEnv("SERVER_ADDR", "127.0.0.1:8080"),
		DBPath:           os.Getenv("DB_PATH"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Geocoder:         strings.ToLower(getEnv("GEOCODER", GeocoderNominatim)),
		GoogleMapsAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
		NominatimURL:     os.Getenv("NOMINATIM_URL"),
		DepotName:        getEnv("DEPOT_NAME", DefaultDepotName),
		RouteTags:        splitList(getEnv("ROUTE_TAGS", strings.Join(DefaultRouteTags, ","))),
		GLUGSchema:       importer.DefaultGLUGSchema,
	}

	if cfg.DBPath == "" && cfg.DatabaseURL == "" {
		path, err := database.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default database path: %w", err)
		}
		cfg.DBPath = path
	}

	var err error
	if cfg.DwellMinutes, err = parseFloat("DWELL_MINUTES", routing.DefaultDwellMinutes); err != nil {
		return nil, err
	}
	if cfg.DwellMinutes < 0 {
		return nil, fmt.Errorf("DWELL_MINUTES must not be negative, got %v", cfg.DwellMinutes)
	}
	if cfg.SpeedsKmh, err = parseSpeeds("SPEEDS_KMH", routing.DefaultSpeedsKmh); err != nil {
		return nil, err
	}
	if cfg.TwoOpt, err = parseBool("TWO_OPT", false); err != nil {
		return nil, err
	}
	if cfg.OpenBrowser, err = parseBool("OPEN_BROWSER", false); err != nil {
		return nil, err
	}
	if cfg.SessionMaxIdle, err = parseDuration("SESSION_MAX_IDLE", 12*time.Hour); err != nil {
		return nil, err
	}
	if v := os.Getenv("GLUG_COLUMNS"); v != "" {
		if cfg.GLUGSchema, err = importer.ParseGLUGSchema(v); err != nil {
			return nil, fmt.Errorf("invalid GLUG_COLUMNS: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Geocoder {
	case GeocoderNominatim:
	case GeocoderGoogle:
		if strings.TrimSpace(c.GoogleMapsAPIKey) == "" {
			return fmt.Errorf("GOOGLE_MAPS_API_KEY is required when GEOCODER=%s", GeocoderGoogle)
		}
	default:
		return fmt.Errorf("unknown GEOCODER %q (want %s or %s)", c.Geocoder, GeocoderNominatim, GeocoderGoogle)
	}
	if strings.TrimSpace(c.DepotName) == "" {
		return fmt.Errorf("DEPOT_NAME must not be empty")
	}
	return nil
}

// EstimateConfig returns the route estimate parameters
func (c *Config) EstimateConfig() routing.EstimateConfig {
	return routing.EstimateConfig{DwellMinutes: c.DwellMinutes, SpeedsKmh: c.SpeedsKmh}
}

// FilterOptions returns the filter choices with models.AllRouteTags first
func (c *Config) FilterOptions() []string {
	return append([]string{models.AllRouteTags}, lo.Without(c.RouteTags, models.AllRouteTags)...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	return lo.Uniq(lo.Compact(parts))
}

func parseFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func parseSpeeds(key string, def []float64) ([]float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return append([]float64(nil), def...), nil
	}

	var speeds []float64
	for _, part := range splitList(v) {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", key, part, err)
		}
		if f <= 0 {
			return nil, fmt.Errorf("invalid %s entry %q: speed must be positive", key, part)
		}
		speeds = append(speeds, f)
	}
	if len(speeds) == 0 {
		return nil, fmt.Errorf("%s has no speeds", key)
	}
	return speeds, nil
}

func parseBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
