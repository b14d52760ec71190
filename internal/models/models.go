package models

import "time"

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Destination is a named delivery destination
type Destination struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	RouteTag string `json:"route_tag"`
}

// MatchesTag reports whether the destination belongs to the given route tag.
// An empty tag or AllRouteTags matches every destination.
func (d *Destination) MatchesTag(tag string) bool {
	if tag == "" || tag == AllRouteTags {
		return true
	}
	return d.RouteTag == tag
}

// AllRouteTags is the filter value selecting every route tag
const AllRouteTags = "all"

// RouteStop represents a single stop in a calculated route
type RouteStop struct {
	Order                    int         `json:"order"`
	Name                     string      `json:"name"`
	Address                  string      `json:"address"`
	Coords                   Coordinates `json:"coords"`
	IsDepot                  bool        `json:"is_depot"`
	DistanceFromPrevMeters   float64     `json:"distance_from_prev_meters"`
	CumulativeDistanceMeters float64     `json:"cumulative_distance_meters"`
}

// DurationEstimate is the estimated route duration at one average speed
type DurationEstimate struct {
	SpeedKmh float64 `json:"speed_kmh"`
	Minutes  int     `json:"minutes"`
}

// Route is an ordered open path starting at the depot
type Route struct {
	Stops               []RouteStop        `json:"stops"`
	TotalDistanceMeters float64            `json:"total_distance_meters"`
	DwellMinutes        float64            `json:"dwell_minutes"`
	Estimates           []DurationEstimate `json:"estimates"`
	ComputedAt          time.Time          `json:"computed_at"`
}

// Names returns the stop names in visiting order
func (r *Route) Names() []string {
	names := make([]string, len(r.Stops))
	for i, s := range r.Stops {
		names[i] = s.Name
	}
	return names
}

// Path returns the stop coordinates in visiting order
func (r *Route) Path() []Coordinates {
	path := make([]Coordinates, len(r.Stops))
	for i, s := range r.Stops {
		path[i] = s.Coords
	}
	return path
}

// IntermediateStops is the number of stops that incur a dwell period:
// everything except the depot and the final stop.
func (r *Route) IntermediateStops() int {
	if len(r.Stops) < 2 {
		return 0
	}
	return len(r.Stops) - 2
}

// GeocodeCacheEntry is a persisted address lookup
type GeocodeCacheEntry struct {
	Address string      `json:"address"`
	Coords  Coordinates `json:"coords"`
}
