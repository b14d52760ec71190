package session

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"bento-route-planner/internal/models"
)

// ErrInvalidMove is returned when a stop move would touch the depot or leave the route
var ErrInvalidMove = errors.New("invalid stop move")

// Session is one operator's working state: the route-tag filter, which
// destinations are selected, which are marked for deletion, and the last
// computed route. Destinations are selected until explicitly deselected.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu            sync.Mutex
	lastSeen      time.Time
	filter        string
	selected      map[string]bool
	deleteMarks   map[string]bool
	route         *models.Route
	originalRoute *models.Route
	stale         bool
	// generation counts selection, filter, invalidation and manual edit changes
	generation uint64
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   now,
		lastSeen:    now,
		filter:      models.AllRouteTags,
		selected:    make(map[string]bool),
		deleteMarks: make(map[string]bool),
	}
}

// Filter returns the current route-tag filter
func (s *Session) Filter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetFilter changes the route-tag filter and marks the route stale
func (s *Session) SetFilter(tag string) {
	if tag == "" {
		tag = models.AllRouteTags
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter != tag {
		s.filter = tag
		s.markStaleLocked()
	}
}

// IsSelected reports whether name is selected; unseen names are selected
func (s *Session) IsSelected(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSelectedLocked(name)
}

func (s *Session) isSelectedLocked(name string) bool {
	v, ok := s.selected[name]
	return !ok || v
}

// Toggle flips the selection of name and returns the new state
func (s *Session) Toggle(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := !s.isSelectedLocked(name)
	s.selected[name] = v
	s.markStaleLocked()
	return v
}

// Set selects or deselects name
func (s *Session) Set(name string, selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isSelectedLocked(name) != selected {
		s.markStaleLocked()
	}
	s.selected[name] = selected
}

// ToggleAll deselects every visible name when all of them are selected and
// selects them all otherwise. It returns the state applied.
func (s *Session) ToggleAll(visible []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := !s.allSelectedLocked(visible)
	for _, name := range visible {
		s.selected[name] = target
	}
	s.markStaleLocked()

	log.Printf("[SESSION] Toggle all: id=%s visible=%d selected=%t", s.ID, len(visible), target)
	return target
}

// AllSelected reports whether every visible name is selected
func (s *Session) AllSelected(visible []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allSelectedLocked(visible)
}

func (s *Session) allSelectedLocked(visible []string) bool {
	return lo.EveryBy(visible, s.isSelectedLocked)
}

// Selected returns the selected names among visible, in visible order
func (s *Session) Selected(visible []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(visible, func(name string, _ int) bool {
		return s.isSelectedLocked(name)
	})
}

// Route returns the current route and whether the selection or filter has
// changed since it was computed. The route is nil when none is held.
func (s *Session) Route() (*models.Route, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route, s.stale
}

// Generation identifies the current selection state. Read it before
// computing a route and hand it to SetRouteIfCurrent.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// SetRoute replaces the current route. A nil route clears it.
func (s *Session) SetRoute(route *models.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setRouteLocked(route)
}

// SetRouteIfCurrent stores route only when nothing changed since generation
// gen was read. A superseded result is dropped and false is returned.
func (s *Session) SetRouteIfCurrent(gen uint64, route *models.Route) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		log.Printf("[SESSION] Dropped superseded route: id=%s gen=%d current=%d", s.ID, gen, s.generation)
		return false
	}
	s.setRouteLocked(route)
	return true
}

func (s *Session) setRouteLocked(route *models.Route) {
	s.route = route
	s.originalRoute = copyRoute(route)
	s.stale = false
}

// InvalidateRoute marks the held route as out of date without dropping it.
// Computations started before the call can no longer be stored.
func (s *Session) InvalidateRoute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markStaleLocked()
}

// InvalidateRouteIfCurrent marks the route stale after a failed computation
// for generation gen. A failure of a superseded computation changes nothing.
func (s *Session) InvalidateRouteIfCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	s.stale = true
	return true
}

func (s *Session) markStaleLocked() {
	s.stale = true
	s.generation++
}

// MoveStop moves the stop at position from to position to. The depot stays
// first. recalc is applied to the reordered copy before it replaces the route.
func (s *Session) MoveStop(from, to int, recalc func(*models.Route) *models.Route) (*models.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.route == nil {
		return nil, fmt.Errorf("%w: no route", ErrInvalidMove)
	}
	n := len(s.route.Stops)
	if from < 1 || from >= n || to < 1 || to >= n {
		return nil, fmt.Errorf("%w: positions %d -> %d outside 1..%d", ErrInvalidMove, from, to, n-1)
	}

	edited := copyRoute(s.route)
	stop := edited.Stops[from]
	stops := append(edited.Stops[:from:from], edited.Stops[from+1:]...)
	stops = append(stops[:to], append([]models.RouteStop{stop}, stops[to:]...)...)
	edited.Stops = stops

	if recalc != nil {
		edited = recalc(edited)
	}
	s.route = edited
	s.generation++

	log.Printf("[SESSION] Moved stop: id=%s name=%s from=%d to=%d", s.ID, stop.Name, from, to)
	return edited, nil
}

// ResetRoute restores the route as it was last computed
func (s *Session) ResetRoute() *models.Route {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.route = copyRoute(s.originalRoute)
	s.generation++
	return s.route
}

// Edited reports whether the current route differs from the computed one
func (s *Session) Edited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.route == nil || s.originalRoute == nil {
		return false
	}
	return !slices.Equal(s.originalRoute.Names(), s.route.Names())
}

// ToggleDeleteMark flips the delete mark of name and returns the new state
func (s *Session) ToggleDeleteMark(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := !s.deleteMarks[name]
	s.deleteMarks[name] = v
	return v
}

// ToggleAllDeleteMarks clears every visible mark when all are marked and marks them all otherwise
func (s *Session) ToggleAllDeleteMarks(visible []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := !lo.EveryBy(visible, func(name string) bool { return s.deleteMarks[name] })
	for _, name := range visible {
		s.deleteMarks[name] = target
	}
	return target
}

// DeleteMarked returns the marked names among visible, in visible order
func (s *Session) DeleteMarked(visible []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(visible, func(name string, _ int) bool {
		return s.deleteMarks[name]
	})
}

// Forget drops all per-name state for names, e.g. after they were deleted
func (s *Session) Forget(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		delete(s.selected, name)
		delete(s.deleteMarks, name)
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func copyRoute(r *models.Route) *models.Route {
	if r == nil {
		return nil
	}
	c := *r
	c.Stops = append([]models.RouteStop(nil), r.Stops...)
	c.Estimates = append([]models.DurationEstimate(nil), r.Estimates...)
	return &c
}
