package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore()

	session := store.Create()

	if _, err := uuid.Parse(session.ID); err != nil {
		t.Errorf("session ID should be a UUID: %v", err)
	}

	retrieved := store.Get(session.ID)
	if retrieved == nil {
		t.Fatal("should be able to get session by ID")
	}
	if retrieved != session {
		t.Error("Get should return the same session")
	}

	if store.Get("nonexistent") != nil {
		t.Error("should return nil for unknown session ID")
	}
}

func TestStore_GetOrCreate(t *testing.T) {
	store := NewStore()

	first, created := store.GetOrCreate("")
	if !created {
		t.Error("empty id should create a session")
	}

	again, created := store.GetOrCreate(first.ID)
	if created || again != first {
		t.Error("known id should return the existing session")
	}

	other, created := store.GetOrCreate("stale-cookie")
	if !created || other.ID == "stale-cookie" {
		t.Error("unknown id should create a fresh session with a new id")
	}

	if store.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", store.Len())
	}
}

func TestStore_Delete(t *testing.T) {
	store := NewStore()
	session := store.Create()

	store.Delete(session.ID)

	if store.Get(session.ID) != nil {
		t.Error("session should not exist after delete")
	}
}

func TestStore_Prune(t *testing.T) {
	store := NewStore()
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	old := store.Create()
	now = now.Add(2 * time.Hour)
	fresh := store.Create()

	removed := store.Prune(time.Hour)

	if removed != 1 {
		t.Errorf("expected 1 pruned session, got %d", removed)
	}
	if store.Get(old.ID) != nil {
		t.Error("idle session should be pruned")
	}
	if store.Get(fresh.ID) == nil {
		t.Error("fresh session should survive")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()
	session := store.Create()
	visible := []string{"A", "B", "C", "D"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := store.Get(session.ID)
			if s == nil {
				t.Error("session disappeared")
				return
			}
			switch i % 4 {
			case 0:
				s.Toggle(visible[i%len(visible)])
			case 1:
				s.ToggleAll(visible)
			case 2:
				s.Selected(visible)
			case 3:
				s.SetRoute(testRoute("depot", "A"))
			}
		}(i)
	}
	wg.Wait()

	if store.Get(session.ID) == nil {
		t.Fatal("session should still exist after concurrent access")
	}
}

func TestStore_Each(t *testing.T) {
	store := NewStore()
	a := store.Create()
	b := store.Create()
	a.SetRoute(testRoute("depot", "A"))
	b.SetRoute(testRoute("depot", "B"))

	store.Each((*Session).InvalidateRoute)

	for _, s := range []*Session{a, b} {
		if _, stale := s.Route(); !stale {
			t.Errorf("session %s route should be stale", s.ID)
		}
	}
}
