package configstore

import (
	"reflect"
	"strconv"
)

// AllocateLightID returns the stable light_id for entityID, creating a
// default LightRecord the first time this entity is observed. The scan
// is O(n); the data model explicitly accepts this for small n (§3).
func (s *Store) AllocateLightID(entityID string, uniqueID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.doc.Lights {
		if rec.EntityID == entityID {
			return id
		}
	}

	nextID := 1
	for id := range s.doc.Lights {
		if n, err := strconv.Atoi(id); err == nil && n >= nextID {
			nextID = n + 1
		}
	}
	id := strconv.Itoa(nextID)
	s.doc.Lights[id] = &LightRecord{
		LightID:    id,
		EntityID:   entityID,
		Enabled:    true,
		Name:       "",
		UniqueID:   uniqueID,
		Config:     defaultLightConfig(),
		ThrottleMs: DefaultThrottleMs,
	}
	s.scheduleCommit()
	return id
}

// GetLight returns a copy of the light record, or false if it doesn't exist.
func (s *Store) GetLight(id string) (LightRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.doc.Lights[id]
	if !ok {
		return LightRecord{}, false
	}
	return *rec, true
}

// Lights returns a snapshot of every light record, enabled or not.
func (s *Store) Lights() map[string]LightRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]LightRecord, len(s.doc.Lights))
	for id, rec := range s.doc.Lights {
		out[id] = *rec
	}
	return out
}

// SetLight replaces the stored record for id wholesale. A write that
// doesn't change anything is a no-op (no commit scheduled).
func (s *Store) SetLight(id string, rec LightRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.LightID = id
	if existing, ok := s.doc.Lights[id]; ok && reflect.DeepEqual(*existing, rec) {
		return
	}
	s.doc.Lights[id] = &rec
	s.scheduleCommit()
}

// DeleteLight soft-disables a light (enabled=false); lights are never
// hard-deleted (§3 lifecycle).
func (s *Store) DeleteLight(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.doc.Lights[id]
	if !ok || !rec.Enabled {
		return
	}
	rec.Enabled = false
	s.scheduleCommit()
}

// EnableAllLights re-enables every disabled light, used by the v1
// "search for new lights" endpoint.
func (s *Store) EnableAllLights() {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, rec := range s.doc.Lights {
		if !rec.Enabled {
			rec.Enabled = true
			changed = true
		}
	}
	if changed {
		s.scheduleCommit()
	}
}
