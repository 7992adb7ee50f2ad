package configstore

import (
	"reflect"
	"strconv"
)

// AllocateGroupID returns the stable group_id for areaID, creating a
// default GroupRecord the first time this area is observed.
func (s *Store) AllocateGroupID(areaID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.doc.Groups {
		if rec.AreaID != nil && *rec.AreaID == areaID {
			return id
		}
	}

	nextID := 1
	for id := range s.doc.Groups {
		if n, err := strconv.Atoi(id); err == nil && n >= nextID {
			nextID = n + 1
		}
	}
	id := strconv.Itoa(nextID)
	area := areaID
	s.doc.Groups[id] = &GroupRecord{
		GroupID: id,
		AreaID:  &area,
		Enabled: true,
		Name:    "",
		Class:   "Other",
		Type:    "Room",
		Lights:  []string{},
	}
	s.scheduleCommit()
	return id
}

// GetGroup returns a copy of the group record, or false if absent.
func (s *Store) GetGroup(id string) (GroupRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.doc.Groups[id]
	if !ok {
		return GroupRecord{}, false
	}
	return *rec, true
}

// Groups returns a snapshot of every group record.
func (s *Store) Groups() map[string]GroupRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]GroupRecord, len(s.doc.Groups))
	for id, rec := range s.doc.Groups {
		out[id] = *rec
	}
	return out
}

// CreateGroup inserts a brand-new local (non-area-backed) group and
// returns its allocated id.
func (s *Store) CreateGroup(rec GroupRecord) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextID := 1
	for id := range s.doc.Groups {
		if n, err := strconv.Atoi(id); err == nil && n >= nextID {
			nextID = n + 1
		}
	}
	id := strconv.Itoa(nextID)
	rec.GroupID = id
	if rec.Class == "" {
		rec.Class = "Other"
	}
	s.doc.Groups[id] = &rec
	s.scheduleCommit()
	return id
}

// SetGroup replaces the stored record for id wholesale.
func (s *Store) SetGroup(id string, rec GroupRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.GroupID = id
	if existing, ok := s.doc.Groups[id]; ok && reflect.DeepEqual(*existing, rec) {
		return
	}
	s.doc.Groups[id] = &rec
	s.scheduleCommit()
}

// DeleteGroup deletes a group. If it is a "Home Assistant"-class group
// it is soft-disabled instead; either way every scene referencing the
// group is deleted first (§4.1 cascade).
func (s *Store) DeleteGroup(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.doc.Groups[id]
	if !ok {
		return
	}

	for sceneID, scene := range s.doc.Scenes {
		if g, _ := scene["group"].(string); g == id {
			delete(s.doc.Scenes, sceneID)
		}
	}

	if rec.Class == "Home Assistant" {
		if rec.Enabled {
			rec.Enabled = false
			s.scheduleCommit()
		}
		return
	}

	delete(s.doc.Groups, id)
	s.scheduleCommit()
}

// EnableAllGroups re-enables every disabled group, used alongside
// EnableAllLights by the v1 "search for new lights" endpoint.
func (s *Store) EnableAllGroups() {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, rec := range s.doc.Groups {
		if !rec.Enabled {
			rec.Enabled = true
			changed = true
		}
	}
	if changed {
		s.scheduleCommit()
	}
}
