package configstore

import "strconv"

// Collection identifies one of the opaque, echo-only document sets.
type Collection string

const (
	CollectionScenes        Collection = "scenes"
	CollectionRules         Collection = "rules"
	CollectionResourceLinks Collection = "resourcelinks"
	CollectionSchedules     Collection = "schedules"
)

func (s *Store) collection(c Collection) map[string]map[string]any {
	switch c {
	case CollectionScenes:
		return s.doc.Scenes
	case CollectionRules:
		return s.doc.Rules
	case CollectionResourceLinks:
		return s.doc.ResourceLinks
	case CollectionSchedules:
		return s.doc.Schedules
	default:
		return nil
	}
}

// Opaque returns a snapshot of every document in the collection.
func (s *Store) Opaque(c Collection) map[string]map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.collection(c)
	out := make(map[string]map[string]any, len(src))
	for id, doc := range src {
		out[id] = cloneMap(doc)
	}
	return out
}

// OpaqueGet returns one document from the collection.
func (s *Store) OpaqueGet(c Collection, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collection(c)[id]
	if !ok {
		return nil, false
	}
	return cloneMap(doc), true
}

// OpaqueCreate inserts doc under the next dense decimal id and returns it.
func (s *Store) OpaqueCreate(c Collection, doc map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collection(c)
	nextID := 1
	for id := range coll {
		if n, err := strconv.Atoi(id); err == nil && n >= nextID {
			nextID = n + 1
		}
	}
	id := strconv.Itoa(nextID)
	coll[id] = doc
	s.scheduleCommit()
	return id
}

// OpaqueSet replaces (or creates) the document at id.
func (s *Store) OpaqueSet(c Collection, id string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection(c)[id] = doc
	s.scheduleCommit()
}

// OpaqueUpdate merges fields into the existing document at id, returning
// false if id doesn't exist.
func (s *Store) OpaqueUpdate(c Collection, id string, fields map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collection(c)
	doc, ok := coll[id]
	if !ok {
		return false
	}
	for k, v := range fields {
		doc[k] = v
	}
	s.scheduleCommit()
	return true
}

// OpaqueDelete hard-deletes a document (scenes/rules/resourcelinks have
// no soft-delete semantics).
func (s *Store) OpaqueDelete(c Collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collection(c)
	if _, ok := coll[id]; !ok {
		return
	}
	delete(coll, id)
	s.scheduleCommit()
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
