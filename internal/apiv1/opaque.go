package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/huebridged/internal/configstore"
)

// opaqueCollection builds the GET (list) / POST (create) handler for
// one of the echo-only collections (scenes, rules, resourcelinks,
// schedules) — §4.7's "opaque CRUD".
func (a *API) opaqueCollection(c configstore.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.authenticate(w, r); !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, a.projectCollection(c))
		case http.MethodPost:
			var doc map[string]any
			if !decodeBody(w, r, &doc) {
				return
			}
			if c == configstore.CollectionScenes && doc["group"] == nil {
				doc["group"] = "0"
			}
			id := a.store.OpaqueCreate(c, doc)
			writeJSON(w, []successEnvelope{{Success: map[string]any{"id": id}}})
		default:
			a.handleMethodNotAllowed(w, r)
		}
	}
}

// projectCollection returns scenes with their stored lightstates
// replaced by the owning group's light list, matching the bridge's
// "full state" scene projection (§4.7/original source).
func (a *API) projectCollection(c configstore.Collection) map[string]any {
	raw := a.store.Opaque(c)
	if c != configstore.CollectionScenes {
		return toAnyMap(raw)
	}
	out := map[string]any{}
	for id, doc := range raw {
		projected := map[string]any{}
		for k, v := range doc {
			if k == "lightstates" {
				continue
			}
			projected[k] = v
		}
		if groupID, ok := doc["group"].(string); ok {
			if rec, ok := a.store.GetGroup(groupID); ok {
				projected["lights"] = rec.Lights
			}
		}
		out[id] = projected
	}
	return out
}

func toAnyMap(m map[string]map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// opaqueItem builds the GET / PUT / DELETE handler for one item in a
// collection.
func (a *API) opaqueItem(c configstore.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := a.authenticate(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		switch r.Method {
		case http.MethodGet:
			doc, ok := a.store.OpaqueGet(c, id)
			if !ok {
				writeJSON(w, map[string]any{})
				return
			}
			writeJSON(w, doc)
		case http.MethodPut:
			var fields map[string]any
			if !decodeBody(w, r, &fields) {
				return
			}
			if !a.store.OpaqueUpdate(c, id, fields) {
				writeError(w, ErrResourceNotFound, stripUserPrefix(r.URL.Path, user.Username), "no such resource")
				return
			}
			order := make([]string, 0, len(fields))
			for k := range fields {
				order = append(order, k)
			}
			writeJSON(w, hueSuccessFields(stripUserPrefix(r.URL.Path, user.Username), fields, order))
		case http.MethodDelete:
			a.store.OpaqueDelete(c, id)
			writeJSON(w, []successEnvelope{{Success: map[string]any{string(c) + "/" + id: "deleted."}}})
		default:
			a.handleMethodNotAllowed(w, r)
		}
	}
}
