package apiv1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/huebridged/internal/configstore"
)

// writeJSON marshals v and writes it with HTTP 200, the Hue-bridge
// quirk of never signalling protocol errors through the status line
// (§7: "protocol error ... HTTP 200").
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, address, description string) {
	writeJSON(w, hueError(code, address, description))
}

func writeSuccess(w http.ResponseWriter, path string, value any) {
	writeJSON(w, hueSuccess(path, value))
}

// decodeBody parses the request body into v, writing a code-2 Hue error
// and returning false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		writeError(w, ErrBodyInvalidJSON, r.URL.Path, "body contains invalid JSON")
		return false
	}
	return true
}

// authenticate resolves the {username} path param against the store,
// writing a code-1 Hue error if it doesn't match a known user.
func (a *API) authenticate(w http.ResponseWriter, r *http.Request) (configstore.User, bool) {
	username := chi.URLParam(r, "username")
	user, ok := a.store.GetUser(username)
	if !ok {
		writeError(w, ErrUnauthorized, r.URL.Path, "unauthorized user")
		return configstore.User{}, false
	}
	return user, true
}

func (a *API) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, ErrResourceNotFound, r.URL.Path, "not found")
}

func (a *API) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, ErrMethodNotAllowed, r.URL.Path, "method not available for resource")
}

// handleUnknownRoot implements GET /api/{u} (§4.7): the full per-user
// configuration dump a client fetches right after pairing — every
// collection in one document, keyed the same way the individual
// collection endpoints are.
func (a *API) handleUnknownRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.handleMethodNotAllowed(w, r)
		return
	}
	if _, ok := a.authenticate(w, r); !ok {
		return
	}
	writeJSON(w, map[string]any{
		"lights":        a.allLightsHue(),
		"groups":        a.allGroupsHue(),
		"config":        a.fullConfig(),
		"schedules":     a.projectCollection(configstore.CollectionSchedules),
		"scenes":        a.projectCollection(configstore.CollectionScenes),
		"rules":         a.projectCollection(configstore.CollectionRules),
		"resourcelinks": a.projectCollection(configstore.CollectionResourceLinks),
		"sensors":       map[string]any{},
	})
}
