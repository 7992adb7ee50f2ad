// Package apiv1 implements the classic Hue bridge REST surface
// (§4.7): users, lights, groups, scenes, rules, resourcelinks,
// schedules and bridge config, all rooted at /api.
package apiv1

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/huebridged/internal/backend"
	"github.com/dokzlo13/huebridged/internal/configstore"
	"github.com/dokzlo13/huebridged/internal/device"
	"github.com/dokzlo13/huebridged/internal/entertainment"
	"github.com/dokzlo13/huebridged/internal/identity"
)

// API wires the handlers against the shared application state.
type API struct {
	store   *configstore.Store
	cache   *device.Cache
	adapter backend.Adapter
	bridge  identity.Bridge
	ent     *entertainment.Manager

	mu             sync.Mutex
	newLights      map[string]any
	newLightsTimer *time.Timer
}

// New builds the v1 API handler set.
func New(store *configstore.Store, cache *device.Cache, adapter backend.Adapter, bridge identity.Bridge, ent *entertainment.Manager) *API {
	return &API{store: store, cache: cache, adapter: adapter, bridge: bridge, ent: ent}
}

// securityHeaders applies the fixed response headers every v1 response
// carries (§6).
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, HEAD")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Content-Security-Policy", "default-src 'self'")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Server", "nginx")
		next.ServeHTTP(w, r)
	})
}

// Mount registers every v1 route twice, with and without a trailing
// slash, per §4.7 ("trailing slashes must route identically").
func (a *API) Mount(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(securityHeaders)

		dual := func(pattern string, h http.HandlerFunc) {
			r.HandleFunc(pattern, h)
			r.HandleFunc(pattern+"/", h)
		}

		dual("/api", a.handleCreateUser)
		dual("/api/config", a.handleConfigUnauthenticated)
		dual("/link/{token}", a.handleLinkToken)

		dual("/api/{username}", a.handleUnknownRoot)
		dual("/api/{username}/config", a.handleConfig)

		dual("/api/{username}/lights", a.handleLights)
		dual("/api/{username}/lights/new", a.handleNewLights)
		dual("/api/{username}/lights/{id}", a.handleLight)
		dual("/api/{username}/lights/{id}/state", a.handleLightState)

		dual("/api/{username}/groups", a.handleGroups)
		dual("/api/{username}/groups/{id}", a.handleGroup)
		dual("/api/{username}/groups/{id}/action", a.handleGroupAction)

		dual("/api/{username}/scenes", a.opaqueCollection(configstore.CollectionScenes))
		dual("/api/{username}/scenes/{id}", a.opaqueItem(configstore.CollectionScenes))
		dual("/api/{username}/rules", a.opaqueCollection(configstore.CollectionRules))
		dual("/api/{username}/rules/{id}", a.opaqueItem(configstore.CollectionRules))
		dual("/api/{username}/resourcelinks", a.opaqueCollection(configstore.CollectionResourceLinks))
		dual("/api/{username}/resourcelinks/{id}", a.opaqueItem(configstore.CollectionResourceLinks))
		dual("/api/{username}/schedules", a.opaqueCollection(configstore.CollectionSchedules))
		dual("/api/{username}/schedules/{id}", a.opaqueItem(configstore.CollectionSchedules))
	})

	// Catch-all: anything unmatched returns the same JSON 404/405 shape
	// real bridges use, rather than a generic not-found page, so clients
	// don't error-loop (§4.7). Registered on the root router, not the
	// securityHeaders group above — chi's Group/With clones the Mux and
	// only the root's NotFound/MethodNotAllowed handlers are consulted
	// once no route in the shared tree matches.
	r.NotFound(a.handleNotFound)
	r.MethodNotAllowed(a.handleMethodNotAllowed)
}
