package apiv2

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/huebridged/internal/backend"
	"github.com/dokzlo13/huebridged/internal/command"
	"github.com/dokzlo13/huebridged/internal/configstore"
	"github.com/dokzlo13/huebridged/internal/device"
	"github.com/dokzlo13/huebridged/internal/entertainment"
	"github.com/dokzlo13/huebridged/internal/identity"
)

// API wires the v2 handlers against the same shared application state
// apiv1 uses — both are projections of one data model (§4.8).
type API struct {
	store   *configstore.Store
	cache   *device.Cache
	adapter backend.Adapter
	bridge  identity.Bridge
	ent     *entertainment.Manager
	events  *EventBroker
}

// New builds the v2 API handler set.
func New(store *configstore.Store, cache *device.Cache, adapter backend.Adapter, bridge identity.Bridge, ent *entertainment.Manager) *API {
	return &API{store: store, cache: cache, adapter: adapter, bridge: bridge, ent: ent, events: NewEventBroker()}
}

// Events exposes the broker so other components (device reconciliation,
// tests) can publish change notifications onto the SSE stream.
func (a *API) Events() *EventBroker { return a.events }

type clipResponse struct {
	Errors []clipError `json:"errors"`
	Data   []resource  `json:"data"`
}

type clipError struct {
	Description string `json:"description"`
}

// Mount registers the CLIP v2 routes under /clip/v2 plus the top-level
// /eventstream/clip/v2 SSE endpoint (§4.8).
func (a *API) Mount(r chi.Router) {
	r.Route("/clip/v2/resource", func(r chi.Router) {
		r.Use(a.requireAppKey)
		r.Get("/", a.handleAll)
		r.Get("/{rtype}", a.handleByType)
		r.Get("/{rtype}/{id}", a.handleByID)
		r.Put("/light/{id}", a.handlePutLight)
	})
	r.Get("/eventstream/clip/v2", a.handleEventStream)
}

// requireAppKey enforces the hue-application-key header against the
// stored user set (§4.8).
func (a *API) requireAppKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("hue-application-key")
		if key == "" {
			writeClipError(w, http.StatusUnauthorized, "missing hue-application-key header")
			return
		}
		if _, ok := a.store.GetUser(key); !ok {
			writeClipError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleAll(w http.ResponseWriter, r *http.Request) {
	writeClipData(w, a.allResources())
}

func (a *API) handleByType(w http.ResponseWriter, r *http.Request) {
	rtype := chi.URLParam(r, "rtype")
	var out []resource
	for _, res := range a.allResources() {
		if res["type"] == rtype {
			out = append(out, res)
		}
	}
	writeClipData(w, out)
}

func (a *API) handleByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, res := range a.allResources() {
		if res["id"] == id {
			writeClipData(w, []resource{res})
			return
		}
	}
	writeClipError(w, http.StatusNotFound, "not found")
}

type putLightRequest struct {
	On *struct {
		On bool `json:"on"`
	} `json:"on"`
	Dimming *struct {
		Brightness float64 `json:"brightness"`
	} `json:"dimming"`
	Color *struct {
		XY struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"xy"`
	} `json:"color"`
	ColorTemperature *struct {
		Mirek int `json:"mirek"`
	} `json:"color_temperature"`
}

// handlePutLight implements PUT /clip/v2/resource/light/{id} (§4.8):
// translates the percent/0-100 CLIP body into a C4 command and routes
// it through the same throttle-gated Execute path apiv1 uses.
func (a *API) handlePutLight(w http.ResponseWriter, r *http.Request) {
	resourceIDParam := chi.URLParam(r, "id")
	dev := a.deviceByLightResourceID(resourceIDParam)
	if dev == nil {
		writeClipError(w, http.StatusNotFound, "unknown light resource")
		return
	}

	var req putLightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeClipError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, _ := a.store.GetLight(dev.LightID())
	cmd := command.New(dev.Kind(), rec.ThrottleMs, boolValue(rec.State.PowerState))
	if req.On != nil {
		cmd.SetPowerState(req.On.On)
	}
	if req.Dimming != nil {
		cmd.SetBrightness(percentToBackendBrightness(req.Dimming.Brightness))
	}
	if req.ColorTemperature != nil {
		cmd.SetColorTemperature(req.ColorTemperature.Mirek)
	}
	if req.Color != nil {
		cmd.SetXY(req.Color.XY.X, req.Color.XY.Y)
	}

	if _, err := dev.Execute(r.Context(), cmd.State()); err != nil {
		writeClipError(w, http.StatusInternalServerError, "backend rejected command")
		return
	}

	writeClipData(w, []resource{newResource(resourceIDParam, "/lights/"+rec.LightID, "light")})
}

func (a *API) deviceByLightResourceID(id string) *device.Device {
	for _, dev := range a.cache.All() {
		if resourceID(nsLight, dev.EntityID()) == id {
			return dev
		}
	}
	return nil
}

func writeClipData(w http.ResponseWriter, data []resource) {
	if data == nil {
		data = []resource{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(clipResponse{Errors: []clipError{}, Data: data})
}

func writeClipError(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(clipResponse{Errors: []clipError{{Description: description}}, Data: []resource{}})
}
