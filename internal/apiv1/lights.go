package apiv1

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/huebridged/internal/command"
	"github.com/dokzlo13/huebridged/internal/configstore"
)

// handleLights dispatches GET (list) and POST (search-for-new) on the
// lights collection.
func (a *API) handleLights(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, a.allLightsHue())
	case http.MethodPost:
		a.searchNewLights(w, r, user)
	default:
		a.handleMethodNotAllowed(w, r)
	}
}

func (a *API) allLightsHue() map[string]any {
	out := map[string]any{}
	for _, dev := range a.cache.All() {
		rec, ok := a.store.GetLight(dev.LightID())
		if !ok || !rec.Enabled {
			continue
		}
		out[dev.LightID()] = lightToHue(dev, rec)
	}
	return out
}

// searchNewLights implements POST /api/{u}/lights (§4.7): re-enables
// everything disabled and opens a 60-second "new_lights" window.
func (a *API) searchNewLights(w http.ResponseWriter, r *http.Request, user configstore.User) {
	a.store.EnableAllLights()
	a.store.EnableAllGroups()

	newLights := map[string]any{}
	for _, dev := range a.cache.All() {
		rec, ok := a.store.GetLight(dev.LightID())
		if !ok {
			continue
		}
		newLights[dev.LightID()] = lightToHue(dev, rec)
	}
	a.mu.Lock()
	a.newLights = newLights
	if a.newLightsTimer != nil {
		a.newLightsTimer.Stop()
	}
	a.newLightsTimer = time.AfterFunc(60*time.Second, func() {
		a.mu.Lock()
		a.newLights = map[string]any{}
		a.mu.Unlock()
	})
	a.mu.Unlock()

	writeSuccess(w, stripUserPrefix(r.URL.Path, user.Username), map[string]any{})
}

func (a *API) handleNewLights(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authenticate(w, r); !ok {
		return
	}
	a.mu.Lock()
	lights := a.newLights
	a.mu.Unlock()
	if lights == nil {
		lights = map[string]any{}
	}
	writeJSON(w, lights)
}

// handleLight serves GET /api/{u}/lights/{id} and DELETE (soft disable).
func (a *API) handleLight(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if id == "new" {
		a.handleNewLights(w, r)
		return
	}
	dev, ok := a.cache.ByLightID(id)
	if !ok {
		writeError(w, ErrResourceNotAvailable, stripUserPrefix(r.URL.Path, user.Username), "resource not available")
		return
	}
	rec, _ := a.store.GetLight(id)

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, lightToHue(dev, rec))
	case http.MethodDelete:
		a.store.DeleteLight(id)
		writeSuccess(w, stripUserPrefix(r.URL.Path, user.Username), "/lights/"+id+" deleted.")
	default:
		a.handleMethodNotAllowed(w, r)
	}
}

type lightStateRequest struct {
	On             *bool       `json:"on"`
	Bri            *int        `json:"bri"`
	BriIncrement   *int        `json:"bri_inc"`
	CT             *int        `json:"ct"`
	Hue            *int        `json:"hue"`
	Sat            *int        `json:"sat"`
	XY             *[2]float64 `json:"xy"`
	RGB            *[3]int     `json:"rgb"` // non-standard convenience extension, harmless if absent
	Effect         *string     `json:"effect"`
	Alert          *string     `json:"alert"`
	TransitionTime *int        `json:"transitiontime"`
}

// handleLightState implements PUT /api/{u}/lights/{id}/state (§4.7):
// translates the request body into a C4 command and executes it
// through the throttle gate.
func (a *API) handleLightState(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPut {
		a.handleMethodNotAllowed(w, r)
		return
	}
	id := chi.URLParam(r, "id")
	dev, ok := a.cache.ByLightID(id)
	if !ok {
		writeError(w, ErrResourceNotAvailable, stripUserPrefix(r.URL.Path, user.Username), "resource not available")
		return
	}

	var req lightStateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, _ := a.store.GetLight(id)
	cmd := command.New(dev.Kind(), rec.ThrottleMs, boolValue(rec.State.PowerState))
	fields := map[string]any{}
	order := []string{}

	addField := func(name string, v any) {
		fields[name] = v
		order = append(order, name)
	}

	if req.On != nil {
		cmd.SetPowerState(*req.On)
		addField("on", *req.On)
	}
	if req.Bri != nil {
		cmd.SetBrightness(*req.Bri)
		addField("bri", *req.Bri)
	}
	if req.CT != nil {
		cmd.SetColorTemperature(*req.CT)
		addField("ct", *req.CT)
	}
	if req.Hue != nil && req.Sat != nil {
		cmd.SetHueSat(*req.Hue, *req.Sat)
		addField("hue", *req.Hue)
		addField("sat", *req.Sat)
	} else if req.Hue != nil {
		cmd.SetHueSat(*req.Hue, int(uint8Value(rec.State.Sat, 0)))
		addField("hue", *req.Hue)
	} else if req.Sat != nil {
		cmd.SetHueSat(int(uint16Value(rec.State.Hue, 0)), *req.Sat)
		addField("sat", *req.Sat)
	}
	if req.XY != nil {
		cmd.SetXY(req.XY[0], req.XY[1])
		addField("xy", []float64{req.XY[0], req.XY[1]})
	}
	if req.Effect != nil {
		cmd.SetEffect(*req.Effect)
		addField("effect", *req.Effect)
	}
	if req.TransitionTime != nil {
		cmd.SetTransitionMs(*req.TransitionTime*100, true)
		addField("transitiontime", *req.TransitionTime)
	}
	if req.Alert != nil {
		cmd.SetFlash(*req.Alert, rec.State)
		addField("alert", *req.Alert)
	}

	if _, err := dev.Execute(r.Context(), cmd.State()); err != nil {
		writeError(w, ErrResourceNotAvailable, stripUserPrefix(r.URL.Path, user.Username), "backend rejected command")
		return
	}

	writeJSON(w, hueSuccessFields(stripUserPrefix(r.URL.Path, user.Username), fields, order))
}
