package apiv1

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/huebridged/internal/command"
	"github.com/dokzlo13/huebridged/internal/configstore"
)

func groupToHue(rec configstore.GroupRecord, a *API) map[string]any {
	anyOn, allOn, anyBri, seen := false, true, 0, false
	for _, lid := range rec.Lights {
		dev, ok := a.cache.ByLightID(lid)
		if !ok {
			continue
		}
		r, ok := a.store.GetLight(dev.LightID())
		if !ok {
			continue
		}
		seen = true
		on := boolValue(r.State.PowerState)
		if on {
			anyOn = true
			anyBri = int(uint8Value(r.State.Brightness, 0))
		} else {
			allOn = false
		}
	}
	if !seen {
		allOn = false
	}
	out := map[string]any{
		"name":   rec.Name,
		"lights": rec.Lights,
		"type":   rec.Type,
		"class":  rec.Class,
		"state": map[string]any{
			"all_on": allOn,
			"any_on": anyOn,
		},
		"action": map[string]any{
			"on":  anyOn,
			"bri": anyBri,
		},
	}
	if rec.Stream != nil {
		out["stream"] = rec.Stream
	}
	return out
}

func (a *API) handleGroups(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authenticate(w, r); !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, a.allGroupsHue())
	case http.MethodPost:
		a.createGroup(w, r)
	default:
		a.handleMethodNotAllowed(w, r)
	}
}

func (a *API) allGroupsHue() map[string]any {
	out := map[string]any{}
	for id, rec := range a.store.Groups() {
		if !rec.Enabled {
			continue
		}
		out[id] = groupToHue(rec, a)
	}
	return out
}

type createGroupRequest struct {
	Name   string   `json:"name"`
	Class  string   `json:"class"`
	Type   string   `json:"type"`
	Lights []string `json:"lights"`
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Class == "" {
		req.Class = "Other"
	}
	if req.Type == "" {
		req.Type = "LightGroup"
	}
	id := a.store.CreateGroup(configstore.GroupRecord{
		Name: req.Name, Class: req.Class, Type: req.Type, Lights: req.Lights, Enabled: true,
	})
	writeJSON(w, []successEnvelope{{Success: map[string]any{"id": id}}})
}

func (a *API) handleGroup(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	rec, ok := a.store.GetGroup(id)
	switch r.Method {
	case http.MethodGet:
		if !ok || !rec.Enabled {
			writeError(w, ErrResourceNotAvailable, stripUserPrefix(r.URL.Path, user.Username), "resource, "+r.URL.Path+", not available")
			return
		}
		writeJSON(w, groupToHue(rec, a))
	case http.MethodPut:
		a.updateGroup(w, r, id, rec, ok, user)
	case http.MethodDelete:
		a.store.DeleteGroup(id)
		writeJSON(w, []successEnvelope{{Success: map[string]any{"/groups/" + id: "deleted."}}})
	default:
		a.handleMethodNotAllowed(w, r)
	}
}

type updateGroupRequest struct {
	Name   *string                  `json:"name"`
	Lights *[]string                `json:"lights"`
	Class  *string                  `json:"class"`
	Stream *configstore.StreamConfig `json:"stream"`
}

// updateGroup implements PUT /api/{u}/groups/{id} (§4.7): a `stream`
// sub-document with active=true/false starts or stops an Entertainment
// session bound to this group and user.
func (a *API) updateGroup(w http.ResponseWriter, r *http.Request, id string, rec configstore.GroupRecord, existed bool, user configstore.User) {
	if !existed {
		writeError(w, ErrResourceNotFound, stripUserPrefix(r.URL.Path, user.Username), "no group config")
		return
	}

	var req updateGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fields := map[string]any{}
	order := []string{}
	add := func(k string, v any) { fields[k] = v; order = append(order, k) }

	if req.Name != nil {
		rec.Name = *req.Name
		add("name", *req.Name)
	}
	if req.Lights != nil {
		rec.Lights = *req.Lights
		add("lights", *req.Lights)
	}
	if req.Class != nil {
		rec.Class = *req.Class
		add("class", *req.Class)
	}
	if req.Stream != nil {
		rec.Stream = req.Stream
		add("stream", *req.Stream)
		if req.Stream.Active {
			if err := a.ent.Start(r.Context(), rec, user); err == nil {
				rec.Stream.Owner = user.Username
				if rec.Stream.ProxyMode == "" {
					rec.Stream.ProxyMode = "auto"
				}
				if rec.Stream.ProxyNode == "" {
					rec.Stream.ProxyNode = "/bridge"
				}
			}
		} else {
			a.ent.Stop(r.Context())
		}
	}

	a.store.SetGroup(id, rec)
	sort.Strings(order)
	writeJSON(w, hueSuccessFields(stripUserPrefix(r.URL.Path, user.Username), fields, order))
}

// handleGroupAction implements PUT /api/{u}/groups/{id}/action (§4.7):
// fans a command out to every member light, or applies a stored scene
// when group 0 carries a `scene` field.
func (a *API) handleGroupAction(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPut {
		a.handleMethodNotAllowed(w, r)
		return
	}
	id := chi.URLParam(r, "id")

	var raw map[string]any
	if !decodeBody(w, r, &raw) {
		return
	}

	if id == "0" {
		if sceneID, ok := raw["scene"].(string); ok {
			a.applyScene(r.Context(), sceneID)
			a.finishGroupAction(w, r, id, raw, user)
			return
		}
	}

	var lightIDs []string
	if id == "0" {
		for lid := range a.store.Lights() {
			lightIDs = append(lightIDs, lid)
		}
	} else if rec, ok := a.store.GetGroup(id); ok {
		lightIDs = rec.Lights
	}

	for _, lid := range lightIDs {
		a.applyLightAction(r.Context(), lid, raw)
	}

	a.finishGroupAction(w, r, id, raw, user)
}

func (a *API) finishGroupAction(w http.ResponseWriter, r *http.Request, id string, raw map[string]any, user configstore.User) {
	if rec, ok := a.store.GetGroup(id); ok && rec.Stream != nil {
		a.ent.Stop(r.Context())
	}

	order := make([]string, 0, len(raw))
	for k := range raw {
		order = append(order, k)
	}
	sort.Strings(order)
	writeJSON(w, hueSuccessFields(stripUserPrefix(r.URL.Path, user.Username), raw, order))
}

func (a *API) applyLightAction(ctx context.Context, lightID string, raw map[string]any) {
	dev, ok := a.cache.ByLightID(lightID)
	if !ok {
		return
	}
	rec, _ := a.store.GetLight(lightID)
	cmd := command.New(dev.Kind(), rec.ThrottleMs, boolValue(rec.State.PowerState))
	applyRawFields(cmd, rec, raw)
	_, _ = dev.Execute(ctx, cmd.State())
}

func (a *API) applyScene(ctx context.Context, sceneID string) {
	scene, ok := a.store.OpaqueGet(configstore.CollectionScenes, sceneID)
	if !ok {
		return
	}
	lightStates, _ := scene["lightstates"].(map[string]any)
	for lightID, stateAny := range lightStates {
		state, ok := stateAny.(map[string]any)
		if !ok {
			continue
		}
		// Scene application ignores a per-light transitiontime: every
		// light gets the default transition policy.
		fields := make(map[string]any, len(state))
		for k, v := range state {
			if k != "transitiontime" {
				fields[k] = v
			}
		}
		a.applyLightAction(ctx, lightID, fields)
	}
}

// applyRawFields mirrors handleLightState's field translation for the
// untyped body groups/scenes hand it, reading each field straight from
// the decoded map.
func applyRawFields(cmd *command.Command, rec configstore.LightRecord, raw map[string]any) {
	if v, ok := raw["on"].(bool); ok {
		cmd.SetPowerState(v)
	}
	if v, ok := raw["bri"].(float64); ok {
		cmd.SetBrightness(int(v))
	}
	if v, ok := raw["ct"].(float64); ok {
		cmd.SetColorTemperature(int(v))
	}
	hue, hasHue := raw["hue"].(float64)
	sat, hasSat := raw["sat"].(float64)
	switch {
	case hasHue && hasSat:
		cmd.SetHueSat(int(hue), int(sat))
	case hasHue:
		cmd.SetHueSat(int(hue), int(uint8Value(rec.State.Sat, 0)))
	case hasSat:
		cmd.SetHueSat(int(uint16Value(rec.State.Hue, 0)), int(sat))
	}
	if v, ok := raw["xy"].([]any); ok && len(v) == 2 {
		x, _ := v[0].(float64)
		y, _ := v[1].(float64)
		cmd.SetXY(x, y)
	}
	if v, ok := raw["effect"].(string); ok {
		cmd.SetEffect(v)
	}
	if v, ok := raw["transitiontime"].(float64); ok {
		cmd.SetTransitionMs(int(v)*100, true)
	}
	if v, ok := raw["alert"].(string); ok {
		cmd.SetFlash(v, rec.State)
	}
}
