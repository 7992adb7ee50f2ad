package apiv2

import (
	"github.com/dokzlo13/huebridged/internal/configstore"
)

// resource is the common CLIP v2 envelope: every resource carries an id,
// an id_v1 back-reference to its v1-API counterpart, and a type tag.
type resource map[string]any

func newResource(id, idV1, rtype string) resource {
	r := resource{"id": id, "type": rtype}
	if idV1 != "" {
		r["id_v1"] = idV1
	}
	return r
}

// bridgeResources builds the two singleton resources every CLIP graph
// carries regardless of device inventory: `bridge` and `bridge_home`.
func (a *API) bridgeResources() []resource {
	bridgeID := resourceID(nsBridge, a.bridge.BridgeID)
	homeID := resourceID(nsBridgeHome, a.bridge.BridgeID)

	bridge := newResource(bridgeID, "/config", "bridge")
	bridge["owner"] = map[string]any{"rid": a.bridgeDeviceID(), "rtype": "device"}
	bridge["bridge_id"] = a.bridge.BridgeID
	bridge["time_zone"] = map[string]any{"time_zone": a.store.BridgeConfig().Timezone}

	home := newResource(homeID, "/groups/0", "bridge_home")
	home["children"] = a.roomChildRefs()
	home["services"] = []map[string]any{{"rid": a.groupedLightID("0"), "rtype": "grouped_light"}}

	return []resource{bridge, home}
}

func (a *API) bridgeDeviceID() string {
	return resourceID(nsDevice, a.bridge.BridgeID)
}

// bridgeDevice projects the bridge itself as a `device` resource — the
// owner every other device/service resource points back to.
func (a *API) bridgeDevice() resource {
	r := newResource(a.bridgeDeviceID(), "/config", "device")
	cfg := a.store.BridgeConfig()
	r["product_data"] = map[string]any{
		"model_id":          "BSB002",
		"manufacturer_name": "Signify Netherlands B.V.",
		"product_name":      "Hue Bridge",
		"product_archetype": "bridge_v2",
		"certified":         true,
		"software_version":  "1960130070",
	}
	r["metadata"] = map[string]any{"name": cfg.Name, "archetype": "bridge_v2"}
	r["services"] = []map[string]any{
		{"rid": resourceID(nsZigbeeConnectivity, a.bridge.BridgeID), "rtype": "zigbee_connectivity"},
		{"rid": resourceID(nsZigbeeDeviceDiscovery, a.bridge.BridgeID), "rtype": "zigbee_device_discovery"},
	}
	return r
}

// lightResources projects every cached device into paired `device` and
// `light` resources, matching the v1 capability tier (§4.8).
func (a *API) lightResources() []resource {
	var out []resource
	for _, dev := range a.cache.All() {
		rec, ok := a.store.GetLight(dev.LightID())
		if !ok || !rec.Enabled {
			continue
		}
		deviceID := resourceID(nsDevice, dev.EntityID())
		lightID := resourceID(nsLight, dev.EntityID())

		d := newResource(deviceID, "/lights/"+rec.LightID, "device")
		d["product_data"] = map[string]any{
			"model_id":          "LCT015",
			"manufacturer_name": "Signify Netherlands B.V.",
			"product_name":      "Hue color lamp",
			"product_archetype": rec.Config.Archetype,
			"certified":         true,
			"software_version":  "1.93.4",
		}
		d["metadata"] = map[string]any{"name": rec.Name, "archetype": rec.Config.Archetype}
		d["services"] = []map[string]any{{"rid": lightID, "rtype": "light"}}

		l := newResource(lightID, "/lights/"+rec.LightID, "light")
		l["owner"] = map[string]any{"rid": deviceID, "rtype": "device"}
		l["metadata"] = map[string]any{"name": rec.Name, "archetype": rec.Config.Archetype}
		l["on"] = map[string]any{"on": boolValue(rec.State.PowerState)}
		if dev.Kind().SupportsBrightness() {
			l["dimming"] = map[string]any{"brightness": brightnessPercent(rec.State.Brightness)}
		}
		if dev.Kind().SupportsColorTemp() {
			l["color_temperature"] = map[string]any{
				"mirek":       uint16Value(rec.State.ColorTemp, 0),
				"mirek_valid": rec.State.ColorTemp != nil,
			}
		}
		if dev.Kind().SupportsColor() {
			x, y := 0.0, 0.0
			if rec.State.XYColor != nil {
				x, y = rec.State.XYColor[0], rec.State.XYColor[1]
			}
			l["color"] = map[string]any{"xy": map[string]any{"x": x, "y": y}}
		}

		out = append(out, d, l)
	}
	return out
}

// roomAndGroupResources projects every persisted group into a
// `grouped_light` resource, plus a `room` resource when the group
// represents a physical area (§4.8).
func (a *API) roomAndGroupResources() []resource {
	var out []resource
	for id, rec := range a.store.Groups() {
		if !rec.Enabled {
			continue
		}
		glID := a.groupedLightID(id)
		gl := newResource(glID, "/groups/"+id, "grouped_light")
		gl["on"] = map[string]any{"on": a.anyMemberOn(rec)}
		out = append(out, gl)

		if rec.Type == "Room" {
			stableKey := rec.GroupID
			if rec.AreaID != nil {
				stableKey = *rec.AreaID
			}
			room := newResource(resourceID(nsRoom, stableKey), "/groups/"+id, "room")
			room["metadata"] = map[string]any{"name": rec.Name, "archetype": strLower(rec.Class)}
			room["children"] = a.lightDeviceRefs(rec.Lights)
			room["services"] = []map[string]any{{"rid": glID, "rtype": "grouped_light"}}
			out = append(out, room)
		}
	}
	return out
}

func (a *API) groupedLightID(groupID string) string {
	return resourceID(nsGroupedLight, a.bridge.BridgeID+"/"+groupID)
}

func (a *API) roomChildRefs() []map[string]any {
	var out []map[string]any
	for _, rec := range a.store.Groups() {
		if rec.Enabled && rec.Type == "Room" {
			stableKey := rec.GroupID
			if rec.AreaID != nil {
				stableKey = *rec.AreaID
			}
			out = append(out, map[string]any{"rid": resourceID(nsRoom, stableKey), "rtype": "room"})
		}
	}
	return out
}

func (a *API) lightDeviceRefs(lightIDs []string) []map[string]any {
	var out []map[string]any
	for _, lid := range lightIDs {
		dev, ok := a.cache.ByLightID(lid)
		if !ok {
			continue
		}
		out = append(out, map[string]any{"rid": resourceID(nsDevice, dev.EntityID()), "rtype": "device"})
	}
	return out
}

func (a *API) anyMemberOn(rec configstore.GroupRecord) bool {
	for _, lid := range rec.Lights {
		if r, ok := a.store.GetLight(lid); ok && boolValue(r.State.PowerState) {
			return true
		}
	}
	return false
}

// singletonResources projects the remaining fixed per-bridge resources
// (§4.8) that carry no meaningful per-deployment state yet but must
// appear in the graph for clients that enumerate by type.
func (a *API) singletonResources() []resource {
	zc := newResource(resourceID(nsZigbeeConnectivity, a.bridge.BridgeID), "", "zigbee_connectivity")
	zc["owner"] = map[string]any{"rid": a.bridgeDeviceID(), "rtype": "device"}
	zc["status"] = "connected"
	zc["mac_address"] = a.bridge.MAC

	zdd := newResource(resourceID(nsZigbeeDeviceDiscovery, a.bridge.BridgeID), "", "zigbee_device_discovery")
	zdd["owner"] = map[string]any{"rid": a.bridgeDeviceID(), "rtype": "device"}
	zdd["status"] = "ready"

	geo := newResource(resourceID(nsGeolocation, a.bridge.BridgeID), "", "geolocation")
	geo["is_configured"] = false

	homekit := newResource(resourceID(nsHomekit, a.bridge.BridgeID), "", "homekit")
	homekit["status"] = "unpaired"

	matter := newResource(resourceID(nsMatter, a.bridge.BridgeID), "", "matter")
	matter["max_fabrics"] = 0
	matter["has_qr_code"] = false

	var ent []resource
	if groupID, active := a.ent.ActiveGroup(); active {
		e := newResource(resourceID(nsEntertainment, groupID), "/groups/"+groupID, "entertainment")
		e["renderer"] = true
		e["renderer_reference"] = map[string]any{"rid": a.groupedLightID(groupID), "rtype": "grouped_light"}
		ent = append(ent, e)
	}

	out := []resource{zc, zdd, geo, homekit, matter}
	return append(out, ent...)
}

// allResources assembles the complete resource graph (§4.8).
func (a *API) allResources() []resource {
	var out []resource
	out = append(out, a.bridgeResources()...)
	out = append(out, a.bridgeDevice())
	out = append(out, a.lightResources()...)
	out = append(out, a.roomAndGroupResources()...)
	out = append(out, a.singletonResources()...)
	return out
}

func brightnessPercent(bri *uint8) float64 {
	if bri == nil {
		return 0
	}
	return round2(float64(*bri) * 10000 / 255 / 100)
}

// percentToBackendBrightness inverts brightnessPercent for incoming PUT
// requests (§4.8: "rescaled to 2..255"): results below 2 are raised to
// 2, and the upper bound of 255 is enforced by
// command.Command.SetBrightness, same as every other brightness path.
func percentToBackendBrightness(pct float64) int {
	v := int(pct/100*255 + 0.5)
	if v < 2 {
		v = 2
	}
	return v
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func boolValue(v *bool) bool {
	if v == nil {
		return false
	}
	return *v
}

func uint16Value(v *uint16, def uint16) uint16 {
	if v == nil {
		return def
	}
	return *v
}

func strLower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
