package apiv1

import (
	"time"

	"github.com/dokzlo13/huebridged/internal/command"
	"github.com/dokzlo13/huebridged/internal/configstore"
	"github.com/dokzlo13/huebridged/internal/device"
)

// lightTypeFor names the Hue device archetype string for a capability
// tier, matching the zigbee device-id taxonomy real bridges advertise
// (§4.7: "implementers project §3 entities onto the standard Hue v1
// surface").
func lightTypeFor(kind command.Kind) string {
	switch kind {
	case command.KindOnOff:
		return "On/off light"
	case command.KindBrightness:
		return "Dimmable light"
	case command.KindCT:
		return "Color temperature light"
	case command.KindRGB:
		return "Color light"
	case command.KindRGBWW:
		return "Extended color light"
	default:
		return "On/off light"
	}
}

// lightToHue projects a Device and its current persisted state into the
// JSON shape a Hue v1 client expects at GET .../lights/{id}.
func lightToHue(dev *device.Device, rec configstore.LightRecord) map[string]any {
	state := map[string]any{
		"on":        boolValue(rec.State.PowerState),
		"reachable": boolValue(rec.State.Reachable, true),
		"mode":      "homeautomation",
	}

	kind := dev.Kind()
	if kind.SupportsBrightness() {
		state["bri"] = int(uint8Value(rec.State.Brightness, command.BriMax))
		if rec.State.FlashState != "" {
			state["alert"] = rec.State.FlashState
		} else {
			state["alert"] = "none"
		}
	}
	if kind.SupportsColorTemp() {
		state["ct"] = int(uint16Value(rec.State.ColorTemp, command.CTMin))
	}
	if kind.SupportsColor() {
		state["effect"] = nonEmpty(rec.State.Effect, "none")
		if rec.State.XYColor != nil {
			state["xy"] = []float64{rec.State.XYColor[0], rec.State.XYColor[1]}
		} else {
			state["xy"] = []float64{0, 0}
		}
		state["hue"] = int(uint16Value(rec.State.Hue, 0))
		state["sat"] = int(uint8Value(rec.State.Sat, 0))
	}
	if kind == command.KindRGBWW {
		state["colormode"] = nonEmpty(rec.State.ColorMode, "xy")
	}

	result := map[string]any{
		"state": state,
		"type":  lightTypeFor(kind),
		"name":  nonEmpty(rec.Name, "Light "+rec.LightID),
		"uniqueid": rec.UniqueID,
		"swupdate": map[string]any{
			"state":       "noupdates",
			"lastinstall": time.Now().UTC().Format("2006-01-02T15:04:05"),
		},
		"manufacturername": "Signify Netherlands B.V.",
		"modelid":          "LCT015",
		"productname":      "Philips Hue",
		"swversion":        "1.88.1",
		"config": map[string]any{
			"archetype": rec.Config.Archetype,
			"direction": rec.Config.Direction,
			"function":  rec.Config.Function,
			"startup":   rec.Config.Startup,
		},
	}
	if kind == command.KindCT || kind == command.KindRGBWW {
		result["capabilities"] = map[string]any{
			"control": map[string]any{
				"ct": map[string]any{"min": command.CTMin, "max": command.CTMax},
			},
		}
	}
	return result
}

func boolValue(v *bool, fallback ...bool) bool {
	if v != nil {
		return *v
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return false
}

func uint8Value(v *uint8, fallback uint8) uint8 {
	if v != nil {
		return *v
	}
	return fallback
}

func uint16Value(v *uint16, fallback uint16) uint16 {
	if v != nil {
		return *v
	}
	return fallback
}

func nonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
