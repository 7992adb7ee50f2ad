package command

import "github.com/dokzlo13/huebridged/internal/configstore"

// ToBackendPayload converts an EntityState into the flat attribute map
// the backend's turn_on/turn_off services expect, converting Hue-space
// color units to backend-space and including only the attribute named
// by color_mode (§3, §4.4: "the coalescing equality is blind to every
// color attribute except the one color_mode currently selects, and
// to-backend serialization follows the same rule").
func ToBackendPayload(state configstore.EntityState) map[string]any {
	payload := map[string]any{}

	if state.Brightness != nil {
		payload["brightness"] = int(*state.Brightness)
	}

	switch state.ColorMode {
	case "color_temp":
		if state.ColorTemp != nil {
			payload["color_temp"] = int(*state.ColorTemp)
		}
	case "hs":
		if state.Hue != nil && state.Sat != nil {
			payload["hs_color"] = []int{
				HueToBackend(int(*state.Hue)),
				SatToBackend(int(*state.Sat)),
			}
		}
	case "xy":
		if state.XYColor != nil {
			payload["xy_color"] = []float64{state.XYColor[0], state.XYColor[1]}
		}
	case "rgb", "rgbw", "rgbww":
		if state.RGBColor != nil {
			payload["rgb_color"] = []int{
				int(state.RGBColor[0]),
				int(state.RGBColor[1]),
				int(state.RGBColor[2]),
			}
		}
	}

	if state.Effect != "" {
		payload["effect"] = state.Effect
	}

	// flash_state omits transition: a flash is instantaneous, not a ramp.
	if state.FlashState != "" {
		payload["flash"] = state.FlashState
	} else {
		payload["transition"] = state.TransitionSeconds
	}

	return payload
}
