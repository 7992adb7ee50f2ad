// Package command builds outgoing state changes (§4.4): a fluent,
// capability-tiered builder plus the unit conversions and to-backend
// serialization rules at the Hue protocol edge.
package command

import "strings"

// Kind is the capability tier of a device, selected from the backend
// entity's supported_color_modes (§4.3).
type Kind int

const (
	KindOnOff Kind = iota
	KindBrightness
	KindCT
	KindRGB
	KindRGBWW
)

func (k Kind) String() string {
	switch k {
	case KindOnOff:
		return "OnOff"
	case KindBrightness:
		return "Brightness"
	case KindCT:
		return "CT"
	case KindRGB:
		return "RGB"
	case KindRGBWW:
		return "RGBWW"
	default:
		return "Unknown"
	}
}

// SupportsBrightness reports whether this tier accepts set_brightness.
func (k Kind) SupportsBrightness() bool { return k >= KindBrightness }

// SupportsColorTemp reports whether this tier accepts set_color_temperature.
func (k Kind) SupportsColorTemp() bool { return k == KindCT || k == KindRGBWW }

// SupportsColor reports whether this tier accepts hue/sat, xy, or rgb setters.
func (k Kind) SupportsColor() bool { return k == KindRGB || k == KindRGBWW }

var colorModeSet = map[string]bool{"hs": true, "xy": true, "rgb": true, "rgbw": true, "rgbww": true}
var ctModeSet = map[string]bool{"color_temp": true, "rgbw": true, "rgbww": true, "white": true}

// DetermineKind classifies a device by its backend-reported
// supported_color_modes, per the exact branching in §4.3.
func DetermineKind(supportedColorModes []string) Kind {
	hasColor, hasCT, hasBrightness := false, false, false
	for _, m := range supportedColorModes {
		m = strings.ToLower(m)
		if colorModeSet[m] {
			hasColor = true
		}
		if ctModeSet[m] {
			hasCT = true
		}
		if m == "brightness" {
			hasBrightness = true
		}
	}
	switch {
	case hasColor && hasCT:
		return KindRGBWW
	case hasColor:
		return KindRGB
	case containsCTOnly(supportedColorModes):
		return KindCT
	case hasBrightness:
		return KindBrightness
	default:
		return KindOnOff
	}
}

func containsCTOnly(modes []string) bool {
	for _, m := range modes {
		if strings.ToLower(m) == "color_temp" {
			return true
		}
	}
	return false
}
