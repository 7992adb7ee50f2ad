package command

import "math"

// Color-space boundaries (§3, §4.4).
const (
	HueMax = 65536 // hue wraps modulo 0..65535
	SatMax = 255   // Hue sat wraps modulo 0..254 (mod 255 keeps 254 as the ceiling)
	BriMin = 1
	BriMax = 255
	CTMin  = 153
	CTMax  = 500
)

// HueToBackend converts an incoming Hue-space hue (0..65535) to
// backend-space degrees (0..360), integer-dividing after scale. Out of
// range input wraps modulo 65536 first.
func HueToBackend(hueHue int) int {
	hueHue = wrap(hueHue, HueMax)
	return (hueHue * 360) / 65535
}

// BackendHueToHue converts backend-space degrees back to Hue-space,
// rounding to the nearest integer so the round trip is within ±1 of the
// original backend value (§8 property 7). The full 0..360 range
// (including 360, which HueToBackend produces for 65535) maps directly;
// values outside it wrap modulo 360.
func BackendHueToHue(backendHue int) int {
	if backendHue < 0 || backendHue > 360 {
		backendHue = ((backendHue % 360) + 360) % 360
	}
	return int(math.Round(float64(backendHue) / 360 * 65535))
}

// SatToBackend converts Hue-space saturation (0..254) to backend-space
// percent (0..100).
func SatToBackend(hueSat int) int {
	hueSat = wrap(hueSat, SatMax)
	return (hueSat * 100) / 254
}

// BackendSatToSat converts backend-space percent saturation back to
// Hue-space (0..254).
func BackendSatToSat(backendSat int) int {
	if backendSat < 0 {
		backendSat = 0
	}
	if backendSat > 100 {
		backendSat = 100
	}
	return int(math.Round(float64(backendSat) / 100 * 254))
}

// ClampBrightness enforces the 1..255 range, coercing 0 to 1 so "on with
// minimum brightness" is preserved (§4.4, §8 property 8).
func ClampBrightness(bri int) uint8 {
	if bri <= 0 {
		return BriMin
	}
	if bri > BriMax {
		return BriMax
	}
	return uint8(bri)
}

// ClampMireds passes color temperature through unchanged except for
// range clamping; mireds never unit-convert at the protocol edge.
func ClampMireds(mireds int) uint16 {
	if mireds < CTMin {
		return CTMin
	}
	if mireds > CTMax {
		return CTMax
	}
	return uint16(mireds)
}

func wrap(v, mod int) int {
	v %= mod
	if v < 0 {
		v += mod
	}
	return v
}
