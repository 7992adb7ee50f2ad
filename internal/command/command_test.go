package command

import (
	"testing"

	"github.com/dokzlo13/huebridged/internal/configstore"
)

func TestHueRoundTripWithinOne(t *testing.T) {
	for _, hue := range []int{0, 1, 100, 12345, 32768, 65000, 65535} {
		backend := HueToBackend(hue)
		back := BackendHueToHue(backend)
		forward := HueToBackend(back)
		diff := forward - backend
		if diff < -1 || diff > 1 {
			t.Fatalf("hue %d: round trip drifted by %d (backend=%d back=%d forward=%d)", hue, diff, backend, back, forward)
		}
	}
}

func TestSatRoundTripWithinOne(t *testing.T) {
	for _, sat := range []int{0, 1, 50, 127, 200, 254} {
		backend := SatToBackend(sat)
		back := BackendSatToSat(backend)
		forward := SatToBackend(back)
		diff := forward - backend
		if diff < -1 || diff > 1 {
			t.Fatalf("sat %d: round trip drifted by %d (backend=%d back=%d forward=%d)", sat, diff, backend, back, forward)
		}
	}
}

func TestClampBrightnessCoercesZeroToOne(t *testing.T) {
	if got := ClampBrightness(0); got != 1 {
		t.Fatalf("expected 0 to coerce to 1, got %d", got)
	}
	if got := ClampBrightness(-5); got != 1 {
		t.Fatalf("expected negative to coerce to 1, got %d", got)
	}
	if got := ClampBrightness(300); got != 255 {
		t.Fatalf("expected overflow to clamp to 255, got %d", got)
	}
	if got := ClampBrightness(128); got != 128 {
		t.Fatalf("expected in-range value to pass through, got %d", got)
	}
}

func TestClampMiredsRange(t *testing.T) {
	if got := ClampMireds(10); got != CTMin {
		t.Fatalf("expected below-range to clamp to %d, got %d", CTMin, got)
	}
	if got := ClampMireds(9000); got != CTMax {
		t.Fatalf("expected above-range to clamp to %d, got %d", CTMax, got)
	}
	if got := ClampMireds(300); got != 300 {
		t.Fatalf("expected in-range value to pass through, got %d", got)
	}
}

func TestCapabilityTieredSettersAreNoOpsBelowTier(t *testing.T) {
	c := New(KindOnOff, 0, false)
	c.SetBrightness(200)
	c.SetColorTemperature(300)
	c.SetHueSat(10000, 200)
	c.SetXY(0.3, 0.3)
	c.SetRGB(255, 0, 0)
	state := c.State()
	if state.Brightness != nil || state.ColorTemp != nil || state.Hue != nil || state.XYColor != nil || state.RGBColor != nil {
		t.Fatalf("expected all color/brightness setters to no-op on an OnOff device, got %+v", state)
	}
}

func TestBrightnessOnlyDeviceIgnoresColor(t *testing.T) {
	c := New(KindBrightness, 0, true)
	c.SetBrightness(128)
	c.SetColorTemperature(300)
	state := c.State()
	if state.Brightness == nil || *state.Brightness != 128 {
		t.Fatalf("expected brightness to apply, got %+v", state.Brightness)
	}
	if state.ColorTemp != nil {
		t.Fatalf("expected color_temp to be ignored on a Brightness-only device, got %v", *state.ColorTemp)
	}
}

func TestSetHueSatSetsColorMode(t *testing.T) {
	c := New(KindRGB, 0, true)
	c.SetHueSat(30000, 200)
	state := c.State()
	if state.ColorMode != "hs" {
		t.Fatalf("expected color_mode 'hs', got %q", state.ColorMode)
	}
	if state.Hue == nil || *state.Hue != 30000 {
		t.Fatalf("expected hue 30000 preserved in Hue-space, got %v", state.Hue)
	}
}

func TestSetTransitionMsRespectsThrottleFloor(t *testing.T) {
	c := New(KindOnOff, 1000, false)
	c.SetTransitionMs(200, true)
	state := c.State()
	if state.TransitionSeconds != 1.0 {
		t.Fatalf("expected transition floored to throttle_ms (1000ms=1.0s), got %v", state.TransitionSeconds)
	}

	c2 := New(KindOnOff, 100, false)
	c2.SetTransitionMs(2000, true)
	state2 := c2.State()
	if state2.TransitionSeconds != 2.0 {
		t.Fatalf("expected transition to pass through when above throttle floor, got %v", state2.TransitionSeconds)
	}
}

func TestNewSeedsDefaultTransition(t *testing.T) {
	c := New(KindOnOff, 0, true)
	state := c.State()
	if state.TransitionSeconds != 0.4 {
		t.Fatalf("expected default transition of 400ms, got %v", state.TransitionSeconds)
	}
	if state.PowerState == nil || !*state.PowerState {
		t.Fatalf("expected seeded power_state true, got %v", state.PowerState)
	}
}

func TestToBackendPayloadSelectsOnlyActiveColorAttribute(t *testing.T) {
	hue := uint16(30000)
	sat := uint8(200)
	state := configstore.EntityState{
		ColorMode: "hs",
		Hue:       &hue,
		Sat:       &sat,
	}
	payload := ToBackendPayload(state)
	if _, ok := payload["hs_color"]; !ok {
		t.Fatalf("expected hs_color in payload, got %+v", payload)
	}
	if _, ok := payload["xy_color"]; ok {
		t.Fatalf("expected xy_color to be absent, got %+v", payload)
	}
	if _, ok := payload["rgb_color"]; ok {
		t.Fatalf("expected rgb_color to be absent, got %+v", payload)
	}
}

func TestToBackendPayloadOmitsTransitionOnFlash(t *testing.T) {
	state := configstore.EntityState{
		FlashState:        "short",
		TransitionSeconds: 0.4,
	}
	payload := ToBackendPayload(state)
	if _, ok := payload["transition"]; ok {
		t.Fatalf("expected transition to be omitted when flash_state is set, got %+v", payload)
	}
	if payload["flash"] != "short" {
		t.Fatalf("expected flash='short', got %v", payload["flash"])
	}
}
