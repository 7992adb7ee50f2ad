package command

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridged/internal/configstore"
)

// DefaultTransitionMs is the transition applied when a client doesn't
// specify one (§4.3).
const DefaultTransitionMs = 400

// Command is a fluent builder for an in-flight control state. Setter
// methods for properties the device's Kind doesn't support are
// documented no-ops (§7: "capability misses on builder methods are
// swallowed").
type Command struct {
	kind       Kind
	throttleMs int
	state      configstore.EntityState
}

// New seeds a control state the way _new_control_state does: carrying
// the device's current power state and the default transition, ready
// for setters to layer specific changes on top.
func New(kind Kind, throttleMs int, currentPower bool) *Command {
	transitionMs := DefaultTransitionMs
	if throttleMs > transitionMs {
		transitionMs = throttleMs
	}
	c := &Command{kind: kind, throttleMs: throttleMs}
	c.state.PowerState = boolPtr(currentPower)
	c.state.TransitionSeconds = float64(transitionMs) / 1000
	return c
}

// State returns the accumulated EntityState.
func (c *Command) State() configstore.EntityState { return c.state }

func (c *Command) SetPowerState(on bool) *Command {
	c.state.PowerState = boolPtr(on)
	return c
}

// SetTransitionMs sets the transition, flooring it to throttleMs when
// respectThrottle is set and the requested value is shorter (§4.4).
func (c *Command) SetTransitionMs(ms int, respectThrottle bool) *Command {
	if respectThrottle && ms < c.throttleMs {
		ms = c.throttleMs
	}
	c.state.TransitionSeconds = float64(ms) / 1000
	return c
}

func (c *Command) SetBrightness(bri int) *Command {
	if !c.kind.SupportsBrightness() {
		log.Debug().Str("kind", c.kind.String()).Msg("set_brightness ignored: unsupported on this device tier")
		return c
	}
	v := ClampBrightness(bri)
	c.state.Brightness = &v
	return c
}

func (c *Command) SetColorTemperature(mireds int) *Command {
	if !c.kind.SupportsColorTemp() {
		log.Debug().Str("kind", c.kind.String()).Msg("set_color_temperature ignored: unsupported on this device tier")
		return c
	}
	v := ClampMireds(mireds)
	c.state.ColorTemp = &v
	c.state.ColorMode = "color_temp"
	return c
}

// SetHueSat takes Hue-space values (0..65535, 0..254) and stores them
// verbatim; conversion to backend-space happens at serialization.
func (c *Command) SetHueSat(hue, sat int) *Command {
	if !c.kind.SupportsColor() {
		log.Debug().Str("kind", c.kind.String()).Msg("set_hue_sat ignored: unsupported on this device tier")
		return c
	}
	h := uint16(wrap(hue, HueMax))
	s := uint8(wrap(sat, SatMax))
	c.state.Hue = &h
	c.state.Sat = &s
	c.state.ColorMode = "hs"
	return c
}

func (c *Command) SetXY(x, y float64) *Command {
	if !c.kind.SupportsColor() {
		log.Debug().Str("kind", c.kind.String()).Msg("set_xy ignored: unsupported on this device tier")
		return c
	}
	xy := [2]float64{x, y}
	c.state.XYColor = &xy
	c.state.ColorMode = "xy"
	return c
}

func (c *Command) SetRGB(r, g, b uint8) *Command {
	if !c.kind.SupportsColor() {
		log.Debug().Str("kind", c.kind.String()).Msg("set_rgb ignored: unsupported on this device tier")
		return c
	}
	rgb := [3]uint8{r, g, b}
	c.state.RGBColor = &rgb
	c.state.ColorMode = "rgb"
	return c
}

func (c *Command) SetEffect(effect string) *Command {
	c.state.Effect = effect
	return c
}

// SetFlash sets the flash state and, for color-capable devices,
// re-asserts the current color anchor so the backend animates from a
// known state (§4.4).
func (c *Command) SetFlash(flash string, anchor configstore.EntityState) *Command {
	c.state.FlashState = flash
	if !c.kind.SupportsColor() {
		return c
	}
	switch anchor.ColorMode {
	case "hs":
		if anchor.Hue != nil && anchor.Sat != nil {
			c.state.Hue = anchor.Hue
			c.state.Sat = anchor.Sat
			c.state.ColorMode = "hs"
		}
	case "xy":
		if anchor.XYColor != nil {
			c.state.XYColor = anchor.XYColor
			c.state.ColorMode = "xy"
		}
	case "color_temp":
		if c.kind.SupportsColorTemp() && anchor.ColorTemp != nil {
			c.state.ColorTemp = anchor.ColorTemp
			c.state.ColorMode = "color_temp"
		}
	}
	return c
}

func boolPtr(b bool) *bool { return &b }
