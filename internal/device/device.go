// Package device is the reconciliation core (§4.3): it owns the
// tri-state merge between what a client asked for, what the backend
// last reported, and what's durably persisted, and gates every
// outgoing backend call behind a per-device throttle.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridged/internal/backend"
	"github.com/dokzlo13/huebridged/internal/command"
	"github.com/dokzlo13/huebridged/internal/configstore"
)

// bigBrightnessDelta is the override threshold (§3, §8 property 6): a
// brightness change larger than this forces acceptance regardless of
// coalescing-equality or cooldown.
const bigBrightnessDelta = 64

// entertainmentRefreshGateMs is the minimum spacing between
// backend-driven state refreshes while an Entertainment session owns
// this device (§4.3, §4.9).
const entertainmentRefreshGateMs = 1000

// Device is the in-memory reconciliation handle for one backend light
// entity. It is safe for concurrent use.
type Device struct {
	store   *configstore.Store
	adapter backend.Adapter

	lightID    string
	entityID   string
	kind       command.Kind
	throttleMs int

	mu                  sync.Mutex
	observed            configstore.EntityState
	lastAcceptMs        int64
	entertainmentActive bool
	lastRefreshMs       int64

	nowMs func() int64
}

// newDevice wires a Device for an already-allocated light record.
func newDevice(store *configstore.Store, adapter backend.Adapter, rec configstore.LightRecord, kind command.Kind) *Device {
	return &Device{
		store:      store,
		adapter:    adapter,
		lightID:    rec.LightID,
		entityID:   rec.EntityID,
		kind:       kind,
		throttleMs: rec.ThrottleMs,
		nowMs:      nowMillis,
	}
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// LightID, EntityID and Kind are read-only accessors.
func (d *Device) LightID() string    { return d.lightID }
func (d *Device) EntityID() string   { return d.entityID }
func (d *Device) Kind() command.Kind { return d.kind }

// persisted returns the currently durable state for this device.
func (d *Device) persisted() configstore.EntityState {
	rec, ok := d.store.GetLight(d.lightID)
	if !ok {
		return configstore.EntityState{}
	}
	return rec.State
}

// Execute applies an in-flight command against the throttle gate
// (§4.3): a rejected command makes no backend call and leaves persisted
// state untouched; an accepted command calls the backend and commits
// the merged state.
func (d *Device) Execute(ctx context.Context, cmd configstore.EntityState) (accepted bool, err error) {
	d.mu.Lock()
	observed := d.observed
	lastAccept := d.lastAcceptMs
	d.mu.Unlock()

	persisted := d.persisted()
	candidate := configstore.Merge(cmd, observed, persisted)

	delta := brightnessDelta(persisted.Brightness, candidate.Brightness)
	override := delta > bigBrightnessDelta

	if d.throttleMs > 0 && !override {
		if persisted.CoalesceEqual(candidate) {
			return false, nil
		}
		if now := d.nowMs(); now-lastAccept < int64(d.throttleMs) {
			return false, nil
		}
	}

	if err := d.dispatch(ctx, candidate); err != nil {
		return false, err
	}

	d.mu.Lock()
	d.lastAcceptMs = d.nowMs()
	d.mu.Unlock()

	d.commit(candidate)
	return true, nil
}

func (d *Device) dispatch(ctx context.Context, state configstore.EntityState) error {
	payload := command.ToBackendPayload(state)
	if state.PowerState != nil && !*state.PowerState {
		if err := d.adapter.TurnOff(ctx, d.entityID); err != nil {
			return fmt.Errorf("turn off %s: %w", d.entityID, err)
		}
		return nil
	}
	if err := d.adapter.TurnOn(ctx, d.entityID, payload); err != nil {
		return fmt.Errorf("turn on %s: %w", d.entityID, err)
	}
	return nil
}

// Observe folds a backend-reported state into this device's observed
// view and recomposes persisted state from it, with no command layered
// on top (§4.3: "backend-driven updates recompute persisted state the
// same way a command does, just with an empty command").
func (d *Device) Observe(state backend.EntityState) {
	if d.entertainmentGated() {
		return
	}
	translated := translateBackendState(state)

	d.mu.Lock()
	d.observed = translated
	d.mu.Unlock()

	persisted := d.persisted()
	candidate := configstore.Merge(configstore.EntityState{}, translated, persisted)
	d.commit(candidate)
}

// entertainmentGated reports whether a backend-driven refresh should be
// dropped right now because an Entertainment session owns this device
// and the minimum refresh spacing hasn't elapsed.
func (d *Device) entertainmentGated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.entertainmentActive {
		return false
	}
	now := d.nowMs()
	if now-d.lastRefreshMs < entertainmentRefreshGateMs {
		return true
	}
	d.lastRefreshMs = now
	return false
}

// SetEntertainmentActive toggles the streaming-session ownership flag.
// Going active starts the refresh-spacing window, so an Observe right
// after session start is gated; going inactive forces an immediate
// refresh on the next Observe.
func (d *Device) SetEntertainmentActive(active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entertainmentActive = active
	if active {
		d.lastRefreshMs = d.nowMs()
	} else {
		d.lastRefreshMs = 0
	}
}

func (d *Device) commit(state configstore.EntityState) {
	rec, ok := d.store.GetLight(d.lightID)
	if !ok {
		log.Warn().Str("light_id", d.lightID).Msg("commit against unknown light id, dropping")
		return
	}
	rec.State = state
	d.store.SetLight(d.lightID, rec)
}

func translateBackendState(state backend.EntityState) configstore.EntityState {
	out := configstore.EntityState{}
	on := state.State == "on"
	out.PowerState = &on
	reachable := state.State != "unavailable"
	out.Reachable = &reachable

	if v, ok := state.Attributes["brightness"]; ok {
		b := command.ClampBrightness(toInt(v))
		out.Brightness = &b
	}
	if v, ok := state.Attributes["color_temp"]; ok {
		ct := command.ClampMireds(toInt(v))
		out.ColorTemp = &ct
		out.ColorMode = "color_temp"
	}
	if v, ok := state.Attributes["hs_color"]; ok {
		if pair, ok := toIntPair(v); ok {
			h := uint16(command.BackendHueToHue(pair[0]))
			s := uint8(command.BackendSatToSat(pair[1]))
			out.Hue = &h
			out.Sat = &s
			out.ColorMode = "hs"
		}
	}
	if v, ok := state.Attributes["xy_color"]; ok {
		if pair, ok := toFloatPair(v); ok {
			xy := [2]float64{pair[0], pair[1]}
			out.XYColor = &xy
			out.ColorMode = "xy"
		}
	}
	if v, ok := state.Attributes["rgb_color"]; ok {
		if triple, ok := toUint8Triple(v); ok {
			out.RGBColor = &triple
			out.ColorMode = "rgb"
		}
	}
	if v, ok := state.Attributes["effect"].(string); ok {
		out.Effect = v
	}
	return out
}

func brightnessDelta(a, b *uint8) int {
	if a == nil || b == nil {
		return 0
	}
	d := int(*a) - int(*b)
	if d < 0 {
		d = -d
	}
	return d
}
