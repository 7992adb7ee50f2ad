// Package backend specifies and implements the boundary to the external
// home-automation system that actually owns the lights. Everything
// above this package (device, apiv1, apiv2, entertainment) depends only
// on the Adapter interface, never on Client concretely, so a different
// backend integration can be dropped in without touching core logic.
package backend

import "context"

// EntityState is a snapshot of one backend entity: its domain state
// string ("on"/"off"/"unavailable"/...) plus whatever attributes the
// backend chooses to report (brightness, color_temp, hs_color, xy_color,
// rgb_color, supported_color_modes, friendly_name, ...).
type EntityState struct {
	EntityID   string
	State      string
	Attributes map[string]any
}

// RegistryEntry is the common shape of entity/device/area registry rows.
type RegistryEntry struct {
	ID            string
	EntityID      string
	DeviceID      string
	AreaID        string
	Disabled      bool
	Manufacturer  string
	Model         string
	Name          string
	SWVersion     string
	Identifiers   []string
}

// EventFilter narrows which state-change events a callback receives.
// An empty EntityID matches every entity.
type EventFilter struct {
	EntityID string
}

// EventCallback is invoked with the new state whenever a subscribed
// entity changes.
type EventCallback func(EntityState)

// CancelFunc unregisters an event callback. Per §4.3, the device layer
// never actually calls it — callbacks live for the process lifetime —
// but the contract supports it.
type CancelFunc func()

// Adapter is the capability set §4.2 requires of a backend integration.
type Adapter interface {
	// Connect establishes the connection (REST session + event socket).
	// A failure here is fatal at startup (§7).
	Connect(ctx context.Context) error
	Close() error

	// GetEntityState returns the last known state for entityID,
	// synchronous and served from cache when available.
	GetEntityState(ctx context.Context, entityID string) (EntityState, bool)

	// CallService issues a fire-and-forget domain/service call.
	CallService(ctx context.Context, domain, service string, data map[string]any) error
	// TurnOn and TurnOff are the only operations the core issues on lights.
	TurnOn(ctx context.Context, entityID string, data map[string]any) error
	TurnOff(ctx context.Context, entityID string) error
	// SetState publishes a synthetic entity's state; used only by the
	// Entertainment module to report streaming-active.
	SetState(ctx context.Context, entityID, state string, attributes map[string]any) error

	// RegisterEventCallback subscribes cb to state_changed events
	// matching filter.
	RegisterEventCallback(filter EventFilter, cb EventCallback) CancelFunc

	// Registry views.
	EntityRegistry() map[string]RegistryEntry
	DeviceRegistry() map[string]RegistryEntry
	AreaRegistry() map[string]RegistryEntry

	// ItemsByDomain enumerates every known entity id with the given
	// domain prefix (e.g. "light").
	ItemsByDomain(domain string) []string
	// States returns a snapshot of every known entity state.
	States() map[string]EntityState
}
