package configstore

// document is the on-disk shape of the whole config file: UTF-8 JSON,
// 4-space indent, sorted keys (see writeDocumentAtomic).
type document struct {
	BridgeConfig  BridgeConfig              `json:"bridge_config"`
	Users         map[string]*User          `json:"users"`
	Lights        map[string]*LightRecord   `json:"lights"`
	Groups        map[string]*GroupRecord   `json:"groups"`
	Scenes        map[string]map[string]any `json:"scenes"`
	Rules         map[string]map[string]any `json:"rules"`
	ResourceLinks map[string]map[string]any `json:"resourcelinks"`
	Schedules     map[string]map[string]any `json:"schedules"`
}

func newDocument() *document {
	return &document{
		BridgeConfig:  BridgeConfig{Name: "Go Emulated Hue", Timezone: "UTC", ZigbeeChannel: 25},
		Users:         map[string]*User{},
		Lights:        map[string]*LightRecord{},
		Groups:        map[string]*GroupRecord{},
		Scenes:        map[string]map[string]any{},
		Rules:         map[string]map[string]any{},
		ResourceLinks: map[string]map[string]any{},
		Schedules:     map[string]map[string]any{},
	}
}

// BridgeConfig holds the small set of user-editable bridge-wide settings.
// linkbutton is deliberately absent: it is never persisted (§3 invariant).
type BridgeConfig struct {
	Name          string `json:"name"`
	Timezone      string `json:"timezone"`
	ZigbeeChannel int    `json:"zigbeechannel"`
}

// User is an application key minted while link mode is enabled.
type User struct {
	Username    string `json:"username"`
	ClientKey   string `json:"clientkey"`
	Name        string `json:"name"` // devicetype, e.g. "iConnectHue#iPad"
	CreateDate  string `json:"create_date"`
	LastUseDate string `json:"last_use_date"`
}

// LightConfig is the user-facing per-light metadata block (archetype,
// direction, startup behavior). Opaque beyond what the API surface reads.
type LightConfig struct {
	Archetype string         `json:"archetype"`
	Function  string         `json:"function"`
	Direction string         `json:"direction"`
	Startup   map[string]any `json:"startup"`
}

func defaultLightConfig() LightConfig {
	return LightConfig{
		Archetype: "sultanbulb",
		Function:  "mixed",
		Direction: "omnidirectional",
		Startup:   map[string]any{"configured": true, "mode": "safety"},
	}
}

// EntityState is the value type the device layer and config store share
// to describe a light's on/off/color/brightness condition. Optional
// fields are pointers so "unset" is distinguishable from "zero".
type EntityState struct {
	PowerState        *bool       `json:"power_state,omitempty"`
	Reachable         *bool       `json:"reachable,omitempty"`
	Brightness        *uint8      `json:"brightness,omitempty"`
	ColorTemp         *uint16     `json:"color_temp,omitempty"`
	Hue               *uint16     `json:"hue,omitempty"`
	Sat               *uint8      `json:"sat,omitempty"`
	XYColor           *[2]float64 `json:"xy_color,omitempty"`
	RGBColor          *[3]uint8   `json:"rgb_color,omitempty"`
	ColorMode         string      `json:"color_mode,omitempty"`
	Effect            string      `json:"effect,omitempty"`
	FlashState        string      `json:"flash_state,omitempty"`
	TransitionSeconds float64     `json:"transition_seconds,omitempty"`
}

// CoalesceEqual implements the §3 coalescing equality: power, brightness,
// and the single color attribute named by color_mode must match. All
// other fields (including transition) are irrelevant to this comparison.
func (e EntityState) CoalesceEqual(o EntityState) bool {
	if !boolPtrEqual(e.PowerState, o.PowerState) {
		return false
	}
	if !u8PtrEqual(e.Brightness, o.Brightness) {
		return false
	}
	if e.ColorMode != o.ColorMode {
		return false
	}
	switch e.ColorMode {
	case "color_temp":
		return u16PtrEqual(e.ColorTemp, o.ColorTemp)
	case "hs":
		return u16PtrEqual(e.Hue, o.Hue) && u8PtrEqual(e.Sat, o.Sat)
	case "xy":
		return xyPtrEqual(e.XYColor, o.XYColor)
	case "rgb", "rgbw", "rgbww":
		return rgbPtrEqual(e.RGBColor, o.RGBColor)
	default:
		// brightness-only or onoff devices: no color attribute to compare.
		return true
	}
}

// Merge composes a new persisted state from a (possibly partial)
// in-flight command layered over the current observed and persisted
// values, per §3: "command wins, else observed, else prior persisted".
func Merge(command, observed, prior EntityState) EntityState {
	out := prior
	apply := func(src EntityState) {
		if src.PowerState != nil {
			out.PowerState = src.PowerState
		}
		if src.Reachable != nil {
			out.Reachable = src.Reachable
		}
		if src.Brightness != nil {
			out.Brightness = src.Brightness
		}
		if src.ColorTemp != nil {
			out.ColorTemp = src.ColorTemp
		}
		if src.Hue != nil {
			out.Hue = src.Hue
		}
		if src.Sat != nil {
			out.Sat = src.Sat
		}
		if src.XYColor != nil {
			out.XYColor = src.XYColor
		}
		if src.RGBColor != nil {
			out.RGBColor = src.RGBColor
		}
		if src.ColorMode != "" {
			out.ColorMode = src.ColorMode
		}
		if src.Effect != "" {
			out.Effect = src.Effect
		}
		if src.FlashState != "" {
			out.FlashState = src.FlashState
		}
		if src.TransitionSeconds != 0 {
			out.TransitionSeconds = src.TransitionSeconds
		}
	}
	apply(observed)
	apply(command)
	return out
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func u8PtrEqual(a, b *uint8) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func u16PtrEqual(a, b *uint16) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func xyPtrEqual(a, b *[2]float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func rgbPtrEqual(a, b *[3]uint8) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// LightRecord is the persisted per-backend-entity light document.
type LightRecord struct {
	LightID    string      `json:"-"` // map key; duplicated here for convenience
	EntityID   string      `json:"entity_id"`
	Enabled    bool        `json:"enabled"`
	Name       string      `json:"name"`
	UniqueID   string      `json:"uniqueid"`
	Config     LightConfig `json:"config"`
	ThrottleMs int         `json:"throttle_ms"`
	State      EntityState `json:"state"`
}

// GroupRecord is the persisted per-area/local group document.
type GroupRecord struct {
	GroupID string        `json:"-"`
	AreaID  *string       `json:"area_id,omitempty"`
	Enabled bool          `json:"enabled"`
	Name    string        `json:"name"`
	Class   string        `json:"class"`
	Type    string        `json:"type"` // Room | Zone | LightGroup | Entertainment
	Lights  []string      `json:"lights"`
	Stream  *StreamConfig `json:"stream,omitempty"`
}

// StreamConfig mirrors the Hue v1 group "stream" sub-document used to
// start/stop Entertainment sessions.
type StreamConfig struct {
	Active    bool   `json:"active"`
	Owner     string `json:"owner,omitempty"`
	ProxyMode string `json:"proxymode,omitempty"`
	ProxyNode string `json:"proxynode,omitempty"`
}
