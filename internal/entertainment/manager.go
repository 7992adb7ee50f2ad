package entertainment

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridged/internal/backend"
	"github.com/dokzlo13/huebridged/internal/command"
	"github.com/dokzlo13/huebridged/internal/configstore"
	"github.com/dokzlo13/huebridged/internal/device"
)

// hassSensor is the synthetic entity the bridge reports streaming
// status through, matching the original's binary_sensor convention.
const hassSensor = "binary_sensor.emulated_hue_entertainment_active"

// Manager owns the single active Entertainment session, if any. It is
// a singleton by construction (§4.9): a second Start call while one is
// already running is a no-op.
type Manager struct {
	cache   *device.Cache
	adapter backend.Adapter

	mu      sync.Mutex
	active  bool
	groupID string
	cancel  context.CancelFunc
	ln      *dtlsListener
}

// NewManager builds a Manager bound to the process-wide device cache
// and backend adapter.
func NewManager(cache *device.Cache, adapter backend.Adapter) *Manager {
	return &Manager{cache: cache, adapter: adapter}
}

// IsActive reports whether a session is currently streaming.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// ActiveGroup returns the group id currently streaming, if any.
func (m *Manager) ActiveGroup() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groupID, m.active
}

// Start binds a new session to group and user. A no-op if a session is
// already running.
func (m *Manager) Start(ctx context.Context, group configstore.GroupRecord, user configstore.User) error {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		log.Debug().Str("group_id", group.GroupID).Msg("entertainment start ignored: session already active")
		return nil
	}
	m.active = true
	m.groupID = group.GroupID
	m.mu.Unlock()

	ln, err := listenDTLSPSK(user.Username, user.ClientKey)
	if err != nil {
		m.mu.Lock()
		m.active = false
		m.mu.Unlock()
		return err
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.ln = ln
	m.cancel = cancel
	m.mu.Unlock()

	_ = m.adapter.SetState(ctx, hassSensor, "on", map[string]any{"room": group.Name})

	for _, lightID := range group.Lights {
		if dev, ok := m.cache.ByLightID(lightID); ok {
			dev.SetEntertainmentActive(true)
		}
	}

	go m.acceptLoop(sessionCtx, ln)

	log.Info().Str("group_id", group.GroupID).Msg("entertainment session started")
	return nil
}

func (m *Manager) acceptLoop(ctx context.Context, ln *dtlsListener) {
	conn, err := ln.accept(ctx)
	if err != nil {
		return
	}
	readLoop(ctx, conn, m.handleFrame)
}

// handleFrame decodes one frame and fans its per-light commands out
// concurrently; per §4.9, a command that can't clear the throttle gate
// is simply dropped.
func (m *Manager) handleFrame(raw []byte) {
	lights := decodeFrame(raw)
	var wg sync.WaitGroup
	for _, lc := range lights {
		lc := lc
		dev, ok := m.cache.ByLightID(lightIDString(lc.LightID))
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			cmd := command.New(dev.Kind(), 0, true)
			cmd.SetPowerState(true)
			if lc.ColorSpace == colorSpaceRGB {
				cmd.SetRGB(lc.RGB[0], lc.RGB[1], lc.RGB[2])
			} else {
				cmd.SetXY(lc.XY[0], lc.XY[1])
			}
			cmd.SetBrightness(int(lc.Brightness))
			cmd.SetTransitionMs(0, true)
			_, _ = dev.Execute(context.Background(), cmd.State())
		}()
	}
	wg.Wait()
}

// Stop ends the active session, if any: tears down the DTLS listener,
// reports streaming-off, and forces every cached light (not only the
// group's members) to resync with the backend (§4.9).
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	groupID := m.groupID
	cancel := m.cancel
	ln := m.ln
	m.active = false
	m.groupID = ""
	m.cancel = nil
	m.ln = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ln != nil {
		_ = ln.Close()
	}

	_ = m.adapter.SetState(ctx, hassSensor, "off", nil)

	for _, dev := range m.cache.All() {
		dev.SetEntertainmentActive(false)
		if state, ok := m.adapter.GetEntityState(ctx, dev.EntityID()); ok {
			dev.Observe(state)
		}
	}

	log.Info().Str("group_id", groupID).Msg("entertainment session stopped")
}

func lightIDString(id uint16) string {
	return strconv.Itoa(int(id))
}
