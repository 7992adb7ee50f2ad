package device

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridged/internal/backend"
	"github.com/dokzlo13/huebridged/internal/command"
	"github.com/dokzlo13/huebridged/internal/configstore"
	"github.com/dokzlo13/huebridged/internal/identity"
)

// pollBackstop is the per-device correctness backstop poll interval:
// Entities are expected to push state over the event socket, but a
// dropped event should never wedge a light forever stale.
const pollBackstop = 5 * time.Second

// Cache owns every known Device, keyed by backend entity id. It
// subscribes one event callback per entity for the process lifetime
// (never unsubscribed, matching the backend's own contract) and runs a
// poll-backstop loop alongside the event-driven path.
type Cache struct {
	mu      sync.RWMutex
	store   *configstore.Store
	adapter backend.Adapter
	devices map[string]*Device

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCache constructs an empty device cache.
func NewCache(store *configstore.Store, adapter backend.Adapter) *Cache {
	return &Cache{
		store:   store,
		adapter: adapter,
		devices: map[string]*Device{},
	}
}

// Sync discovers every light-domain entity the backend currently knows
// about and ensures a Device exists for each, allocating a persisted
// light record on first sight.
func (c *Cache) Sync(ctx context.Context) error {
	for _, entityID := range c.adapter.ItemsByDomain("light") {
		if _, ok := c.Get(entityID); ok {
			continue
		}
		state, _ := c.adapter.GetEntityState(ctx, entityID)
		c.ensureDevice(entityID, state)
	}
	return nil
}

func (c *Cache) ensureDevice(entityID string, state backend.EntityState) *Device {
	c.mu.Lock()
	if dev, ok := c.devices[entityID]; ok {
		c.mu.Unlock()
		return dev
	}
	c.mu.Unlock()

	uniqueID := identity.UniqueID(entityID)
	lightID := c.store.AllocateLightID(entityID, uniqueID)
	rec, _ := c.store.GetLight(lightID)

	kind := command.DetermineKind(supportedColorModes(state.Attributes))
	dev := newDevice(c.store, c.adapter, rec, kind)

	c.mu.Lock()
	c.devices[entityID] = dev
	c.mu.Unlock()

	c.adapter.RegisterEventCallback(backend.EventFilter{EntityID: entityID}, func(s backend.EntityState) {
		dev.Observe(s)
	})

	log.Debug().Str("entity_id", entityID).Str("light_id", lightID).Str("kind", kind.String()).Msg("device registered")

	if state.EntityID != "" {
		dev.Observe(state)
	}
	return dev
}

// Get returns the already-registered device for entityID; it does not
// register unknown entities.
func (c *Cache) Get(entityID string) (*Device, bool) {
	c.mu.RLock()
	dev, ok := c.devices[entityID]
	c.mu.RUnlock()
	return dev, ok
}

// ByLightID returns the device whose persisted light_id matches id.
func (c *Cache) ByLightID(id string) (*Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, dev := range c.devices {
		if dev.LightID() == id {
			return dev, true
		}
	}
	return nil, false
}

// All returns a snapshot of every registered device.
func (c *Cache) All() []*Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Device, 0, len(c.devices))
	for _, dev := range c.devices {
		out = append(out, dev)
	}
	return out
}

// Start runs the initial sync and begins the poll-backstop loop. It
// returns once the first sync completes; the loop continues in the
// background until Stop is called.
func (c *Cache) Start(ctx context.Context) error {
	if err := c.Sync(ctx); err != nil {
		return err
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.pollLoop(loopCtx)
	return nil
}

// Stop halts the poll-backstop loop.
func (c *Cache) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Cache) pollLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pollBackstop)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

func (c *Cache) pollOnce(ctx context.Context) {
	if err := c.Sync(ctx); err != nil {
		log.Warn().Err(err).Msg("device sync failed during poll backstop")
	}
	for _, dev := range c.All() {
		state, ok := c.adapter.GetEntityState(ctx, dev.EntityID())
		if !ok {
			continue
		}
		dev.Observe(state)
	}
}

func supportedColorModes(attrs map[string]any) []string {
	v, ok := attrs["supported_color_modes"]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
