package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var _ Adapter = (*Client)(nil)

// Client is the concrete Adapter implementation, grounded on the
// REST+websocket protocol of a generic home-automation backend: a
// bearer-token REST API for one-shot reads/writes and a websocket
// event socket for subscribe_events/state_changed push notifications.
type Client struct {
	baseURL string
	token   string

	httpClient *http.Client
	limiter    *rate.Limiter
	dialer     websocket.Dialer

	mu             sync.RWMutex
	states         map[string]EntityState
	entityRegistry map[string]RegistryEntry
	deviceRegistry map[string]RegistryEntry
	areaRegistry   map[string]RegistryEntry

	subMu       sync.Mutex
	subscribers []subscriber
	nextSubID   uint64

	wsMu    sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	pending map[uint64]func(rawResult json.RawMessage, isEvent bool)

	ready    chan struct{}
	readyErr error
	once     sync.Once

	cancel context.CancelFunc
}

type subscriber struct {
	id     uint64
	filter EventFilter
	cb     EventCallback
}

// RatePerSecond caps outbound service calls and state writes to the
// backend (CallService, SetState), consistent with the "one backend
// channel per light" discipline (§2 data flow). The REST state read in
// GetEntityState is not rate limited.
const RatePerSecond = 25.0

// New creates a Client bound to baseURL (e.g. "http://homeassistant.local:8123")
// authenticating with token.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(RatePerSecond), int(RatePerSecond)),
		states:     map[string]EntityState{},
		pending:    map[uint64]func(json.RawMessage, bool){},
		ready:      make(chan struct{}),
	}
}

// Connect opens the event socket, waits for the initial state/registry
// sync, and keeps reconnecting in the background afterward. Returns an
// error only if the initial handshake never completes — that failure is
// fatal at startup per §7.
func (c *Client) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go c.runWebsocket(runCtx)

	select {
	case <-c.ready:
		return c.readyErr
	case <-ctx.Done():
		return fmt.Errorf("connect to backend: %w", ctx.Err())
	case <-time.After(30 * time.Second):
		return fmt.Errorf("connect to backend: timed out waiting for initial sync")
	}
}

func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) markReady(err error) {
	c.once.Do(func() {
		c.readyErr = err
		close(c.ready)
	})
}

// runWebsocket owns the reconnect loop. Each iteration dials, performs
// the auth handshake, subscribes to events/registries, then reads until
// the connection drops, at which point it backs off and retries.
func (c *Client) runWebsocket(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	scheme := "ws"
	host := c.baseURL
	if strings.HasPrefix(host, "https://") {
		scheme = "wss"
		host = strings.TrimPrefix(host, "https://")
	} else {
		host = strings.TrimPrefix(host, "http://")
	}
	url := fmt.Sprintf("%s://%s/api/websocket", scheme, host)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.connectOnce(ctx, url); err != nil {
			log.Error().Err(err).Str("url", url).Msg("backend event socket disconnected")
			c.markReady(err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
	}
}

func (c *Client) connectOnce(ctx context.Context, url string) error {
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial backend websocket: %w", err)
	}
	c.wsMu.Lock()
	c.conn = conn
	c.nextID = 10
	c.pending = map[uint64]func(json.RawMessage, bool){}
	c.wsMu.Unlock()
	defer conn.Close()

	for {
		var msg struct {
			Type   string          `json:"type"`
			ID     uint64          `json:"id"`
			Result json.RawMessage `json:"result"`
			Event  json.RawMessage `json:"event"`
			Error  json.RawMessage `json:"error"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read backend websocket: %w", err)
		}

		switch msg.Type {
		case "auth_required":
			if err := conn.WriteJSON(map[string]string{"type": "auth", "access_token": c.token}); err != nil {
				return fmt.Errorf("send auth: %w", err)
			}
		case "auth_invalid":
			return fmt.Errorf("backend rejected auth token")
		case "auth_ok":
			if err := c.onAuthenticated(conn); err != nil {
				return err
			}
		case "event":
			c.handleEvent(msg.Event)
		case "result":
			c.handleResult(msg.ID, msg.Result)
		}
	}
}

func (c *Client) onAuthenticated(conn *websocket.Conn) error {
	send := func(id uint64, payload map[string]any) error {
		payload["id"] = id
		return conn.WriteJSON(payload)
	}
	if err := send(11, map[string]any{"type": "subscribe_events", "event_type": "state_changed"}); err != nil {
		return err
	}
	if err := send(12, map[string]any{"type": "get_states"}); err != nil {
		return err
	}
	if err := send(13, map[string]any{"type": "config/area_registry/list"}); err != nil {
		return err
	}
	if err := send(14, map[string]any{"type": "config/device_registry/list"}); err != nil {
		return err
	}
	if err := send(15, map[string]any{"type": "config/entity_registry/list"}); err != nil {
		return err
	}

	c.wsMu.Lock()
	c.nextID = 20
	c.wsMu.Unlock()
	return nil
}

func (c *Client) handleResult(id uint64, result json.RawMessage) {
	switch id {
	case 12:
		var items []struct {
			EntityID   string         `json:"entity_id"`
			State      string         `json:"state"`
			Attributes map[string]any `json:"attributes"`
		}
		if err := json.Unmarshal(result, &items); err != nil {
			log.Warn().Err(err).Msg("decode get_states result")
			return
		}
		c.mu.Lock()
		for _, it := range items {
			c.states[it.EntityID] = EntityState{EntityID: it.EntityID, State: it.State, Attributes: it.Attributes}
		}
		c.mu.Unlock()
		c.markReady(nil)
	case 13:
		c.decodeRegistry(result, "area_id", &c.areaRegistry)
	case 14:
		c.decodeRegistry(result, "id", &c.deviceRegistry)
	case 15:
		c.decodeRegistry(result, "entity_id", &c.entityRegistry)
	}
}

func (c *Client) decodeRegistry(result json.RawMessage, keyField string, dst *map[string]RegistryEntry) {
	var items []map[string]any
	if err := json.Unmarshal(result, &items); err != nil {
		log.Warn().Err(err).Str("key_field", keyField).Msg("decode registry result")
		return
	}
	reg := make(map[string]RegistryEntry, len(items))
	for _, item := range items {
		key, _ := item[keyField].(string)
		if key == "" {
			continue
		}
		entry := RegistryEntry{
			ID:           key,
			EntityID:     strOr(item["entity_id"]),
			DeviceID:     strOr(item["device_id"]),
			AreaID:       strOr(item["area_id"]),
			Manufacturer: strOr(item["manufacturer"]),
			Model:        strOr(item["model"]),
			Name:         strOr(item["name"]),
			SWVersion:    strOr(item["sw_version"]),
		}
		if disabled, ok := item["disabled_by"]; ok && disabled != nil {
			entry.Disabled = true
		}
		reg[key] = entry
	}
	c.mu.Lock()
	*dst = reg
	c.mu.Unlock()
}

func strOr(v any) string {
	s, _ := v.(string)
	return s
}

func (c *Client) handleEvent(raw json.RawMessage) {
	var event struct {
		EventType string `json:"event_type"`
		Data      struct {
			EntityID string `json:"entity_id"`
			NewState *struct {
				State      string         `json:"state"`
				Attributes map[string]any `json:"attributes"`
			} `json:"new_state"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &event); err != nil || event.EventType != "state_changed" {
		return
	}
	if event.Data.NewState == nil {
		return
	}
	state := EntityState{
		EntityID:   event.Data.EntityID,
		State:      event.Data.NewState.State,
		Attributes: event.Data.NewState.Attributes,
	}
	c.mu.Lock()
	c.states[state.EntityID] = state
	c.mu.Unlock()

	c.subMu.Lock()
	subs := make([]subscriber, len(c.subscribers))
	copy(subs, c.subscribers)
	c.subMu.Unlock()
	for _, sub := range subs {
		if sub.filter.EntityID != "" && sub.filter.EntityID != state.EntityID {
			continue
		}
		sub.cb(state)
	}
}

func (c *Client) RegisterEventCallback(filter EventFilter, cb EventCallback) CancelFunc {
	c.subMu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, filter: filter, cb: cb})
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, sub := range c.subscribers {
			if sub.id == id {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (c *Client) GetEntityState(ctx context.Context, entityID string) (EntityState, bool) {
	c.mu.RLock()
	state, ok := c.states[entityID]
	c.mu.RUnlock()
	if ok {
		return state, true
	}

	var raw struct {
		State      string         `json:"state"`
		Attributes map[string]any `json:"attributes"`
	}
	if err := c.getJSON(ctx, "/api/states/"+entityID, &raw); err != nil {
		log.Debug().Err(err).Str("entity_id", entityID).Msg("fetch entity state")
		return EntityState{}, false
	}
	state = EntityState{EntityID: entityID, State: raw.State, Attributes: raw.Attributes}
	c.mu.Lock()
	c.states[entityID] = state
	c.mu.Unlock()
	return state, true
}

func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.postJSON(ctx, fmt.Sprintf("/api/services/%s/%s", domain, service), data)
}

func (c *Client) TurnOn(ctx context.Context, entityID string, data map[string]any) error {
	payload := map[string]any{"entity_id": entityID}
	for k, v := range data {
		payload[k] = v
	}
	return c.CallService(ctx, "light", "turn_on", payload)
}

func (c *Client) TurnOff(ctx context.Context, entityID string) error {
	return c.CallService(ctx, "light", "turn_off", map[string]any{"entity_id": entityID})
}

func (c *Client) SetState(ctx context.Context, entityID, state string, attributes map[string]any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	payload := map[string]any{"state": state, "attributes": attributes}
	return c.postJSON(ctx, "/api/states/"+entityID, payload)
}

func (c *Client) EntityRegistry() map[string]RegistryEntry { return c.snapshotRegistry(&c.entityRegistry) }
func (c *Client) DeviceRegistry() map[string]RegistryEntry { return c.snapshotRegistry(&c.deviceRegistry) }
func (c *Client) AreaRegistry() map[string]RegistryEntry   { return c.snapshotRegistry(&c.areaRegistry) }

func (c *Client) snapshotRegistry(src *map[string]RegistryEntry) map[string]RegistryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]RegistryEntry, len(*src))
	for k, v := range *src {
		out[k] = v
	}
	return out
}

func (c *Client) ItemsByDomain(domain string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	prefix := domain + "."
	for id := range c.states {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out
}

func (c *Client) States() map[string]EntityState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]EntityState, len(c.states))
	for k, v := range c.states {
		out[k] = v
	}
	return out
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("backend GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("backend POST %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}
