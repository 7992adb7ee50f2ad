package backend

import (
	"encoding/json"
	"testing"
)

func TestHandleEventUpdatesStateAndNotifiesSubscribers(t *testing.T) {
	c := New("http://example.invalid", "token", 0)

	var seen EntityState
	calls := 0
	cancel := c.RegisterEventCallback(EventFilter{EntityID: "light.kitchen"}, func(s EntityState) {
		calls++
		seen = s
	})
	defer cancel()

	// Unrelated entity must not trigger the callback.
	c.handleEvent(rawEvent(t, "light.bedroom", "on", map[string]any{"brightness": 200}))
	if calls != 0 {
		t.Fatalf("expected 0 calls for unrelated entity, got %d", calls)
	}

	c.handleEvent(rawEvent(t, "light.kitchen", "on", map[string]any{"brightness": 128}))
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if seen.State != "on" {
		t.Fatalf("expected state 'on', got %q", seen.State)
	}
	if bri, _ := seen.Attributes["brightness"].(float64); bri != 128 {
		t.Fatalf("expected brightness 128, got %v", seen.Attributes["brightness"])
	}

	cancel()
	c.handleEvent(rawEvent(t, "light.kitchen", "off", nil))
	if calls != 1 {
		t.Fatalf("expected cancel to stop further callbacks, got %d calls", calls)
	}
}

func TestItemsByDomainFiltersByPrefix(t *testing.T) {
	c := New("http://example.invalid", "token", 0)
	c.states = map[string]EntityState{
		"light.kitchen": {EntityID: "light.kitchen"},
		"light.bedroom": {EntityID: "light.bedroom"},
		"switch.fan":    {EntityID: "switch.fan"},
	}

	items := c.ItemsByDomain("light")
	if len(items) != 2 {
		t.Fatalf("expected 2 light entities, got %d: %v", len(items), items)
	}
}

func rawEvent(t *testing.T, entityID, state string, attrs map[string]any) json.RawMessage {
	t.Helper()
	payload := map[string]any{
		"event_type": "state_changed",
		"data": map[string]any{
			"entity_id": entityID,
			"new_state": map[string]any{
				"state":      state,
				"attributes": attrs,
			},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}
