package device

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dokzlo13/huebridged/internal/backend"
	"github.com/dokzlo13/huebridged/internal/command"
	"github.com/dokzlo13/huebridged/internal/configstore"
)

type fakeAdapter struct {
	states    map[string]backend.EntityState
	turnOns   []map[string]any
	turnOffs  int
	callbacks []struct {
		filter backend.EventFilter
		cb     backend.EventCallback
	}
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{states: map[string]backend.EntityState{}}
}

func (f *fakeAdapter) Connect(context.Context) error { return nil }
func (f *fakeAdapter) Close() error                  { return nil }

func (f *fakeAdapter) GetEntityState(_ context.Context, entityID string) (backend.EntityState, bool) {
	s, ok := f.states[entityID]
	return s, ok
}

func (f *fakeAdapter) CallService(context.Context, string, string, map[string]any) error { return nil }

func (f *fakeAdapter) TurnOn(_ context.Context, _ string, data map[string]any) error {
	f.turnOns = append(f.turnOns, data)
	return nil
}

func (f *fakeAdapter) TurnOff(context.Context, string) error {
	f.turnOffs++
	return nil
}

func (f *fakeAdapter) SetState(context.Context, string, string, map[string]any) error { return nil }

func (f *fakeAdapter) RegisterEventCallback(filter backend.EventFilter, cb backend.EventCallback) backend.CancelFunc {
	f.callbacks = append(f.callbacks, struct {
		filter backend.EventFilter
		cb     backend.EventCallback
	}{filter, cb})
	return func() {}
}

func (f *fakeAdapter) EntityRegistry() map[string]backend.RegistryEntry { return nil }
func (f *fakeAdapter) DeviceRegistry() map[string]backend.RegistryEntry { return nil }
func (f *fakeAdapter) AreaRegistry() map[string]backend.RegistryEntry   { return nil }

func (f *fakeAdapter) ItemsByDomain(domain string) []string {
	var out []string
	for id := range f.states {
		out = append(out, id)
	}
	return out
}

func (f *fakeAdapter) States() map[string]backend.EntityState { return f.states }

func newTestStore(t *testing.T) *configstore.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "devicetest-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	store, err := configstore.Open(dir, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func newTestDevice(t *testing.T, throttleMs int, kind command.Kind) (*Device, *fakeAdapter) {
	t.Helper()
	store := newTestStore(t)
	adapter := newFakeAdapter()
	lightID := store.AllocateLightID("light.kitchen", "00:11:22:33:44:55:66:77-88")
	rec, _ := store.GetLight(lightID)
	rec.ThrottleMs = throttleMs
	store.SetLight(lightID, rec)
	rec, _ = store.GetLight(lightID)
	dev := newDevice(store, adapter, rec, kind)
	return dev, adapter
}

func boolPtr(b bool) *bool    { return &b }
func u8Ptr(v uint8) *uint8    { return &v }

func TestExecuteAcceptsFirstCommand(t *testing.T) {
	dev, adapter := newTestDevice(t, 0, command.KindBrightness)
	cmd := configstore.EntityState{PowerState: boolPtr(true), Brightness: u8Ptr(100)}

	accepted, err := dev.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !accepted {
		t.Fatal("expected first command to be accepted")
	}
	if len(adapter.turnOns) != 1 {
		t.Fatalf("expected 1 turn_on call, got %d", len(adapter.turnOns))
	}
}

func TestExecuteRejectsEqualWithinCooldown(t *testing.T) {
	dev, adapter := newTestDevice(t, 100_000, command.KindBrightness)
	cmd := configstore.EntityState{PowerState: boolPtr(true), Brightness: u8Ptr(100)}

	if _, err := dev.Execute(context.Background(), cmd); err != nil {
		t.Fatal(err)
	}
	accepted, err := dev.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	if accepted {
		t.Fatal("expected repeated identical command within cooldown to be rejected")
	}
	if len(adapter.turnOns) != 1 {
		t.Fatalf("expected no additional turn_on call, got %d total", len(adapter.turnOns))
	}
}

func TestExecuteBigBrightnessDeltaOverridesCooldown(t *testing.T) {
	dev, adapter := newTestDevice(t, 100_000, command.KindBrightness)
	first := configstore.EntityState{PowerState: boolPtr(true), Brightness: u8Ptr(10)}
	if _, err := dev.Execute(context.Background(), first); err != nil {
		t.Fatal(err)
	}

	second := configstore.EntityState{PowerState: boolPtr(true), Brightness: u8Ptr(200)}
	accepted, err := dev.Execute(context.Background(), second)
	if err != nil {
		t.Fatal(err)
	}
	if !accepted {
		t.Fatal("expected a big brightness delta to override the cooldown")
	}
	if len(adapter.turnOns) != 2 {
		t.Fatalf("expected 2 turn_on calls, got %d", len(adapter.turnOns))
	}
}

func TestExecuteZeroThrottleAlwaysAccepts(t *testing.T) {
	dev, adapter := newTestDevice(t, 0, command.KindBrightness)
	cmd := configstore.EntityState{PowerState: boolPtr(true), Brightness: u8Ptr(50)}

	for i := 0; i < 3; i++ {
		accepted, err := dev.Execute(context.Background(), cmd)
		if err != nil {
			t.Fatal(err)
		}
		if !accepted {
			t.Fatalf("expected every command to be accepted with zero throttle, call %d rejected", i)
		}
	}
	if len(adapter.turnOns) != 3 {
		t.Fatalf("expected 3 turn_on calls, got %d", len(adapter.turnOns))
	}
}

func TestExecuteTurnOffCallsTurnOff(t *testing.T) {
	dev, adapter := newTestDevice(t, 0, command.KindOnOff)
	cmd := configstore.EntityState{PowerState: boolPtr(false)}
	accepted, err := dev.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !accepted {
		t.Fatal("expected turn-off command to be accepted")
	}
	if adapter.turnOffs != 1 {
		t.Fatalf("expected 1 turn_off call, got %d", adapter.turnOffs)
	}
}

func TestObserveRecomposesPersistedState(t *testing.T) {
	dev, _ := newTestDevice(t, 0, command.KindBrightness)
	dev.Observe(backend.EntityState{
		EntityID:   "light.kitchen",
		State:      "on",
		Attributes: map[string]any{"brightness": float64(180)},
	})

	rec, ok := dev.store.GetLight(dev.lightID)
	if !ok {
		t.Fatal("expected light record to exist")
	}
	if rec.State.Brightness == nil || *rec.State.Brightness != 180 {
		t.Fatalf("expected persisted brightness 180, got %v", rec.State.Brightness)
	}
	if rec.State.PowerState == nil || !*rec.State.PowerState {
		t.Fatalf("expected persisted power_state true, got %v", rec.State.PowerState)
	}
}

func TestObserveGatedDuringEntertainment(t *testing.T) {
	dev, _ := newTestDevice(t, 0, command.KindBrightness)
	dev.SetEntertainmentActive(true)

	dev.Observe(backend.EntityState{EntityID: "light.kitchen", State: "on", Attributes: map[string]any{"brightness": float64(10)}})
	rec, _ := dev.store.GetLight(dev.lightID)
	if rec.State.Brightness != nil {
		t.Fatalf("expected first observe while entertainment-active to be gated, got %v", rec.State.Brightness)
	}
}
