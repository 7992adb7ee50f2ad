package configstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, DefaultCommitDelay)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestAllocateLightIDMonotonicAndStable(t *testing.T) {
	s := newTestStore(t)

	id1 := s.AllocateLightID("light.kitchen", "00:aa:bb:cc:dd:ee:ff:00-01")
	id2 := s.AllocateLightID("light.bedroom", "00:aa:bb:cc:dd:ee:ff:00-02")
	if id1 != "1" || id2 != "2" {
		t.Fatalf("expected sequential ids 1,2, got %s,%s", id1, id2)
	}

	// Re-resolving an existing entity returns the same id, not a new one.
	if again := s.AllocateLightID("light.kitchen", "irrelevant"); again != id1 {
		t.Fatalf("expected stable id %s, got %s", id1, again)
	}
}

func TestAllocateLightIDStableAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, DefaultCommitDelay)
	if err != nil {
		t.Fatal(err)
	}
	id := s1.AllocateLightID("light.kitchen", "uid")
	if err := s1.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	s2, err := Open(dir, DefaultCommitDelay)
	if err != nil {
		t.Fatal(err)
	}
	again := s2.AllocateLightID("light.kitchen", "uid")
	if again != id {
		t.Fatalf("expected id to survive restart: got %s before, %s after", id, again)
	}
}

func TestCreateUserRequiresLinkMode(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateUser("app#device"); err != ErrLinkNotPressed {
		t.Fatalf("expected ErrLinkNotPressed, got %v", err)
	}

	s.EnableLinkMode()
	u1, err := s.CreateUser("app#device")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if len(u1.Username) != 40 {
		t.Fatalf("expected 40-char username, got %d chars", len(u1.Username))
	}

	// Idempotent on devicetype.
	u2, err := s.CreateUser("app#device")
	if err != nil {
		t.Fatalf("CreateUser (second): %v", err)
	}
	if u1.Username != u2.Username {
		t.Fatalf("expected same username on repeat devicetype, got %s and %s", u1.Username, u2.Username)
	}
}

func TestDeleteGroupCascadesScenes(t *testing.T) {
	s := newTestStore(t)
	gid := s.CreateGroup(GroupRecord{Name: "Living Room", Class: "Other", Type: "Room"})

	s.OpaqueSet(CollectionScenes, "1", map[string]any{"name": "Evening", "group": gid})
	s.OpaqueSet(CollectionScenes, "2", map[string]any{"name": "Other group", "group": "99"})

	s.DeleteGroup(gid)

	if _, ok := s.OpaqueGet(CollectionScenes, "1"); ok {
		t.Fatalf("expected scene 1 (bound to deleted group) to be removed")
	}
	if _, ok := s.OpaqueGet(CollectionScenes, "2"); !ok {
		t.Fatalf("expected unrelated scene 2 to survive")
	}
	if _, ok := s.GetGroup(gid); ok {
		t.Fatalf("expected non-HASS group to be hard deleted")
	}
}

func TestDeleteLightIsSoftDisable(t *testing.T) {
	s := newTestStore(t)
	id := s.AllocateLightID("light.x", "uid")
	s.DeleteLight(id)

	rec, ok := s.GetLight(id)
	if !ok {
		t.Fatalf("expected light record to still exist")
	}
	if rec.Enabled {
		t.Fatalf("expected light to be disabled, not removed")
	}
}

func TestCommitAtomicityLeavesNoTruncatedFile(t *testing.T) {
	s := newTestStore(t)
	s.AllocateLightID("light.x", "uid")
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	path := s.Path(configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected committed file to exist: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("committed file must not be empty/truncated")
	}
	if _, err := os.Stat(filepath.Join(s.dataDir, configFileName+".tmp")); err == nil {
		t.Fatalf("temp file should not survive a successful commit")
	}
}

func TestLinkModeDiscoveryTokenEnablesLinkMode(t *testing.T) {
	s := newTestStore(t)
	token, fresh := s.EnableLinkModeDiscovery()
	if !fresh {
		t.Fatalf("expected fresh discovery token")
	}
	if len(token) != 32 {
		t.Fatalf("expected 32-char token, got %d", len(token))
	}

	if s.TryLinkModeDiscoveryKey("wrong-token") {
		t.Fatalf("wrong token must not enable link mode")
	}
	if !s.TryLinkModeDiscoveryKey(token) {
		t.Fatalf("correct token must enable link mode")
	}
	if !s.LinkModeEnabled() {
		t.Fatalf("expected link mode enabled after matching token")
	}
}

func TestEntityStateCoalesceEquality(t *testing.T) {
	on := true
	bri := uint8(100)
	a := EntityState{PowerState: &on, Brightness: &bri, ColorMode: "color_temp", ColorTemp: ptr16(300)}
	b := EntityState{PowerState: &on, Brightness: &bri, ColorMode: "color_temp", ColorTemp: ptr16(300), TransitionSeconds: 5}
	if !a.CoalesceEqual(b) {
		t.Fatalf("expected states to be coalesce-equal (transition must not matter)")
	}

	c := EntityState{PowerState: &on, Brightness: &bri, ColorMode: "color_temp", ColorTemp: ptr16(301)}
	if a.CoalesceEqual(c) {
		t.Fatalf("expected states with different color_temp to differ")
	}
}

func ptr16(v uint16) *uint16 { return &v }
