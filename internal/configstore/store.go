// Package configstore owns the durable JSON document that backs bridge
// identity, users, lights, groups, and the opaque scene/rule/resourcelink
// collections. It is the leaf-most component in the dependency graph: it
// imports nothing else in this module.
package configstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	configFileName = "emulated_hue.json"

	// DefaultCommitDelay is CONFIG_WRITE_DELAY_SECONDS from the original
	// implementation: mutations are coalesced onto one commit this long
	// after the first write in a batch.
	DefaultCommitDelay = 10 * time.Second

	// DefaultThrottleMs seeds LightRecord.ThrottleMs for newly discovered
	// lights.
	DefaultThrottleMs = 100

	// linkModeWindow is the self-expiring duration for both link-mode
	// booleans (§4.1).
	linkModeWindow = 300 * time.Second
)

// Store is the sole owner of the on-disk document. All mutation goes
// through its methods; callers never see the document directly.
type Store struct {
	mu          sync.Mutex
	dataDir     string
	commitDelay time.Duration
	doc         *document

	commitTimer *time.Timer
	pendingCh   chan struct{} // unused: nothing in the store creates or closes it

	linkModeEnabled      bool
	linkModeTimer        *time.Timer
	linkModeDiscoveryKey string
	discoveryTimer       *time.Timer
}

// Open loads (or initializes) the document at dataDir/emulated_hue.json.
// A missing or malformed file is not an error: it yields an empty
// document and a debug-level log, per §4.1 failure semantics.
func Open(dataDir string, commitDelay time.Duration) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if commitDelay <= 0 {
		commitDelay = DefaultCommitDelay
	}
	s := &Store{
		dataDir:     dataDir,
		commitDelay: commitDelay,
	}

	path := s.Path(configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("no existing config document, starting empty")
		s.doc = newDocument()
		return s, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("config document malformed, starting empty")
		s.doc = newDocument()
		return s, nil
	}
	if doc.Users == nil {
		doc.Users = map[string]*User{}
	}
	if doc.Lights == nil {
		doc.Lights = map[string]*LightRecord{}
	}
	if doc.Groups == nil {
		doc.Groups = map[string]*GroupRecord{}
	}
	if doc.Scenes == nil {
		doc.Scenes = map[string]map[string]any{}
	}
	if doc.Rules == nil {
		doc.Rules = map[string]map[string]any{}
	}
	if doc.ResourceLinks == nil {
		doc.ResourceLinks = map[string]map[string]any{}
	}
	if doc.Schedules == nil {
		doc.Schedules = map[string]map[string]any{}
	}
	for id, rec := range doc.Lights {
		if rec != nil {
			rec.LightID = id
		}
	}
	for id, rec := range doc.Groups {
		if rec != nil {
			rec.GroupID = id
		}
	}
	s.doc = &doc
	return s, nil
}

// Path joins name onto the store's data directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dataDir, name)
}

// scheduleCommit starts a commit timer if one is not already pending.
// Must be called with s.mu held.
func (s *Store) scheduleCommit() {
	if s.commitTimer != nil {
		return
	}
	s.commitTimer = time.AfterFunc(s.commitDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.commitTimer = nil
		if err := writeDocumentAtomic(s.Path(configFileName), s.snapshotLocked()); err != nil {
			log.Error().Err(err).Msg("failed to commit config document, will retry on next mutation")
		}
	})
}

// snapshotLocked returns the document pointer for serialization. The
// document's maps are never replaced wholesale after Open, only mutated
// under s.mu, so marshaling it outside the lock after a copy of the
// pointer is safe as long as no concurrent field mutation is in flight;
// we hold the lock for the encode instead, for simplicity and because
// commits are rare.
func (s *Store) snapshotLocked() *document {
	return s.doc
}

// Stop cancels any pending commit and performs one immediate, synchronous
// commit, per §5 shutdown ordering.
func (s *Store) Stop(_ context.Context) error {
	s.mu.Lock()
	if s.commitTimer != nil {
		s.commitTimer.Stop()
		s.commitTimer = nil
	}
	if s.linkModeTimer != nil {
		s.linkModeTimer.Stop()
	}
	if s.discoveryTimer != nil {
		s.discoveryTimer.Stop()
	}
	doc := s.doc
	path := s.Path(configFileName)
	err := writeDocumentAtomic(path, doc)
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("failed to flush config document on shutdown")
		return err
	}
	return nil
}

// writeDocumentAtomic serializes doc as 4-space-indented, sorted-key
// JSON and writes it via temp-then-rename, rotating the previous file to
// a ".backup" sibling first. encoding/json sorts map keys but writes
// struct fields in declaration order, so the document is first decoded
// into generic maps and then indented, which sorts keys at every level.
func writeDocumentAtomic(path string, doc *document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config document: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("re-decode config document: %w", err)
	}
	data, err := json.MarshalIndent(generic, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal config document: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync temp config file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".backup"); err != nil {
			return fmt.Errorf("rotate config backup: %w", err)
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp config file into place: %w", err)
	}
	return nil
}

// BridgeConfig returns a copy of the current bridge-wide settings.
func (s *Store) BridgeConfig() BridgeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.BridgeConfig
}

// SetBridgeName updates the user-facing bridge name, no-op if unchanged.
func (s *Store) SetBridgeName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.BridgeConfig.Name == name {
		return
	}
	s.doc.BridgeConfig.Name = name
	s.scheduleCommit()
}

// BridgeName returns the user-facing name, falling back to a default
// when unset.
func (s *Store) BridgeName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.BridgeConfig.Name == "" {
		return "Go Emulated Hue"
	}
	return s.doc.BridgeConfig.Name
}
