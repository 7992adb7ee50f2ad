package configstore

import (
	"errors"
	"time"
)

// ErrLinkNotPressed is returned by CreateUser when link mode is off.
var ErrLinkNotPressed = errors.New("link button not pressed")

const timeLayout = "2006-01-02T15:04:05"

// GetUser returns the stored user, stamping last_use_date on every
// successful lookup (per original semantics: reads double as activity).
func (s *Store) GetUser(username string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.doc.Users[username]
	if !ok {
		return User{}, false
	}
	u.LastUseDate = time.Now().UTC().Format(timeLayout)
	s.scheduleCommit()
	return *u, true
}

// Users returns a snapshot of every registered user.
func (s *Store) Users() map[string]User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]User, len(s.doc.Users))
	for k, u := range s.doc.Users {
		out[k] = *u
	}
	return out
}

// CreateUser mints a new application key for devicetype, or returns the
// existing one if a user with that exact devicetype name already exists
// (idempotent on devicetype). Requires link mode to be enabled.
func (s *Store) CreateUser(devicetype string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.linkModeEnabled {
		return User{}, ErrLinkNotPressed
	}

	for _, u := range s.doc.Users {
		if u.Name == devicetype {
			return *u, nil
		}
	}

	now := time.Now().UTC().Format(timeLayout)
	u := &User{
		Username:    secureString(40),
		ClientKey:   secureHex(32),
		Name:        devicetype,
		CreateDate:  now,
		LastUseDate: now,
	}
	s.doc.Users[u.Username] = u
	s.scheduleCommit()
	return *u, nil
}

// DeleteUser hard-deletes a user (§3: "Deletion is hard").
func (s *Store) DeleteUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Users[username]; !ok {
		return
	}
	delete(s.doc.Users, username)
	s.scheduleCommit()
}

// LinkModeEnabled reports whether new users may currently be created.
func (s *Store) LinkModeEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkModeEnabled
}

// EnableLinkMode opens a 300-second window during which CreateUser
// succeeds. Re-enabling while already enabled is a no-op (does not
// restart the timer), matching the original's early-return.
func (s *Store) EnableLinkMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linkModeEnabled {
		return
	}
	s.linkModeEnabled = true
	s.linkModeTimer = time.AfterFunc(linkModeWindow, func() {
		s.mu.Lock()
		s.linkModeEnabled = false
		s.mu.Unlock()
	})
}

// DisableLinkMode closes the link-mode window immediately (used after a
// successful CreateUser, per §4.7: "Disables link-mode immediately after use").
func (s *Store) DisableLinkMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkModeEnabled = false
	if s.linkModeTimer != nil {
		s.linkModeTimer.Stop()
		s.linkModeTimer = nil
	}
}

// LinkModeDiscoveryKey returns the current discovery token, if any.
func (s *Store) LinkModeDiscoveryKey() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linkModeDiscoveryKey == "" {
		return "", false
	}
	return s.linkModeDiscoveryKey, true
}

// EnableLinkModeDiscovery mints a 32-char discovery token, valid for 300
// seconds, unless one is already active.
func (s *Store) EnableLinkModeDiscovery() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linkModeDiscoveryKey != "" {
		return s.linkModeDiscoveryKey, false
	}
	s.linkModeDiscoveryKey = secureString(32)
	key := s.linkModeDiscoveryKey
	s.discoveryTimer = time.AfterFunc(linkModeWindow, func() {
		s.mu.Lock()
		s.linkModeDiscoveryKey = ""
		s.mu.Unlock()
	})
	return key, true
}

// DisableLinkModeDiscovery clears the discovery token.
func (s *Store) DisableLinkModeDiscovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkModeDiscoveryKey = ""
	if s.discoveryTimer != nil {
		s.discoveryTimer.Stop()
		s.discoveryTimer = nil
	}
}

// TryLinkModeDiscoveryKey flips link mode on if token matches the
// current discovery key, for the GET /link/{token} handler.
func (s *Store) TryLinkModeDiscoveryKey(token string) bool {
	s.mu.Lock()
	match := s.linkModeDiscoveryKey != "" && s.linkModeDiscoveryKey == token
	s.mu.Unlock()
	if !match {
		return false
	}
	s.EnableLinkMode()
	return true
}
