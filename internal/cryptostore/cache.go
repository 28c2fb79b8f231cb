package cryptostore

import "sync"

// SessionList is a mutex-guarded, shared-mutable list of Olm sessions for
// one sender key. The cache hands out this same handle to every caller so
// concurrent decrypt attempts run the ratchet under one lock instead of
// racing over independent copies.
type SessionList struct {
	mu       sync.Mutex
	sessions []*Session
}

// Lock acquires exclusive access to the list for the duration of a
// decrypt/ratchet operation.
func (l *SessionList) Lock() { l.mu.Lock() }

// Unlock releases the lock acquired by Lock.
func (l *SessionList) Unlock() { l.mu.Unlock() }

// Sessions returns the current slice. Caller must hold the lock to read
// safely if other goroutines may be appending.
func (l *SessionList) Sessions() []*Session { return l.sessions }

// Append adds a session to the list. Caller must hold the lock.
func (l *SessionList) Append(s *Session) { l.sessions = append(l.sessions, s) }

// sessionCache maps a sender key to its shared mutable session list.
type sessionCache struct {
	mu    sync.Mutex
	lists map[string]*SessionList
}

func newSessionCache() *sessionCache {
	return &sessionCache{lists: make(map[string]*SessionList)}
}

// get returns the existing list for senderKey, or nil if absent. A miss is
// never authoritative — the repository must still consult the database.
func (c *sessionCache) get(senderKey string) (*SessionList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lists[senderKey]
	return l, ok
}

// getOrCreate returns the list for senderKey, creating an empty one if
// necessary. Used once a database fetch has determined the authoritative
// set of sessions to populate it with.
func (c *sessionCache) getOrCreate(senderKey string) *SessionList {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lists[senderKey]
	if !ok {
		l = &SessionList{}
		c.lists[senderKey] = l
	}
	return l
}

// deviceCache maps (user, device) to a cached device identity.
type deviceCache struct {
	mu    sync.RWMutex
	items map[deviceKey]*ReadOnlyDevice
}

type deviceKey struct{ userID, deviceID string }

func newDeviceCache() *deviceCache {
	return &deviceCache{items: make(map[deviceKey]*ReadOnlyDevice)}
}

func (c *deviceCache) get(userID, deviceID string) (*ReadOnlyDevice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.items[deviceKey{userID, deviceID}]
	return d, ok
}

func (c *deviceCache) set(d *ReadOnlyDevice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[deviceKey{d.UserID, d.DeviceID}] = d
}

func (c *deviceCache) delete(userID, deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, deviceKey{userID, deviceID})
}

// userSet is a small concurrent string set used for the tracked-users and
// users-for-key-query sets (I5: the latter is always a subset).
type userSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newUserSet() *userSet {
	return &userSet{ids: make(map[string]struct{})}
}

func (s *userSet) add(id string) (added bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *userSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *userSet) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *userSet) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

func (s *userSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// accountInfoSlot is the single-cell, read-write-locked holder for the
// currently loaded AccountInfo.
type accountInfoSlot struct {
	mu   sync.RWMutex
	info *AccountInfo
}

func (a *accountInfoSlot) get() (*AccountInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.info, a.info != nil
}

func (a *accountInfoSlot) set(info AccountInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.info = &info
}
