package cryptostore

// groupSessionCache bounds the in-memory inbound-group-session cache using
// S3-FIFO (Yang et al., 2023) — two FIFO queues plus a bounded ghost set —
// adapted from the teacher's PII token cache. The key difference from that
// cache: evicting an entry here only drops it from memory. Inbound group
// sessions are never deleted from the backing store by this cache, only by
// an explicit repository call, so an eviction must not reach for the
// database the way the teacher's evictFromS/evictFromM did.
//
// # Sizing
//
//	sTarget  = max(1, capacity/10)
//	mTarget  = capacity − sTarget
//	ghostCap = 2 × sTarget (min 4)
import (
	"container/list"
	"sync"

	"matrix-cryptostore/internal/metrics"
)

type groupSessionEntry struct {
	value *InboundGroupSession
	freq  uint8
	elem  *list.Element
	inM   bool
}

type groupSessionCache struct {
	mu sync.Mutex

	metrics  *metrics.Metrics
	capacity int
	sTarget  int
	ghostCap int

	entries map[string]*groupSessionEntry
	sQueue  *list.List
	mQueue  *list.List

	ghostBuf   []string
	ghostSet   map[string]struct{}
	ghostHead  int
	ghostCount int
}

func newGroupSessionCache(capacity int, m *metrics.Metrics) *groupSessionCache {
	if capacity < 2 {
		capacity = 2
	}
	sTarget := capacity / 10
	if sTarget < 1 {
		sTarget = 1
	}
	ghostCap := 2 * sTarget
	if ghostCap < 4 {
		ghostCap = 4
	}
	return &groupSessionCache{
		metrics:  m,
		capacity: capacity,
		sTarget:  sTarget,
		ghostCap: ghostCap,
		entries:  make(map[string]*groupSessionEntry, capacity),
		sQueue:   list.New(),
		mQueue:   list.New(),
		ghostBuf: make([]string, ghostCap),
		ghostSet: make(map[string]struct{}, ghostCap),
	}
}

// Get returns the cached session for key, bumping its frequency counter on
// hit. A miss here is never authoritative; callers fall back to the
// database.
func (c *groupSessionCache) Get(key string) (*InboundGroupSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.freq < 3 {
		e.freq++
	}
	return e.value, true
}

// Set inserts or updates key's cached value without changing its queue
// position if already resident.
func (c *groupSessionCache) Set(key string, value *InboundGroupSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		return
	}

	inM := c.ghostContains(key)
	var elem *list.Element
	if inM {
		elem = c.mQueue.PushBack(key)
	} else {
		elem = c.sQueue.PushBack(key)
	}
	c.entries[key] = &groupSessionEntry{value: value, elem: elem, inM: inM}

	for c.sQueue.Len()+c.mQueue.Len() > c.capacity {
		c.evictOne()
	}
}

// All returns every value currently cached. It covers only the resident
// working set; the backup accounting helpers scan the database instead.
func (c *groupSessionCache) All() []*InboundGroupSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*InboundGroupSession, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.value)
	}
	return out
}

func (c *groupSessionCache) evictOne() {
	if c.sQueue.Len() > 0 {
		c.evictFromS()
		return
	}
	c.evictFromM()
}

func (c *groupSessionCache) evictFromS() {
	front := c.sQueue.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.sQueue.Remove(front)

	e, ok := c.entries[key]
	if !ok {
		return
	}

	if e.freq > 0 {
		e.freq = 0
		e.inM = true
		e.elem = c.mQueue.PushBack(key)
		mTarget := c.capacity - c.sTarget
		if c.mQueue.Len() > mTarget {
			c.evictFromM()
		}
	} else {
		delete(c.entries, key)
		c.ghostAdd(key)
		c.metrics.GroupSessionEvictions.Add(1)
	}
}

func (c *groupSessionCache) evictFromM() {
	front := c.mQueue.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.mQueue.Remove(front)
	delete(c.entries, key)
	c.metrics.GroupSessionEvictions.Add(1)
}

func (c *groupSessionCache) ghostContains(key string) bool {
	_, ok := c.ghostSet[key]
	return ok
}

func (c *groupSessionCache) ghostAdd(key string) {
	if _, exists := c.ghostSet[key]; exists {
		return
	}
	if c.ghostCount == c.ghostCap {
		oldest := c.ghostBuf[c.ghostHead]
		delete(c.ghostSet, oldest)
		c.ghostHead = (c.ghostHead + 1) % c.ghostCap
		c.ghostCount--
	}
	writeIdx := (c.ghostHead + c.ghostCount) % c.ghostCap
	c.ghostBuf[writeIdx] = key
	c.ghostSet[key] = struct{}{}
	c.ghostCount++
}
