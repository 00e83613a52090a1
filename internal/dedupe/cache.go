// ABOUTME: TTL and size bounded set of recently handled inbound event IDs
// ABOUTME: The Matrix bridge consults it so redelivered events are answered once

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// pruneInterval is how often expired IDs are dropped in the background.
const pruneInterval = time.Minute

type entry struct {
	id     string
	seenAt time.Time
}

// Cache is a concurrency-safe set of event IDs with expiry.
// IDs are kept in a list in the order they were first seen so the oldest one
// can be dropped in O(1) when the cache is full.
type Cache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // front is oldest
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a cache and starts its background pruning.
func New(ttl time.Duration, maxSize int) *Cache {
	return newCache(ttl, maxSize, time.Now)
}

func newCache(ttl time.Duration, maxSize int, now func() time.Time) *Cache {
	c := &Cache{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
	go c.pruneLoop()
	return c
}

// Seen reports whether id was already seen within the TTL. An unseen or
// expired id is recorded in the same critical section, so two concurrent
// callers with the same id never both get false.
func (c *Cache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.index[id]; ok {
		e := elem.Value.(*entry)
		if now.Sub(e.seenAt) < c.ttl {
			return true
		}
		// Expired: record it again as fresh
		c.order.Remove(elem)
		delete(c.index, id)
	}

	for c.maxSize > 0 && len(c.index) >= c.maxSize {
		c.dropOldest()
	}

	c.index[id] = c.order.PushBack(&entry{id: id, seenAt: now})
	return false
}

// Len returns the number of remembered IDs, expired ones included until pruned.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Prune drops every ID older than the TTL relative to now.
func (c *Cache) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		e := elem.Value.(*entry)
		if now.Sub(e.seenAt) < c.ttl {
			// Insertion order is time order; the rest are younger.
			break
		}
		next := elem.Next()
		c.order.Remove(elem)
		delete(c.index, e.id)
		removed++
		elem = next
	}
	return removed
}

// dropOldest removes the front of the list. Must be called with mu held.
func (c *Cache) dropOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.order.Remove(front)
	delete(c.index, front.Value.(*entry).id)
}

func (c *Cache) pruneLoop() {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Prune(c.now())
		case <-c.done:
			return
		}
	}
}

// Close stops background pruning. It is safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.done) })
}
