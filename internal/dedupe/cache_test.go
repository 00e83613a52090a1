// ABOUTME: Tests for the inbound event ID cache used by the Matrix bridge
// ABOUTME: Validates expiry, size bounds, pruning order, and concurrent check-and-mark

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, ttl time.Duration, maxSize int) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := newCache(ttl, maxSize, clock.Now)
	t.Cleanup(c.Close)
	return c, clock
}

func TestCache_Seen_FirstTimeIsNew(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	assert.False(t, c.Seen("$event1"))
	assert.True(t, c.Seen("$event1"))
	assert.False(t, c.Seen("$event2"))
	assert.Equal(t, 2, c.Len())
}

func TestCache_Seen_Expires(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	assert.False(t, c.Seen("$event1"))
	clock.Advance(59 * time.Second)
	assert.True(t, c.Seen("$event1"))

	clock.Advance(2 * time.Second)
	assert.False(t, c.Seen("$event1"), "expired id is new again")
	assert.True(t, c.Seen("$event1"))
}

func TestCache_Seen_EvictsOldestWhenFull(t *testing.T) {
	c, _ := newTestCache(t, time.Hour, 3)

	c.Seen("a")
	c.Seen("b")
	c.Seen("c")
	c.Seen("d")

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Seen("a"), "oldest id was evicted")
	assert.True(t, c.Seen("d"))
}

func TestCache_Prune(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.Seen("old-1")
	c.Seen("old-2")
	clock.Advance(45 * time.Second)
	c.Seen("young")
	clock.Advance(30 * time.Second)

	removed := c.Prune(clock.Now())
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Seen("young"))
}

func TestCache_Concurrent_SingleWinner(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 100)

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.Seen("$same") {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load())
}

func TestCache_Concurrent_ManyIDs(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Seen(fmt.Sprintf("$event-%d", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, c.Len())
}

func TestCache_Close_Idempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}
