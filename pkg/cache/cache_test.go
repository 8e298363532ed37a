package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache() (*Cache[string, int], *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 7, 16, 12, 0, 0, 0, time.UTC)}
	return New[string, int](WithClock(clk.Now)), clk
}

func TestGetMissingKey(t *testing.T) {
	c, _ := newTestCache()

	v, fresh, ok := c.Get("runway")
	assert.False(t, ok)
	assert.False(t, fresh)
	assert.Zero(t, v)
	assert.True(t, c.IsExpired("runway"))
}

func TestFreshnessFollowsTTL(t *testing.T) {
	c, clk := newTestCache()
	c.Put("flights", 3, 30*time.Second)

	v, fresh, ok := c.Get("flights")
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, 3, v)

	clk.Advance(29 * time.Second)
	_, fresh, _ = c.Get("flights")
	assert.True(t, fresh, "entry should still be fresh before TTL")

	clk.Advance(time.Second)
	_, fresh, ok = c.Get("flights")
	assert.True(t, ok)
	assert.False(t, fresh, "entry should be stale exactly at FetchedAt+TTL")
	assert.True(t, c.IsExpired("flights"))
}

func TestStaleEntryIsNeverDiscarded(t *testing.T) {
	c, clk := newTestCache()
	c.Put("weather", 7, time.Minute)

	clk.Advance(24 * time.Hour)

	v, fresh, ok := c.Get("weather")
	require.True(t, ok, "stale entries must stay readable")
	assert.False(t, fresh)
	assert.Equal(t, 7, v)
}

func TestPutReplacesEntry(t *testing.T) {
	c, clk := newTestCache()
	c.Put("k", 1, time.Minute)
	clk.Advance(2 * time.Minute)
	c.Put("k", 2, time.Minute)

	e, ok := c.Entry("k")
	require.True(t, ok)
	assert.Equal(t, 2, e.Value)
	assert.Equal(t, clk.Now(), e.FetchedAt)
	assert.True(t, e.FreshAt(clk.Now()))
}

func TestPutAtIgnoresOlderWrite(t *testing.T) {
	c, clk := newTestCache()
	start := clk.Now()

	require.True(t, c.PutAt("k", 2, time.Minute, start.Add(10*time.Second)))

	// A fetch that started earlier but completed later must not win.
	assert.False(t, c.PutAt("k", 1, time.Minute, start))

	v, _, _ := c.Get("k")
	assert.Equal(t, 2, v)

	// Equal timestamps replace.
	assert.True(t, c.PutAt("k", 3, time.Minute, start.Add(10*time.Second)))
	v, _, _ = c.Get("k")
	assert.Equal(t, 3, v)
}

func TestNeverAbsentAfterSuccess(t *testing.T) {
	// Interleave successful writes with "failed" refreshes that do not write;
	// once the first success happened, Get must always report ok.
	c, clk := newTestCache()
	outcomes := []bool{false, false, true, false, false, true, false, false, false}

	seenSuccess := false
	for i, success := range outcomes {
		if success {
			c.Put("k", i, 10*time.Second)
			seenSuccess = true
		}
		clk.Advance(time.Minute)

		_, _, ok := c.Get("k")
		assert.Equal(t, seenSuccess, ok, "iteration %d", i)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, []int]()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Put(i%4, []int{w, i}, time.Second)
				if v, _, ok := c.Get(i % 4); ok {
					assert.Len(t, v, 2)
				}
			}
		}(w)
	}
	wg.Wait()
	for k := 0; k < 4; k++ {
		e, ok := c.Entry(k)
		require.True(t, ok)
		assert.Len(t, e.Value, 2)
	}
	_, ok := c.Entry(4)
	assert.False(t, ok)
}
