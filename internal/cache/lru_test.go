package cache

import (
	"context"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	if got, ok := c.Get("a"); !ok || got != "1" {
		t.Fatalf("Get(a) = %q, %v", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("unexpected hit")
	}
	c.Set("a", "2")
	if got, _ := c.Get("a"); got != "2" || c.Size() != 1 {
		t.Fatalf("overwrite failed: %q size %d", got, c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("%s should still be cached", k)
		}
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("c", "3")

	clk.t = clk.t.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should be deleted")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("Size() after Purge = %d", c.Size())
	}
	c.Set("c", "3")
	if _, ok := c.Get("c"); !ok {
		t.Fatal("cache unusable after Purge")
	}
}

func TestManager_Sweep(t *testing.T) {
	c, clk := newTestCache(10, time.Second)
	c.Set("a", "1")
	m := NewManager(nil)
	m.Register(c)

	clk.t = clk.t.Add(2 * time.Second)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}

	m.StartCleanup(context.Background(), time.Hour)
	m.Stop()
	m.Stop()
}
