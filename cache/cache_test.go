// ABOUTME: Tests for the TTL cache
// ABOUTME: Covers expiry, clearing, sweeping, and one-shot Take semantics

package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New(1 * time.Second)
	defer c.Close()

	c.Set("key1", "value1")

	val, found := c.Get("key1")
	if !found {
		t.Error("Expected to find key1")
	}
	if val != "value1" {
		t.Errorf("Expected value1, got %v", val)
	}
}

func TestCache_Expiration(t *testing.T) {
	c := New(50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")

	if _, found := c.Get("key1"); !found {
		t.Error("Expected to find key1 immediately")
	}

	time.Sleep(80 * time.Millisecond)

	if _, found := c.Get("key1"); found {
		t.Error("Expected key1 to be expired")
	}
}

func TestCache_Clear(t *testing.T) {
	c := New(1 * time.Second)
	defer c.Close()

	c.Set("key1", "value1")
	c.Clear("key1")

	if _, found := c.Get("key1"); found {
		t.Error("Expected key1 to be cleared")
	}
}

func TestCache_TakeIsOneShot(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("refresh:abc", "user-1")

	val, ok := c.Take("refresh:abc")
	if !ok || val != "user-1" {
		t.Fatalf("Take() = %v, %v; want user-1, true", val, ok)
	}
	if _, ok := c.Take("refresh:abc"); ok {
		t.Error("Second Take() should miss")
	}
	if _, ok := c.Get("refresh:abc"); ok {
		t.Error("Get() after Take() should miss")
	}
}

func TestCache_TakeExpired(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.SetWithTTL("refresh:old", "user-1", -time.Second)
	if _, ok := c.Take("refresh:old"); ok {
		t.Error("Take() should not return an expired entry")
	}
}

func TestCache_TakeConcurrent(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()
	c.Set("refresh:race", "user-1")

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Take("refresh:race"); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Take() succeeded %d times, want exactly 1", wins)
	}
}

func TestCache_Sweep(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.SetWithTTL("a:1", 1, -time.Second)
	c.SetWithTTL("a:2", 2, time.Minute)
	c.sweep(time.Now())

	if _, ok := c.store.Load("a:1"); ok {
		t.Error("sweep should remove expired entries")
	}
	if _, ok := c.store.Load("a:2"); !ok {
		t.Error("sweep should keep live entries")
	}
}

func TestKeyPrefix(t *testing.T) {
	if got := keyPrefix("refresh:secret-token"); got != "refresh" {
		t.Errorf("keyPrefix() = %q, want refresh", got)
	}
	if got := keyPrefix("no-colon"); got != "-" {
		t.Errorf("keyPrefix() = %q, want -", got)
	}
}
