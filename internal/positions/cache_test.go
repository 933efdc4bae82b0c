package positions

import (
	"testing"
	"time"

	"liquidityPortal/internal/model"
)

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(time.Minute)
	set := []model.ValidatedPosition{{RegisteredAt: "2026-01-01T00:00:00Z"}}

	cache.Set("0xabc", set)
	got, ok := cache.Get("0xabc")
	if !ok || len(got) != 1 {
		t.Fatalf("expected cached set, got ok=%v", ok)
	}
}

func TestCacheExpires(t *testing.T) {
	cache := NewCache(10 * time.Millisecond)
	cache.Set("0xabc", nil)

	time.Sleep(20 * time.Millisecond)
	if _, ok := cache.Get("0xabc"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestCacheGetReturnsCopy(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set("0xabc", []model.ValidatedPosition{{RegisteredAt: "2026-01-01T00:00:00Z"}})

	first, ok := cache.Get("0xabc")
	if !ok {
		t.Fatalf("expected cached set")
	}
	first[0].RegisteredAt = "mutated"

	second, _ := cache.Get("0xabc")
	if second[0].RegisteredAt != "2026-01-01T00:00:00Z" {
		t.Fatalf("caller mutation leaked into the cache: %s", second[0].RegisteredAt)
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set("0xabc", nil)
	cache.Set("0xdef", nil)

	cache.Invalidate("")
	if _, ok := cache.Get("0xabc"); ok {
		t.Fatalf("invalidate all should drop every entry")
	}
	if _, ok := cache.Get("0xdef"); ok {
		t.Fatalf("invalidate all should drop every entry")
	}
}

func TestCacheDisabled(t *testing.T) {
	cache := NewCache(0)
	cache.Set("0xabc", []model.ValidatedPosition{{}})
	if _, ok := cache.Get("0xabc"); ok {
		t.Fatalf("zero TTL disables caching")
	}
}
