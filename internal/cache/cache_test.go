package cache

import (
	"testing"

	"appforge/internal/tester"
)

func TestKeyIdentity(t *testing.T) {
	a := Key("anthropic", "m1", "sys", "prompt", false)
	b := Key("anthropic", "m1", "sys", "prompt", false)
	tester.Eq(t, a, b)
}

func TestKeyDiscriminates(t *testing.T) {
	base := Key("anthropic", "m1", "sys", "prompt", false)
	tester.True(t, base != Key("openai", "m1", "sys", "prompt", false), "provider must affect the key")
	tester.True(t, base != Key("anthropic", "m2", "sys", "prompt", false), "model must affect the key")
	tester.True(t, base != Key("anthropic", "m1", "sys2", "prompt", false), "system must affect the key")
	tester.True(t, base != Key("anthropic", "m1", "sys", "prompt2", false), "prompt must affect the key")
	tester.True(t, base != Key("anthropic", "m1", "sys", "prompt", true), "maximize must affect the key")
	// Field boundaries must not blur.
	tester.True(t, Key("a", "bc", "", "", false) != Key("ab", "c", "", "", false))
}

func TestCacheRoundTrip(t *testing.T) {
	c, err := New(4)
	tester.NoErr(t, err)

	key := Key("anthropic", "m1", "sys", "prompt", false)
	if _, ok := c.Get(key); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	c.Put(key, Response{Text: "hello", Provider: "anthropic"})
	got, ok := c.Get(key)
	tester.True(t, ok)
	tester.Eq(t, got.Text, "hello")
	tester.Eq(t, c.Len(), 1)
}

func TestCacheEvictsOldest(t *testing.T) {
	c, err := New(2)
	tester.NoErr(t, err)

	c.Put("k1", Response{Text: "1"})
	c.Put("k2", Response{Text: "2"})
	c.Put("k3", Response{Text: "3"})

	_, ok := c.Get("k1")
	tester.False(t, ok, "oldest entry must be evicted")
	_, ok = c.Get("k3")
	tester.True(t, ok)
	tester.Eq(t, c.Len(), 2)
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	c.Put("k", Response{Text: "x"})
	_, ok := c.Get("k")
	tester.False(t, ok)
	tester.Eq(t, c.Len(), 0)
}
