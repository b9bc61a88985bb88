package embedding

import (
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get(PoolingCLS, "a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set(PoolingCLS, "a", []float32{1, 2, 3})
	v, ok := c.Get(PoolingCLS, "a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	if _, ok := c.Get(PoolingMean, "a"); ok {
		t.Error("pooling strategies must not share entries")
	}
	c.Set(PoolingCLS, "b", []float32{4, 5})
	c.Get(PoolingCLS, "a") // a is now most recent
	c.Set(PoolingCLS, "c", []float32{6}) // evicts b
	if _, ok := c.Get(PoolingCLS, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get(PoolingCLS, "a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestEmbeddingCache_returnsCopies(t *testing.T) {
	c := NewEmbeddingCache(1)
	src := []float32{1, 2}
	c.Set(PoolingCLS, "a", src)
	src[0] = 9
	v, _ := c.Get(PoolingCLS, "a")
	if v[0] != 1 {
		t.Errorf("cache aliased caller slice: %v", v)
	}
	v[1] = 9
	again, _ := c.Get(PoolingCLS, "a")
	if again[1] != 2 {
		t.Errorf("cache aliased returned slice: %v", again)
	}
}

func TestEmbeddingCache_nilDisabled(t *testing.T) {
	c := NewEmbeddingCache(0)
	if c != nil {
		t.Fatal("capacity 0 should disable the cache")
	}
	c.Set(PoolingCLS, "a", []float32{1})
	if _, ok := c.Get(PoolingCLS, "a"); ok {
		t.Error("nil cache should never hit")
	}
	if c.Len() != 0 {
		t.Error("nil cache should be empty")
	}
}
