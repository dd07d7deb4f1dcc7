package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGetDelete(t *testing.T) {
	c := New(Options{})
	defer c.Close()

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestCache_Expiration(t *testing.T) {
	c := New(Options{DefaultExpiration: 20 * time.Millisecond})
	defer c.Close()

	c.Set("a", "x")
	time.Sleep(40 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.False(t, c.Touch("a"))

	var evicted []string
	c.SetOnEvicted(func(k string, _ any) { evicted = append(evicted, k) })
	c.DeleteExpired()
	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, 0, c.Count())
}

func TestCache_EvictsOldestWhenFull(t *testing.T) {
	c := New(Options{MaxItems: 2})
	defer c.Close()

	c.Set("first", 1)
	time.Sleep(time.Millisecond)
	c.Set("second", 2)
	time.Sleep(time.Millisecond)
	c.Touch("first")
	c.Set("third", 3)

	_, ok := c.Get("second")
	assert.False(t, ok)
	_, ok = c.Get("first")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Count())
}
