package hook

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStableKey_IgnoresKeyOrder(t *testing.T) {
	a, err := StableKeyJSON(json.RawMessage(`{"command": "ls", "opts": {"b": 1, "a": [1, 2]}}`))
	require.NoError(t, err)
	b, err := StableKeyJSON(json.RawMessage(`{"opts": {"a": [1, 2], "b": 1}, "command": "ls"}`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestStableKey_DistinguishesValues(t *testing.T) {
	a, err := StableKey(map[string]any{"command": "ls"})
	require.NoError(t, err)
	b, err := StableKey(map[string]any{"command": "ls -la"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	c, err := StableKeyJSON(json.RawMessage(`{"n": 1.0}`))
	require.NoError(t, err)
	d, err := StableKeyJSON(json.RawMessage(`{"n": 1}`))
	require.NoError(t, err)
	assert.NotEqual(t, c, d)
}

func TestStableKey_MatchesDecodedInput(t *testing.T) {
	raw := json.RawMessage(`{"file_path": "/tmp/<a>&b", "limit": 10}`)
	input, err := DecodeToolInput(raw)
	require.NoError(t, err)

	fromMap, err := StableKey(input)
	require.NoError(t, err)
	fromRaw, err := StableKeyJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, fromRaw, fromMap)
}

func TestStableKey_Errors(t *testing.T) {
	_, err := StableKeyJSON(json.RawMessage(`{`))
	assert.Error(t, err)

	_, err = StableKeyJSON(json.RawMessage(`{"a":1} trailing`))
	assert.ErrorIs(t, err, errTrailingData)

	_, err = StableKey(map[string]any{"f": func() {}})
	assert.Error(t, err)
}

func TestCache_TakeIsOneShot(t *testing.T) {
	c := NewCache(0, 0)

	c.CachePermission("k", true)
	allowed, ok := c.TakePermission("k")
	assert.True(t, ok)
	assert.True(t, allowed)
	_, ok = c.TakePermission("k")
	assert.False(t, ok)

	c.CacheToolUseID("k", "toolu_1")
	id, ok := c.TakeToolUseID("k")
	assert.True(t, ok)
	assert.Equal(t, "toolu_1", id)
	_, ok = c.TakeToolUseID("k")
	assert.False(t, ok)
}

func TestCache_ConcurrentTakeDeliversOnce(t *testing.T) {
	c := NewCache(0, 0)
	c.CacheToolUseID("k", "toolu_1")

	var hits atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.TakeToolUseID("k"); ok {
				hits.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestCache_Expires(t *testing.T) {
	c := NewCache(10, 50*time.Millisecond)
	c.CacheToolUseID("k", "toolu_1")
	c.CachePermission("k", false)

	assert.Eventually(t, func() bool {
		p, ids := c.Len()
		return p == 0 && ids == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := c.TakeToolUseID("k")
	assert.False(t, ok)
}

func TestCache_Bounded(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.CacheToolUseID("a", "1")
	c.CacheToolUseID("b", "2")
	c.CacheToolUseID("c", "3")

	_, ids := c.Len()
	assert.Equal(t, 2, ids)
	_, ok := c.TakeToolUseID("a")
	assert.False(t, ok)
}

func TestCache_Resolve(t *testing.T) {
	c := NewCache(0, 0)
	input := map[string]any{"command": "mkdir x"}

	key, err := StableKey(input)
	require.NoError(t, err)
	c.CacheToolUseID(key, "toolu_9")

	var r Resolver = c
	id, err := r.Resolve(input, true)
	require.NoError(t, err)
	assert.Equal(t, "toolu_9", id)

	allowed, ok := c.TakePermission(key)
	assert.True(t, ok)
	assert.True(t, allowed)

	id, err = r.Resolve(input, false)
	require.NoError(t, err)
	assert.Empty(t, id)
}
