package hook

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 10 * time.Minute
)

// Resolver is the second phase of a deferred decision: the confirmation flow
// reports the user's answer for a tool input and learns which tool call it
// belongs to.
type Resolver interface {
	Resolve(toolInput map[string]any, allowed bool) (toolUseID string, err error)
}

// Cache correlates deferred decisions with their confirmations. Entries are
// keyed by StableKey of the tool input, taken at most once, and expire after
// a TTL so abandoned confirmations do not accumulate.
type Cache struct {
	mu          sync.Mutex // serializes takes
	permissions *expirable.LRU[string, bool]
	toolUseIDs  *expirable.LRU[string, string]
}

// NewCache creates a cache holding at most size entries per map, each living
// for ttl. Non-positive arguments select the defaults.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		permissions: expirable.NewLRU[string, bool](size, nil, ttl),
		toolUseIDs:  expirable.NewLRU[string, string](size, nil, ttl),
	}
}

// CachePermission records the outcome of a confirmation.
func (c *Cache) CachePermission(key string, allowed bool) {
	c.permissions.Add(key, allowed)
}

// TakePermission returns and removes a recorded outcome.
func (c *Cache) TakePermission(key string) (allowed, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	allowed, ok = c.permissions.Get(key)
	if ok {
		c.permissions.Remove(key)
	}
	return allowed, ok
}

// CacheToolUseID records the tool call a deferred decision belongs to.
func (c *Cache) CacheToolUseID(key, toolUseID string) {
	c.toolUseIDs.Add(key, toolUseID)
}

// TakeToolUseID returns and removes a recorded tool call id.
func (c *Cache) TakeToolUseID(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.toolUseIDs.Get(key)
	if ok {
		c.toolUseIDs.Remove(key)
	}
	return id, ok
}

// Len returns the number of live entries in both maps.
func (c *Cache) Len() (permissions, toolUseIDs int) {
	return c.permissions.Len(), c.toolUseIDs.Len()
}

// Resolve records the outcome for toolInput and returns the tool call id
// stored when the decision was deferred, if any.
func (c *Cache) Resolve(toolInput map[string]any, allowed bool) (string, error) {
	key, err := StableKey(toolInput)
	if err != nil {
		return "", err
	}
	c.CachePermission(key, allowed)
	id, _ := c.TakeToolUseID(key)
	return id, nil
}

// StableKey returns the hex SHA-256 of the canonical JSON form of v. Object
// keys are sorted at every level, so key order in the original document does
// not matter.
func StableKey(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode tool input: %w", err)
	}
	sum := sha256.Sum256(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return hex.EncodeToString(sum[:]), nil
}

// StableKeyJSON decodes raw, keeping numbers as written, and returns its
// StableKey.
func StableKeyJSON(raw json.RawMessage) (string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("decode tool input: %w", err)
	}
	if err := ensureEOF(dec); err != nil {
		return "", err
	}
	return StableKey(v)
}
