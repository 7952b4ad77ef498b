// Package tokencache holds the serialized credential state of one browser session.
//
// Cache satisfies the identity library's cache.ExportReplace contract: the library
// reads the blob through Replace before a token lookup and writes it through Export
// after acquiring or refreshing tokens. Cache only records the bytes and whether they
// differ from what was loaded, so the caller knows when the session must be rewritten.
package tokencache

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
)

type Cache struct {
	mu      sync.Mutex
	data    []byte
	changed bool
}

var _ cache.ExportReplace = (*Cache)(nil)

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Deserialize builds a cache from a blob previously produced by Serialize.
// A nil or empty blob yields an empty cache.
func Deserialize(blob []byte) *Cache {
	return &Cache{data: bytes.Clone(blob)}
}

// Serialize returns a copy of the current blob.
func (c *Cache) Serialize() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.data)
}

// HasChanged reports whether Export stored different bytes since the cache was loaded.
func (c *Cache) HasChanged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// IsEmpty reports whether the cache holds no credential state.
func (c *Cache) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data) == 0
}

// Replace loads the stored blob into the library's in-memory cache.
func (c *Cache) Replace(ctx context.Context, u cache.Unmarshaler, _ cache.ReplaceHints) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	data := bytes.Clone(c.data)
	c.mu.Unlock()

	if len(data) == 0 {
		return nil
	}
	if err := u.Unmarshal(data); err != nil {
		return fmt.Errorf("tokencache: unmarshal: %w", err)
	}
	return nil
}

// Export stores the library's in-memory cache.
func (c *Cache) Export(ctx context.Context, m cache.Marshaler, _ cache.ExportHints) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("tokencache: marshal: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !bytes.Equal(data, c.data) {
		c.data = data
		c.changed = true
	}
	return nil
}
