// Package assets handles asset path resolution, byte loading and caching.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Type tags what kind of data a resource holds.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeAudio
	TypeModel
	TypeImage
	TypeMaterial
)

func (t Type) String() string {
	switch t {
	case TypeAudio:
		return "audio"
	case TypeModel:
		return "model"
	case TypeImage:
		return "image"
	case TypeMaterial:
		return "material"
	default:
		return "unknown"
	}
}

// Resource is a loaded asset.
type Resource interface {
	Type() Type
	Path() string
}

// Manager loads files relative to an asset root.
type Manager struct {
	root  string
	cache *Cache
}

// NewManager creates a manager rooted at root.
func NewManager(root string) *Manager {
	if root == "" {
		root = "."
	}
	return &Manager{
		root:  root,
		cache: NewCache(),
	}
}

// Root returns the asset root directory.
func (m *Manager) Root() string { return m.root }

// Resolve maps an asset path to a filesystem path. Absolute paths are
// returned unchanged.
func (m *Manager) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(m.root, filepath.FromSlash(path))
}

// Exists reports whether the asset is present on disk.
func (m *Manager) Exists(path string) bool {
	_, err := os.Stat(m.Resolve(path))
	return err == nil
}

// Load reads a file, serving repeated reads from the cache.
func (m *Manager) Load(path string) ([]byte, error) {
	full := m.Resolve(path)
	if data, ok := m.cache.Get(full); ok {
		return data, nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("loading asset %s: %w", path, err)
	}
	m.cache.Set(full, data)
	return data, nil
}

// Invalidate drops a cached file so the next Load reads it again.
func (m *Manager) Invalidate(path string) {
	m.cache.Delete(m.Resolve(path))
}

// Close drops all cached data.
func (m *Manager) Close() {
	m.cache.Clear()
}

// Cache is a simple in-memory cache for loaded assets.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Delete removes one item.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
