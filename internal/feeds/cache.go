package feeds

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Entry is one cached feed snapshot.
type Entry struct {
	Payload  Payload
	StoredAt time.Time
	// Pinned entries were supplied before any dashboard opened and are
	// always served as fresh.
	Pinned bool
}

// Cache is a key→payload store shared by every loader and session. Writes
// are last-write-wins per feed.
type Cache interface {
	Get(kind Kind) (Entry, bool)
	Set(kind Kind, p Payload)
	Preload(kind Kind, p Payload)
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Kind]Entry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[Kind]Entry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(kind Kind) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[kind]
	return e, ok
}

func (c *MemoryCache) Set(kind Kind, p Payload) {
	c.put(kind, p, false)
}

func (c *MemoryCache) Preload(kind Kind, p Payload) {
	c.put(kind, p, true)
}

func (c *MemoryCache) put(kind Kind, p Payload, pinned bool) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[kind] = Entry{Payload: p, StoredAt: c.now(), Pinned: pinned}
}

// PreloadFile pins the document at path as kind's snapshot. The file may be
// plain JSON or a data script assigning global.
func PreloadFile(c Cache, kind Kind, path, global string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read preload file: %w", err)
	}
	p, err := ParseDataScript(src, global)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c.Preload(kind, p)
	return nil
}
