package dashboard

// Cache stores rendered element details keyed by element.
// It is not safe for concurrent use; callers must confine access to a
// single goroutine (e.g., the Bubble Tea update loop).
type Cache struct {
	entries map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

func cacheKey(kind ListKind, id string) string {
	return kind.String() + "/" + id
}

// Get returns the cached detail, or "" and false on miss.
func (c *Cache) Get(kind ListKind, id string) (string, bool) {
	d, ok := c.entries[cacheKey(kind, id)]
	return d, ok
}

// Set stores a detail, replacing any existing entry.
func (c *Cache) Set(kind ListKind, id, detail string) {
	c.entries[cacheKey(kind, id)] = detail
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return len(c.entries) }

// Invalidate clears all cached entries.
func (c *Cache) Invalidate() {
	c.entries = make(map[string]string)
}
