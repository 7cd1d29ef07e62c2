package bot

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
)

// ProjectHashCache maps short hashes to encoded project ids. Telegram
// caps callback payloads at 64 bytes, well under a typical encoded
// project path, so picker buttons carry an 8-char hash instead and the
// cache resolves it back on callback. Process lifetime only: a hash
// from a previous run resolves to nothing and the user is asked to
// reopen the picker.
type ProjectHashCache struct {
	mu  sync.Mutex
	ids map[string]string
}

// NewProjectHashCache creates an empty cache.
func NewProjectHashCache() *ProjectHashCache {
	return &ProjectHashCache{ids: make(map[string]string)}
}

// Put registers an encoded project id and returns its short hash.
func (c *ProjectHashCache) Put(encodedID string) string {
	sum := md5.Sum([]byte(encodedID))
	h := hex.EncodeToString(sum[:])[:8]
	c.mu.Lock()
	c.ids[h] = encodedID
	c.mu.Unlock()
	return h
}

// Get resolves a short hash back to its encoded project id.
func (c *ProjectHashCache) Get(hash string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[hash]
	return id, ok
}
