package dns

import (
	"net"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a bounded, TTL-expiring (host,family)->addresses cache backed
// by hashicorp/golang-lru's expirable LRU (the same dependency the
// teacher pulls in for bounded in-memory caches). Keying on family keeps
// A-only and AAAA-only results for the same host from colliding in one
// entry (§4.1 "resolve(host, family)").
type Cache struct {
	lru *expirable.LRU[string, []net.IP]
}

// NewCache builds a cache holding up to capacity entries, each expiring
// ttl after insertion. A zero or negative capacity defaults to 256.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 256
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{lru: expirable.NewLRU[string, []net.IP](capacity, nil, ttl)}
}

func cacheKey(host, family string) string {
	return host + "/" + family
}

// Get returns the cached address set for (host, family), if present and
// unexpired.
func (c *Cache) Get(host, family string) ([]net.IP, bool) {
	return c.lru.Get(cacheKey(host, family))
}

// Set stores addrs for (host, family), resetting its TTL.
func (c *Cache) Set(host, family string, addrs []net.IP) {
	c.lru.Add(cacheKey(host, family), addrs)
}

// Remove evicts every family's entry ("ip", "ip4" and "ip6") for host.
// The connector does not call it; a failed connect leaves cached
// addresses in place until their TTL expires.
func (c *Cache) Remove(host string) {
	c.lru.Remove(cacheKey(host, "ip"))
	c.lru.Remove(cacheKey(host, "ip4"))
	c.lru.Remove(cacheKey(host, "ip6"))
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	return c.lru.Len()
}
