// Package dns implements C3: address resolution with a TTL cache and
// singleflight dedup of concurrent lookups for the same host, grounded on
// the teacher's use of hashicorp/golang-lru for bounded caches
// (core/pools/byte_pool.go's sizing discipline) generalized to an
// expirable cache here.
package dns

import (
	"context"
	"fmt"
	"net"
	"time"

	fastclienterrors "github.com/searchktools/fastclient/errors"
	"golang.org/x/sync/singleflight"
)

// Resolver resolves a hostname to a set of candidate IP addresses for the
// requested address family: "ip4" restricts to A records, "ip6" to AAAA,
// and "ip" (or "") accepts either (§4.1 "resolve(host, family)").
type Resolver interface {
	Resolve(ctx context.Context, host, family string) ([]net.IP, error)
}

// Result is a resolved address set along with a frozen expiry, used only
// by the cache; callers see Resolver.Resolve's return value.
type Result struct {
	Addrs     []net.IP
	ExpiresAt time.Time
}

// SystemResolver resolves via net.Resolver (the platform stub resolver),
// the default net.DefaultResolver unless overridden for tests.
type SystemResolver struct {
	Resolver *net.Resolver
}

// NewSystemResolver returns a resolver backed by net.DefaultResolver.
func NewSystemResolver() *SystemResolver {
	return &SystemResolver{Resolver: net.DefaultResolver}
}

func (s *SystemResolver) Resolve(ctx context.Context, host, family string) ([]net.IP, error) {
	r := s.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	network := normalizeFamily(family)
	addrs, err := r.LookupIP(ctx, network, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses returned for %s", host)
	}
	return addrs, nil
}

// normalizeFamily maps an empty/unrecognized family to "ip" (dual-stack),
// the net.Resolver network argument's own default.
func normalizeFamily(family string) string {
	switch family {
	case "ip4", "ip6":
		return family
	default:
		return "ip"
	}
}

// CachingResolver wraps a Resolver with a TTL cache and singleflight
// collapsing of concurrent identical lookups (§4.1). IP literals bypass
// both the cache and the underlying resolver entirely — callers are
// expected to check this via urlutil before reaching here, but Resolve
// also short-circuits defensively.
type CachingResolver struct {
	next  Resolver
	cache *Cache
	group singleflight.Group
	ttl   time.Duration
}

// NewCachingResolver wraps next with a TTL cache of the given capacity
// and entry lifetime.
func NewCachingResolver(next Resolver, capacity int, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		next:  next,
		cache: NewCache(capacity, ttl),
		ttl:   ttl,
	}
}

func (c *CachingResolver) Resolve(ctx context.Context, host, family string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	family = normalizeFamily(family)

	if addrs, ok := c.cache.Get(host, family); ok {
		return addrs, nil
	}

	groupKey := host + "/" + family
	v, err, _ := c.group.Do(groupKey, func() (interface{}, error) {
		addrs, err := c.next.Resolve(ctx, host, family)
		if err != nil {
			return nil, fastclienterrors.DNSFailed("", "", host, err)
		}
		c.cache.Set(host, family, addrs)
		return addrs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]net.IP), nil
}
