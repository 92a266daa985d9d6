package dns

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

type countingResolver struct {
	calls atomic.Int32
	addrs []net.IP
	err   error
}

func (c *countingResolver) Resolve(ctx context.Context, host, family string) ([]net.IP, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.addrs, nil
}

func TestCachingResolverCachesHit(t *testing.T) {
	base := &countingResolver{addrs: []net.IP{net.ParseIP("10.0.0.1")}}
	r := NewCachingResolver(base, 16, time.Minute)

	for i := 0; i < 5; i++ {
		addrs, err := r.Resolve(context.Background(), "example.com", "ip")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if len(addrs) != 1 || !addrs[0].Equal(net.ParseIP("10.0.0.1")) {
			t.Fatalf("unexpected addrs: %v", addrs)
		}
	}
	if got := base.calls.Load(); got != 1 {
		t.Errorf("expected 1 underlying resolve call, got %d", got)
	}
}

func TestCachingResolverKeysByFamily(t *testing.T) {
	base := &countingResolver{addrs: []net.IP{net.ParseIP("10.0.0.1")}}
	r := NewCachingResolver(base, 16, time.Minute)

	if _, err := r.Resolve(context.Background(), "example.com", "ip4"); err != nil {
		t.Fatalf("Resolve ip4: %v", err)
	}
	if _, err := r.Resolve(context.Background(), "example.com", "ip6"); err != nil {
		t.Fatalf("Resolve ip6: %v", err)
	}
	if got := base.calls.Load(); got != 2 {
		t.Errorf("expected distinct families to miss the cache independently, got %d underlying calls", got)
	}
}

func TestCachingResolverBypassesIPLiteral(t *testing.T) {
	base := &countingResolver{}
	r := NewCachingResolver(base, 16, time.Minute)

	addrs, err := r.Resolve(context.Background(), "192.168.1.1", "ip")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(addrs) != 1 || addrs[0].String() != "192.168.1.1" {
		t.Fatalf("unexpected addrs: %v", addrs)
	}
	if got := base.calls.Load(); got != 0 {
		t.Errorf("expected IP literal to bypass resolver, got %d calls", got)
	}
}

func TestCachingResolverPropagatesError(t *testing.T) {
	base := &countingResolver{err: errNoSuchHost{}}
	r := NewCachingResolver(base, 16, time.Minute)

	_, err := r.Resolve(context.Background(), "nxdomain.invalid", "ip")
	if err == nil {
		t.Fatal("expected error")
	}
}

type errNoSuchHost struct{}

func (errNoSuchHost) Error() string { return "no such host" }

func TestCacheExpiry(t *testing.T) {
	c := NewCache(16, 10*time.Millisecond)
	c.Set("example.com", "ip", []net.IP{net.ParseIP("10.0.0.1")})
	if _, ok := c.Get("example.com", "ip"); !ok {
		t.Fatal("expected cache hit immediately after set")
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("example.com", "ip"); ok {
		t.Fatal("expected cache entry to have expired")
	}
}

func TestCacheKeysByFamilyIndependently(t *testing.T) {
	c := NewCache(16, time.Minute)
	c.Set("example.com", "ip4", []net.IP{net.ParseIP("10.0.0.1")})
	if _, ok := c.Get("example.com", "ip6"); ok {
		t.Fatal("expected ip6 lookup to miss an ip4-only entry")
	}
	if _, ok := c.Get("example.com", "ip4"); !ok {
		t.Fatal("expected ip4 lookup to hit")
	}
}
