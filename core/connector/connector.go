// Package connector implements C6: it maps a request's target origin to
// a PoolConfig and then to a live Pool, owns the optional proxy and TLS
// settings, and opens raw connections on the Pool's behalf (§4.2, §4.3).
// Draining on Shutdown is handed to a worker pool adapted from the
// teacher's internal/pools.WorkerPool so idle connections across many
// origins close concurrently instead of one at a time.
package connector

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/searchktools/fastclient/core/conn"
	"github.com/searchktools/fastclient/core/dns"
	"github.com/searchktools/fastclient/core/pool"
	"github.com/searchktools/fastclient/core/timeout"
	"github.com/searchktools/fastclient/internal/pools"
	"github.com/searchktools/fastclient/internal/urlutil"
)

// Options configures a Connector (§4.2, §4.3, §6).
type Options struct {
	Resolver     dns.Resolver
	PoolConfigs  []PoolConfigEntry
	DefaultPool  pool.Config
	Proxy        *ProxyConfig
	HTTP2Enabled bool
	VerifySSL    bool
	Timeouts     timeout.Policy

	// DNSFamily restricts resolution to "ip4" or "ip6"; "" (or "ip")
	// resolves dual-stack (§4.1 "resolve(host, family)").
	DNSFamily string
}

// Connector owns every (ConnectionKey -> Pool) and opens new connections
// lazily on a Pool's behalf.
type Connector struct {
	opts     Options
	poolCfgs *poolConfigResolver
	dialer   *net.Dialer
	drainer  *pools.WorkerPool

	mu    sync.Mutex
	pools map[string]pool.Pool
}

// New builds a Connector from opts.
func New(opts Options) *Connector {
	if opts.Resolver == nil {
		opts.Resolver = dns.NewCachingResolver(dns.NewSystemResolver(), 512, 60*time.Second)
	}
	return &Connector{
		opts:     opts,
		poolCfgs: newPoolConfigResolver(opts.PoolConfigs, opts.DefaultPool),
		dialer:   &net.Dialer{},
		drainer:  pools.NewWorkerPool(4),
		pools:    make(map[string]pool.Pool),
	}
}

// poolFor returns (creating if needed) the Pool for rawURL's origin.
func (c *Connector) poolFor(rawURL string, origin urlutil.Origin) pool.Pool {
	key := origin.PoolScheme() + "://" + origin.Host + ":" + origin.Port

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pools[key]; ok {
		return p
	}
	cfg := c.poolCfgs.Resolve(rawURL)
	p := pool.New(key, cfg)
	c.pools[key] = p
	return p
}

// Acquire resolves rawURL's pool and returns a leased Connection for it,
// opening a new one if no idle connection can be reused (§4.2 Acquire).
func (c *Connector) Acquire(ctx context.Context, rawURL string) (*conn.Connection, pool.Pool, error) {
	_, origin, err := urlutil.ParseURL(rawURL)
	if err != nil {
		return nil, nil, err
	}

	p := c.poolFor(rawURL, origin)

	acquireCtx, cancel := c.opts.Timeouts.WithPoolAcquire(ctx)
	defer cancel()

	connection, err := p.Acquire(acquireCtx, func(dialCtx context.Context) (*conn.Connection, error) {
		return c.open(dialCtx, rawURL, origin)
	})
	if err != nil {
		return nil, nil, err
	}
	return connection, p, nil
}

// open performs §4.3's Connection Open sequence: resolve, connect within
// sock_connect, optionally tunnel through a proxy, optionally wrap in TLS.
func (c *Connector) open(ctx context.Context, rawURL string, origin urlutil.Origin) (*conn.Connection, error) {
	key := origin.PoolScheme() + "://" + origin.Host + ":" + origin.Port

	var raw net.Conn
	var err error

	needsTunnel := c.opts.Proxy != nil && origin.IsSecure()
	directViaProxy := c.opts.Proxy != nil && !origin.IsSecure()

	connectCtx, cancel := c.opts.Timeouts.WithConnect(ctx)
	defer cancel()

	switch {
	case needsTunnel:
		raw, err = connectTunnel(connectCtx, c.dialer, c.opts.Proxy, net.JoinHostPort(origin.Host, origin.Port))
	case directViaProxy:
		raw, err = c.dialer.DialContext(connectCtx, "tcp", c.opts.Proxy.Addr)
	default:
		raw, err = c.dialAny(connectCtx, origin)
	}
	if err != nil {
		return nil, fmt.Errorf("connect failed for %s: %w", rawURL, err)
	}

	if origin.IsSecure() && !directViaProxy {
		tc, terr := tlsUpgrade(connectCtx, raw, origin.Host, c.opts.HTTP2Enabled, c.opts.VerifySSL)
		if terr != nil {
			raw.Close()
			return nil, terr
		}
		raw = tc
	}

	connection := conn.New(key, raw, true)
	if tc, ok := raw.(*tls.Conn); ok && tc.ConnectionState().NegotiatedProtocol == "h2" {
		connection.Protocol = "h2"
	}
	return connection, nil
}

// dialAny resolves origin.Host and tries each address in order, matching
// §4.3 step 2 ("trying addresses in order; on all failures, ConnectFailed").
func (c *Connector) dialAny(ctx context.Context, origin urlutil.Origin) (net.Conn, error) {
	addrs, err := c.opts.Resolver.Resolve(ctx, origin.Host, c.opts.DNSFamily)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, ip := range addrs {
		conn, err := c.dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip.String(), origin.Port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all %d addresses failed for %s: %w", len(addrs), origin.Host, lastErr)
}

// Release returns connection to the pool it was leased from.
func (c *Connector) Release(p pool.Pool, connection *conn.Connection) {
	p.Release(connection)
}

// Drop closes connection and frees its pool slot without attempting
// reuse, used when a caller detaches a connection for WS/SSE (§4.6).
func (c *Connector) Drop(p pool.Pool, connection *conn.Connection) {
	p.Drop(connection)
}

// Shutdown drains every existing pool concurrently via the adapted worker
// pool, then closes that worker pool (§4.2 Shutdown).
func (c *Connector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	targets := make([]pool.Pool, 0, len(c.pools))
	for _, p := range c.pools {
		targets = append(targets, p)
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for i, p := range targets {
		i, p := i, p
		wg.Add(1)
		c.drainer.Submit(func() {
			defer wg.Done()
			errs[i] = p.Shutdown(ctx)
		})
	}
	wg.Wait()
	c.drainer.Close()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a snapshot of every pool's occupancy, keyed by pool key.
func (c *Connector) Stats() map[string]pool.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]pool.Stats, len(c.pools))
	for key, p := range c.pools {
		out[key] = p.Stats()
	}
	return out
}
