// Package conn implements C4: the pooled connection wrapper. It tracks
// lease bookkeeping (created_at, last_used_at, requests_served) and a
// non-blocking staleness probe used before handing a connection back out
// of a pool, grounded on the teacher's raw net.Conn handling in its
// worker pool and its golang.org/x/sys dependency for syscall-level
// socket inspection.
package conn

import (
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection wraps a pooled net.Conn with the bookkeeping the pool and
// the HTTP/1.1 engine need to decide reuse vs. replacement (§4.3).
type Connection struct {
	ID       string
	Key      string // pool key, e.g. "https://example.com:443"
	netConn  net.Conn
	tlsConn  *tls.Conn
	Protocol string // "http/1.1", negotiated via ALPN when TLS is used

	mu             sync.Mutex
	createdAt      time.Time
	lastUsedAt     time.Time
	requestsServed int64
	keepAlive      bool
	closed         bool
}

// New wraps raw as a pooled Connection keyed by key.
func New(key string, raw net.Conn, keepAlive bool) *Connection {
	now := time.Now()
	c := &Connection{
		ID:        uuid.NewString(),
		Key:       key,
		netConn:   raw,
		keepAlive: keepAlive,
		createdAt: now,
		Protocol:  "http/1.1",
	}
	c.lastUsedAt = now
	if tc, ok := raw.(*tls.Conn); ok {
		c.tlsConn = tc
		if tc.ConnectionState().NegotiatedProtocol == "h2" {
			c.Protocol = "h2"
		}
	}
	return c
}

// Conn returns the underlying net.Conn for read/write.
func (c *Connection) Conn() net.Conn { return c.netConn }

// MarkUsed records a completed request/response cycle, resetting the
// idle clock the pool uses for eviction.
func (c *Connection) MarkUsed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsedAt = time.Now()
	c.requestsServed++
}

// KeepAlive reports whether the connection should be returned to the
// pool instead of closed after the current exchange.
func (c *Connection) KeepAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keepAlive && !c.closed
}

// SetKeepAlive updates the keep-alive flag, e.g. after reading a
// "Connection: close" response header.
func (c *Connection) SetKeepAlive(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keepAlive = v
}

// IdleDuration reports how long the connection has sat unused.
func (c *Connection) IdleDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastUsedAt)
}

// RequestsServed reports the lifetime request count on this connection.
func (c *Connection) RequestsServed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestsServed
}

// Age reports how long the connection has existed.
func (c *Connection) Age() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.createdAt)
}

// Close closes the underlying connection, idempotently.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.netConn.Close()
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// IsStale reports whether the peer appears to have closed or reset the
// connection while it sat idle in the pool, via a one-byte non-blocking
// MSG_PEEK of the socket buffer that consumes no data (§4.3).
// Platform-specific implementations live in peek_unix.go and
// peek_fallback.go.
func (c *Connection) IsStale() bool {
	if c.closed {
		return true
	}
	return peekStale(c.netConn)
}
