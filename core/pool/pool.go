// Package pool implements C5: the bounded per-origin connection pool.
// Two variants are provided behind the Pool interface — Smart (LIFO reuse
// of alive idle connections) and Cyclic (fixed-size FIFO ring) — matching
// §4.2's two named strategies. Slot admission is a counting semaphore,
// grounded on the teacher's use of golang.org/x/sync (worker_pool.go)
// for bounded concurrency.
package pool

import (
	"context"
	"time"

	"github.com/searchktools/fastclient/core/conn"
	fastclienterrors "github.com/searchktools/fastclient/errors"
)

// Dialer opens a brand new Connection for key; supplied by the Connector,
// which knows about proxies/TLS (§4.3), keeping Pool ignorant of how
// connections are actually established.
type Dialer func(ctx context.Context) (*conn.Connection, error)

// Pool is the capability interface both variants satisfy (§9: "Pool,
// ProtocolHandler, Resolver are capability interfaces").
type Pool interface {
	// Acquire returns a usable connection for the pool's key, opening one
	// via dial if no idle connection can be reused. It blocks on the
	// slot semaphore up to ctx's deadline.
	Acquire(ctx context.Context, dial Dialer) (*conn.Connection, error)
	// Release returns c to the pool if it's fit for reuse, or closes it
	// and frees its slot otherwise.
	Release(c *conn.Connection)
	// Drop closes c unconditionally and frees its slot; used when a
	// caller detaches a connection (WS/SSE upgrade) or aborts mid-stream.
	Drop(c *conn.Connection)
	// Shutdown closes every idle connection and refuses further Acquire
	// calls; leased connections close on their next Release.
	Shutdown(ctx context.Context) error
	// Stats reports current occupancy for metrics/tests.
	Stats() Stats
}

// Stats reports a pool's instantaneous occupancy, satisfying the
// conservation invariant of §8: idle+leased <= size.
type Stats struct {
	Size            int
	Idle            int
	Leased          int
	ConnsCreated    int64
	RequestsServed  int64
}

// Config resolves per-origin pool behavior (§4.2's PoolConfig, resolved
// by the Connector via longest-URL-prefix match).
type Config struct {
	Size            int
	Variant         Variant
	MaxConnRequests int64         // 0 = unlimited
	MaxIdleTime     time.Duration // 0 = unlimited
}

// Variant selects which Pool implementation a Config builds.
type Variant string

const (
	VariantSmart  Variant = "smart"
	VariantCyclic Variant = "cyclic"
)

// DefaultConfig returns the library default pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:            25,
		Variant:         VariantSmart,
		MaxConnRequests: 0,
		MaxIdleTime:     90 * time.Second,
	}
}

// New builds the Pool variant named by cfg.Variant for key.
func New(key string, cfg Config) Pool {
	switch cfg.Variant {
	case VariantCyclic:
		return newCyclicPool(key, cfg)
	default:
		return newSmartPool(key, cfg)
	}
}

func poolAcquireTimeoutErr(key string) error {
	return fastclienterrors.PoolAcquireTimeout("", key)
}
