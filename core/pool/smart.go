package pool

import (
	"context"
	"sync"

	"github.com/searchktools/fastclient/core/conn"
	"golang.org/x/sync/semaphore"
)

// smartPool attempts LIFO reuse of still-alive idle connections; when
// none is available it opens a new one via the caller-supplied Dialer,
// provided a slot is free (§4.2).
type smartPool struct {
	key string
	cfg Config

	sem *semaphore.Weighted

	mu           sync.Mutex
	idle         []*conn.Connection // LIFO stack, back is most-recently-released
	leased       int
	connsCreated int64
	reqsServed   int64
	shutdown     bool
}

func newSmartPool(key string, cfg Config) *smartPool {
	return &smartPool{
		key: key,
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.Size)),
	}
}

func (p *smartPool) Acquire(ctx context.Context, dial Dialer) (*conn.Connection, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, poolAcquireTimeoutErr(p.key)
	}

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, poolAcquireTimeoutErr(p.key)
	}
	// Pop alive idle connections from the back (most recently released)
	// until one passes the staleness probe or the idle set is empty.
	for len(p.idle) > 0 {
		c := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		expired := p.cfg.MaxIdleTime > 0 && c.IdleDuration() > p.cfg.MaxIdleTime
		if c.IsStale() || expired {
			p.mu.Unlock()
			_ = c.Close()
			p.mu.Lock()
			continue
		}
		p.leased++
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	c, err := dial(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	p.mu.Lock()
	p.connsCreated++
	p.leased++
	p.mu.Unlock()
	return c, nil
}

func (p *smartPool) Release(c *conn.Connection) {
	c.MarkUsed()

	p.mu.Lock()
	p.leased--
	p.reqsServed++
	reusable := c.KeepAlive() && !c.Closed() &&
		(p.cfg.MaxConnRequests == 0 || c.RequestsServed() < p.cfg.MaxConnRequests) &&
		!p.shutdown
	if reusable {
		p.idle = append(p.idle, c)
	}
	p.mu.Unlock()

	if !reusable {
		_ = c.Close()
	}
	p.sem.Release(1)
}

func (p *smartPool) Drop(c *conn.Connection) {
	p.mu.Lock()
	p.leased--
	p.mu.Unlock()
	_ = c.Close()
	p.sem.Release(1)
}

func (p *smartPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.shutdown = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, c := range idle {
		_ = c.Close()
	}
	return nil
}

func (p *smartPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Size:           p.cfg.Size,
		Idle:           len(p.idle),
		Leased:         p.leased,
		ConnsCreated:   p.connsCreated,
		RequestsServed: p.reqsServed,
	}
}
