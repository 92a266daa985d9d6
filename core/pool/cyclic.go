package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/searchktools/fastclient/core/conn"
)

// cyclicSlot is one ring position: a connection (lazily opened) guarded
// by a one-at-a-time gate.
type cyclicSlot struct {
	gate chan struct{} // buffered(1); holding the token = slot is leased
	mu   sync.Mutex
	c    *conn.Connection
}

// cyclicPool rotates FIFO across a fixed ring of slots; acquire always
// selects the next slot by index rather than reusing whichever idle
// connection is most convenient (§4.2: "used when callers want
// predictable reuse patterns"). No tuning heuristic is provided for it
// per §9's open-question decision — it is a capability, not a default.
type cyclicPool struct {
	key  string
	cfg  Config
	next atomic.Int64
	slots []*cyclicSlot

	mu           sync.Mutex
	connsCreated int64
	reqsServed   int64
	shutdown     bool
}

func newCyclicPool(key string, cfg Config) *cyclicPool {
	slots := make([]*cyclicSlot, cfg.Size)
	for i := range slots {
		slots[i] = &cyclicSlot{gate: make(chan struct{}, 1)}
		slots[i].gate <- struct{}{}
	}
	return &cyclicPool{key: key, cfg: cfg, slots: slots}
}

func (p *cyclicPool) Acquire(ctx context.Context, dial Dialer) (*conn.Connection, error) {
	idx := int(p.next.Add(1)-1) % len(p.slots)
	slot := p.slots[idx]

	select {
	case <-slot.gate:
	case <-ctx.Done():
		return nil, poolAcquireTimeoutErr(p.key)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.c != nil && !slot.c.IsStale() {
		p.mu.Lock()
		p.reqsServed++
		p.mu.Unlock()
		// leave gate closed (held) until Release, which finds the
		// slot again by scanning the ring for this connection
		// (findSlot).
		return slot.c, nil
	}

	if slot.c != nil {
		_ = slot.c.Close()
		slot.c = nil
	}

	c, err := dial(ctx)
	if err != nil {
		slot.gate <- struct{}{}
		return nil, err
	}

	p.mu.Lock()
	p.connsCreated++
	p.mu.Unlock()

	slot.c = c
	return c, nil
}

// findSlot maps a connection back to its ring slot for Release/Drop.
// Cyclic pools are small in practice (§9), so a linear scan is
// acceptable and avoids threading extra state through Connection.
func (p *cyclicPool) findSlot(c *conn.Connection) *cyclicSlot {
	for _, s := range p.slots {
		s.mu.Lock()
		same := s.c == c
		s.mu.Unlock()
		if same {
			return s
		}
	}
	return nil
}

func (p *cyclicPool) Release(c *conn.Connection) {
	c.MarkUsed()
	slot := p.findSlot(c)
	if slot == nil {
		_ = c.Close()
		return
	}

	slot.mu.Lock()
	reusable := c.KeepAlive() && !c.Closed() &&
		(p.cfg.MaxConnRequests == 0 || c.RequestsServed() < p.cfg.MaxConnRequests)
	if !reusable {
		_ = c.Close()
		slot.c = nil
	}
	slot.mu.Unlock()

	slot.gate <- struct{}{}
}

func (p *cyclicPool) Drop(c *conn.Connection) {
	slot := p.findSlot(c)
	_ = c.Close()
	if slot == nil {
		return
	}
	slot.mu.Lock()
	slot.c = nil
	slot.mu.Unlock()
	slot.gate <- struct{}{}
}

func (p *cyclicPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()

	for _, s := range p.slots {
		s.mu.Lock()
		if s.c != nil {
			_ = s.c.Close()
			s.c = nil
		}
		s.mu.Unlock()
	}
	return nil
}

func (p *cyclicPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := 0
	leased := 0
	for _, s := range p.slots {
		s.mu.Lock()
		switch {
		case s.c == nil:
		case len(s.gate) == 1:
			idle++
		default:
			leased++
		}
		s.mu.Unlock()
	}
	return Stats{
		Size:           len(p.slots),
		Idle:           idle,
		Leased:         leased,
		ConnsCreated:   p.connsCreated,
		RequestsServed: p.reqsServed,
	}
}
