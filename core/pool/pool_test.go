package pool

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/searchktools/fastclient/core/conn"
)

func dialPipe(key string) Dialer {
	return func(ctx context.Context) (*conn.Connection, error) {
		c1, c2 := net.Pipe()
		go func() {
			// Drain and discard anything written, so writers never block
			// when exercising the pool in isolation from a real peer.
			buf := make([]byte, 4096)
			for {
				if _, err := c2.Read(buf); err != nil {
					return
				}
			}
		}()
		return conn.New(key, c1, true), nil
	}
}

func TestSmartPoolReusesIdleConnection(t *testing.T) {
	p := New("http://example.com:80", Config{Size: 1, Variant: VariantSmart})
	dial := dialPipe("http://example.com:80")

	ctx := context.Background()
	c1, err := p.Acquire(ctx, dial)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(c1)

	c2, err := p.Acquire(ctx, dial)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c1 != c2 {
		t.Fatal("expected smart pool to reuse the same connection")
	}
	p.Release(c2)

	stats := p.Stats()
	if stats.ConnsCreated != 1 {
		t.Errorf("expected 1 connection created, got %d", stats.ConnsCreated)
	}
	if stats.RequestsServed != 2 {
		t.Errorf("expected 2 requests served, got %d", stats.RequestsServed)
	}
}

func TestSmartPoolBlocksWhenExhausted(t *testing.T) {
	p := New("http://example.com:80", Config{Size: 1, Variant: VariantSmart})
	dial := dialPipe("http://example.com:80")

	ctx := context.Background()
	c1, err := p.Acquire(ctx, dial)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(shortCtx, dial); err == nil {
		t.Fatal("expected PoolAcquireTimeout while sole slot is leased")
	}

	p.Release(c1)
}

func TestSmartPoolClosesOnKeepAliveFalse(t *testing.T) {
	p := New("http://example.com:80", Config{Size: 2, Variant: VariantSmart})
	dial := dialPipe("http://example.com:80")

	ctx := context.Background()
	c1, err := p.Acquire(ctx, dial)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	c1.SetKeepAlive(false)
	p.Release(c1)

	if !c1.Closed() {
		t.Fatal("expected connection with keep-alive=false to be closed on release")
	}
	if stats := p.Stats(); stats.Idle != 0 {
		t.Errorf("expected 0 idle connections, got %d", stats.Idle)
	}
}

func TestCyclicPoolRotatesSlots(t *testing.T) {
	p := New("http://example.com:80", Config{Size: 2, Variant: VariantCyclic})
	dial := dialPipe("http://example.com:80")

	ctx := context.Background()
	c1, err := p.Acquire(ctx, dial)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(c1)

	c2, err := p.Acquire(ctx, dial)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c1 == c2 {
		t.Fatal("expected cyclic pool to rotate to a different slot")
	}
	p.Release(c2)

	c3, err := p.Acquire(ctx, dial)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c3 != c1 {
		t.Fatal("expected cyclic pool to wrap back to the first slot's connection")
	}
	p.Release(c3)
}

func TestPoolConservationInvariant(t *testing.T) {
	p := New("http://example.com:80", Config{Size: 3, Variant: VariantSmart})
	dial := dialPipe("http://example.com:80")
	ctx := context.Background()

	var leased []*conn.Connection
	for i := 0; i < 3; i++ {
		c, err := p.Acquire(ctx, dial)
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		leased = append(leased, c)
	}

	stats := p.Stats()
	if stats.Idle+stats.Leased > stats.Size {
		t.Fatalf("conservation violated: idle=%d leased=%d size=%d", stats.Idle, stats.Leased, stats.Size)
	}

	for _, c := range leased {
		p.Release(c)
	}
}

func TestSmartPoolShutdownClosesIdle(t *testing.T) {
	p := New("http://example.com:80", Config{Size: 1, Variant: VariantSmart})
	dial := dialPipe("http://example.com:80")
	ctx := context.Background()

	c, err := p.Acquire(ctx, dial)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(c)

	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !c.Closed() {
		t.Fatal("expected idle connection to be closed on shutdown")
	}
}
