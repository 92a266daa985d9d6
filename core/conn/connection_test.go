package conn

import (
	"net"
	"testing"
	"time"
)

func TestConnectionLifecycle(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c2.Close()

	c := New("http://example.com:80", c1, true)
	if c.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if !c.KeepAlive() {
		t.Fatal("expected keep-alive true")
	}
	if c.RequestsServed() != 0 {
		t.Fatalf("expected 0 requests served, got %d", c.RequestsServed())
	}

	c.MarkUsed()
	if c.RequestsServed() != 1 {
		t.Fatalf("expected 1 request served, got %d", c.RequestsServed())
	}

	c.SetKeepAlive(false)
	if c.KeepAlive() {
		t.Fatal("expected keep-alive false after SetKeepAlive(false)")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !c.Closed() {
		t.Fatal("expected Closed() true")
	}
	if !c.IsStale() {
		t.Fatal("expected closed connection to report stale")
	}
	// Close is idempotent.
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestConnectionIdleDuration(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	c := New("http://example.com:80", c1, true)
	time.Sleep(5 * time.Millisecond)
	if d := c.IdleDuration(); d <= 0 {
		t.Fatalf("expected positive idle duration, got %v", d)
	}
}
