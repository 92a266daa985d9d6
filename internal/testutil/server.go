// Package testutil provides loopback HTTP/WebSocket/SSE servers for
// exercising the §8 concrete scenarios end to end, built on
// github.com/go-chi/chi/v5 the way the pack's own servers route requests.
package testutil

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

const wsMagic = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Server wraps an httptest.Server with chi routing, offering the fixed
// set of routes the package tests exercise.
type Server struct {
	*httptest.Server
	router *chi.Mux

	counter int64

	reconnectHits int64
	mu            sync.Mutex
	lastEventIDs  []string
}

// New starts a loopback server with the standard test routes registered.
func New() *Server {
	s := &Server{router: chi.NewRouter()}
	s.router.Get("/counter", s.handleCounter)
	s.router.Get("/echo", s.handleEcho)
	s.router.Get("/redirect/{n}", s.handleRedirectChain)
	s.router.Get("/sse", s.handleSSE)
	s.router.Get("/sse-reconnect", s.handleSSEReconnect)
	s.router.Get("/ws", s.handleWS)
	s.router.Get("/slow", s.handleSlow)
	s.Server = httptest.NewServer(s.router)
	return s
}

// handleCounter returns an incrementing body on every request, used by
// the §8 keep-alive reuse scenario ("1", "2", "3" over one pooled conn).
func (s *Server) handleCounter(w http.ResponseWriter, r *http.Request) {
	n := atomic.AddInt64(&s.counter, 1)
	fmt.Fprintf(w, "%d", n)
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, r.Header.Get("X-Echo"))
}

// handleRedirectChain issues n hops of 302 before a final 200, used by
// the redirect-following scenarios of §4.5/§8.
func (s *Server) handleRedirectChain(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(chi.URLParam(r, "n"))
	if n <= 0 {
		fmt.Fprint(w, "done")
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/redirect/%d", n-1), http.StatusFound)
}

// handleSSE streams a handful of events, then closes, for §4.7/§8.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(w, "id: %d\ndata: tick-%d\n\n", i, i)
		flusher.Flush()
		time.Sleep(5 * time.Millisecond)
	}
}

// handleSSEReconnect serves one event per connection and then closes the
// stream, recording the Last-Event-ID header each connection arrived
// with, so a test can assert a reconnecting client resumes with the id
// from the event it last saw (§4.7 "Last-Event-ID").
func (s *Server) handleSSEReconnect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.lastEventIDs = append(s.lastEventIDs, r.Header.Get("Last-Event-ID"))
	s.mu.Unlock()

	n := atomic.AddInt64(&s.reconnectHits, 1)
	fmt.Fprintf(w, "id: %d\ndata: event-%d\n\n", n, n)
	flusher.Flush()
}

// LastEventIDHeaders returns the Last-Event-ID header value seen on each
// successive /sse-reconnect connection, in arrival order.
func (s *Server) LastEventIDHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lastEventIDs))
	copy(out, s.lastEventIDs)
	return out
}

// handleSlow stalls past a test's configured read timeout.
func (s *Server) handleSlow(w http.ResponseWriter, r *http.Request) {
	time.Sleep(200 * time.Millisecond)
	fmt.Fprint(w, "ok")
}

// handleWS performs a minimal RFC 6455 upgrade and echoes TEXT frames,
// enough surface for the client's websocket session tests.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijack unsupported", http.StatusInternalServerError)
		return
	}
	conn, rw, err := hijacker.Hijack()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer conn.Close()

	accept := acceptValue(key)
	fmt.Fprintf(rw, "HTTP/1.1 101 Switching Protocols\r\n"+
		"Upgrade: websocket\r\n"+
		"Connection: Upgrade\r\n"+
		"Sec-WebSocket-Accept: %s\r\n\r\n", accept)
	rw.Flush()

	echoFrames(conn)
}

func acceptValue(key string) string {
	h := sha1.New()
	h.Write([]byte(key + wsMagic))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// echoFrames reads client-masked TEXT frames and echoes them back
// unmasked, until the connection closes. It understands only the small
// subset of RFC 6455 the test client exercises.
func echoFrames(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil || n < 2 {
			return
		}
		fin := buf[0]&0x80 != 0
		opcode := buf[0] & 0x0f
		masked := buf[1]&0x80 != 0
		length := int(buf[1] & 0x7f)
		offset := 2
		if !masked || length > 125 {
			return
		}
		maskKey := buf[offset : offset+4]
		offset += 4
		payload := make([]byte, length)
		copy(payload, buf[offset:offset+length])
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}

		switch opcode {
		case 0x8: // close
			conn.Write([]byte{0x88, 0x00})
			return
		case 0x9: // ping -> pong
			writeServerFrame(conn, 0xA, payload)
		case 0x1: // text
			if fin {
				writeServerFrame(conn, 0x1, payload)
			}
		}
	}
}

func writeServerFrame(conn net.Conn, opcode byte, payload []byte) {
	header := []byte{0x80 | opcode, byte(len(payload))}
	conn.Write(header)
	conn.Write(payload)
}

// Close shuts the server down immediately.
func (s *Server) Close() {
	s.Server.Close()
}

// BaseContext returns a background context, a small convenience so
// callers don't need to import "context" solely for tests.
func BaseContext() context.Context {
	return context.Background()
}
