/*
Package fastclient provides a connection-pooled HTTP/1.1, WebSocket, and
Server-Sent Events client for Go.

fastclient manages per-origin connection pools (Smart LIFO reuse or a
fixed Cyclic rotation), resolves and caches DNS with singleflight
de-duplication, and speaks HTTP/1.1 directly over pooled connections
with chunked transfer, multipart composition, gzip/deflate
decompression, and redirect following. WebSocket sessions detach their
connection from the pool for the session's lifetime; SSE sessions
reconnect transparently, deduplicating the first event on resume.

HTTP/2 is adapter-only: a pool may ALPN-negotiate h2, but the request
engine itself speaks HTTP/1.1 semantics over it (§1 Non-goals).

Quick Start

	cl := client.New(connector.Options{
	    DefaultPool: pool.DefaultConfig(),
	    VerifySSL:   true,
	    Timeouts:    timeout.Default(),
	})
	defer cl.Close(context.Background())

	resp, err := cl.Get(context.Background(), "https://example.com/", client.DefaultOptions())
	if err != nil {
	    log.Fatal(err)
	}
	body, _ := resp.Text("")
	fmt.Println(body)

Modules

The module is organized into several packages:

  - errors: the stable error taxonomy raised by every engine
  - internal/urlutil: URL/origin parsing and the header store
  - core/timeout: per-phase deadline composition
  - core/dns: resolver interface plus a cached, de-duplicated resolver
  - core/conn: the pooled connection wrapper and staleness probe
  - core/pool: the Smart/Cyclic connection pool variants
  - core/connector: pool routing, proxying, TLS upgrade, CONNECT tunneling
  - core/http1: HTTP/1.1 request emission and response parsing
  - core/response: the buffered/streamed Response body accessors
  - core/redirect: the 3xx redirect driver
  - core/websocket: RFC 6455 handshake, framing, and session management
  - core/sse: the Server-Sent Events line parser and reconnecting session
  - client: the facade tying the above together
  - config: flag/env configuration for cmd/example

For more information, see https://github.com/searchktools/fastclient
*/
package fastclient
