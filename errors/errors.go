// Package errors defines the stable error taxonomy raised by fastclient's
// connection manager, HTTP/1.1 engine, WebSocket engine, and SSE engine.
//
// Every kind shares the *Error type and is told apart by its Kind field
// (errors.As into *Error, or errors.Is against an *Error of the same
// Kind); TooManyRedirectsError and WSClosedError wrap it with extra
// fields. Errors raised by the HTTP/1.1, WebSocket and SSE engines carry
// the request URL/method (and, once a response has been received, the
// status). DNSFailed from the caching resolver carries neither and names
// the host in its wrapped error; PoolAcquireTimeout carries the pool key
// in URL and no method.
package errors

import (
	"fmt"
	"net/http"
)

// Kind discriminates the taxonomy of §7. It is stable across releases.
type Kind string

const (
	KindDNSFailed           Kind = "dns_failed"
	KindConnectFailed       Kind = "connect_failed"
	KindTLSFailed           Kind = "tls_failed"
	KindPoolAcquireTimeout  Kind = "pool_acquire_timeout"
	KindHTTPParseError      Kind = "http_parse_error"
	KindBodyTooLarge        Kind = "body_too_large"
	KindTimeout             Kind = "timeout"
	KindTooManyRedirects    Kind = "too_many_redirects"
	KindDecompressionError  Kind = "decompression_error"
	KindWSHandshakeFailed   Kind = "ws_handshake_failed"
	KindWSProtocolError     Kind = "ws_protocol_error"
	KindWSFrameTooLarge     Kind = "ws_frame_too_large"
	KindWSClosed            Kind = "ws_closed"
	KindSSEConnectionError  Kind = "sse_connection_error"
	KindSSEParsingError     Kind = "sse_parsing_error"
	KindConcurrentReadError Kind = "concurrent_read_error"
)

// Phase names the blocking step a Timeout error fired on (§5, §7).
type Phase string

const (
	PhaseConnect     Phase = "connect"
	PhaseRead        Phase = "read"
	PhaseWrite       Phase = "write"
	PhasePoolAcquire Phase = "pool-acquire"
	PhaseRequest     Phase = "request"
)

// Error is the common shape every taxonomy member embeds: it carries the
// URL/method of the failed request where the raising layer knows them
// (see the package doc), and the response status if one was received
// before the failure.
type Error struct {
	Kind   Kind
	URL    string
	Method string
	Status int // 0 if no response was received
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s %s (status %d): %v", e.Kind, e.Method, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, method, url string, err error) *Error {
	return &Error{Kind: kind, Method: method, URL: url, Err: err}
}

// DNSFailed reports resolver failure or an empty address list (§4.1).
func DNSFailed(method, url, host string, err error) *Error {
	return newErr(KindDNSFailed, method, url, fmt.Errorf("resolve %s: %w", host, err))
}

// ConnectFailed reports a transport failure on a connection (§4.3). The
// HTTP/1.1 engine raises it when writing a request onto an acquired
// connection fails; the connector's own dial failures are returned as
// plain wrapped errors, not as this kind.
func ConnectFailed(method, url string, err error) *Error {
	return newErr(KindConnectFailed, method, url, err)
}

// TLSFailed reports a handshake or verification failure (§4.3).
func TLSFailed(method, url string, err error) *Error {
	return newErr(KindTLSFailed, method, url, err)
}

// PoolAcquireTimeout reports no slot became free within the deadline (§4.2).
func PoolAcquireTimeout(method, url string) *Error {
	return newErr(KindPoolAcquireTimeout, method, url, fmt.Errorf("no pool slot acquired within deadline"))
}

// HTTPParseError reports a malformed status line, header block, or chunk
// framing (§4.4).
func HTTPParseError(method, url string, err error) *Error {
	return newErr(KindHTTPParseError, method, url, err)
}

// BodyTooLarge reports a server body exceeding a caller-specified cap (§7).
func BodyTooLarge(method, url string, limit, got int64) *Error {
	return newErr(KindBodyTooLarge, method, url, fmt.Errorf("body exceeds %d bytes (got at least %d)", limit, got))
}

// Timeout reports a phase-bounded deadline expiring (§5, §7).
func Timeout(method, url string, phase Phase, err error) *Error {
	e := newErr(KindTimeout, method, url, fmt.Errorf("%s: %w", phase, err))
	return e
}

// TooManyRedirects reports a chain exceeding the configured limit (§4.5).
// Chain holds every URL visited, in order, including the original.
type TooManyRedirectsError struct {
	*Error
	Chain []string
}

func NewTooManyRedirects(method, url string, chain []string, limit int) *TooManyRedirectsError {
	return &TooManyRedirectsError{
		Error: newErr(KindTooManyRedirects, method, url, fmt.Errorf("redirect chain exceeded %d hops", limit)),
		Chain: chain,
	}
}

// DecompressionError reports a corrupt gzip/deflate stream (§4.4).
func DecompressionError(method, url string, err error) *Error {
	return newErr(KindDecompressionError, method, url, err)
}

// WSHandshakeFailed reports an invalid Upgrade response (§4.6).
func WSHandshakeFailed(url string, status int, err error) *Error {
	e := newErr(KindWSHandshakeFailed, http.MethodGet, url, err)
	e.Status = status
	return e
}

// WSProtocolError reports a framing violation: masked server frame,
// interleaved fragmentation, oversized control frame, etc (§4.4, §4.6).
func WSProtocolError(url string, err error) *Error {
	return newErr(KindWSProtocolError, http.MethodGet, url, err)
}

// WSFrameTooLarge reports a frame payload exceeding the session's cap.
func WSFrameTooLarge(url string, limit, got int64) *Error {
	return newErr(KindWSFrameTooLarge, http.MethodGet, url, fmt.Errorf("frame payload %d exceeds limit %d", got, limit))
}

// WSClosed reports a session ending via the close handshake (§4.6). It is
// returned from receive operations once the peer's CLOSE has been
// processed, never on successful writes.
type WSClosedError struct {
	*Error
	Code   int
	Reason string
}

func NewWSClosed(url string, code int, reason string) *WSClosedError {
	return &WSClosedError{
		Error:  newErr(KindWSClosed, http.MethodGet, url, fmt.Errorf("closed: %d %s", code, reason)),
		Code:   code,
		Reason: reason,
	}
}

// SSEConnectionError reports a non-conforming handshake response (§4.7).
func SSEConnectionError(method, url string, status int, err error) *Error {
	e := newErr(KindSSEConnectionError, method, url, err)
	e.Status = status
	return e
}

// SSEParsingError reports a malformed `retry:` field or other parse
// failure in the event stream (§4.7).
func SSEParsingError(method, url string, err error) *Error {
	return newErr(KindSSEParsingError, method, url, err)
}

// ConcurrentReadError reports a second overlapping read attempt on a
// session that only supports a single consumer (§5).
func ConcurrentReadError(url string) *Error {
	return newErr(KindConcurrentReadError, http.MethodGet, url, fmt.Errorf("concurrent read on session"))
}
