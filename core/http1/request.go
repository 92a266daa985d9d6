// Package http1 implements C7: HTTP/1.1 request emission and response
// parsing over a *conn.Connection — request-line/header framing, chunked
// and identity/EOF body transfer, multipart composition, gzip/deflate
// decompression, and the stale-retry-once reuse heuristic (§4.4).
package http1

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/searchktools/fastclient/internal/urlutil"
)

// BodyKind discriminates how a request body is framed on the wire (§4.4).
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyBytes
	BodyChunked
)

// RequestBody is the payload a Request carries, pre-resolved into
// either a fixed byte slice (Content-Length) or a lazy reader
// (Transfer-Encoding: chunked).
type RequestBody struct {
	Kind   BodyKind
	Bytes  []byte
	Stream io.Reader // used when Kind == BodyChunked
}

// Request is a fully-resolved HTTP/1.1 request ready for emission.
type Request struct {
	Method      string
	URL         *url.URL
	Headers     *urlutil.HeaderStore
	Body        RequestBody
	ViaProxy    bool // use absolute-URI request-target form (§4.4)
	ProxyTarget *url.URL
}

// WriteTo serializes r onto w following §4.4's "Request emission" rules.
func (r *Request) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder

	target := r.URL.RequestURI()
	if r.ViaProxy {
		target = r.URL.String()
	}
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", r.Method, target)

	for _, kv := range r.Headers.Pairs() {
		fmt.Fprintf(&b, "%s: %s\r\n", kv[0], kv[1])
	}
	b.WriteString("\r\n")

	n, err := io.WriteString(w, b.String())
	total := int64(n)
	if err != nil {
		return total, err
	}

	switch r.Body.Kind {
	case BodyNone:
		return total, nil
	case BodyBytes:
		n2, err := w.Write(r.Body.Bytes)
		return total + int64(n2), err
	case BodyChunked:
		n2, err := writeChunked(w, r.Body.Stream)
		return total + n2, err
	default:
		return total, fmt.Errorf("http1: unknown body kind %d", r.Body.Kind)
	}
}

// BaseHeaders builds the always-present header set (§4.4 "Base headers"),
// before user headers are merged on top.
func BaseHeaders(host, userAgent string, keepAlive bool) *urlutil.HeaderStore {
	h := urlutil.NewHeaderStore()
	h.Add("Host", host)
	if userAgent == "" {
		userAgent = "fastclient/1.0"
	}
	h.Add("User-Agent", userAgent)
	h.Add("Accept", "*/*")
	if keepAlive {
		h.Add("Connection", "keep-alive")
	} else {
		h.Add("Connection", "close")
	}
	h.Add("Accept-Encoding", "gzip, deflate")
	return h
}

// SetContentLength sets the Content-Length header for a fixed-size body.
func SetContentLength(h *urlutil.HeaderStore, n int) {
	h.Set("Content-Length", strconv.Itoa(n))
}

// SetChunked marks h for chunked transfer (unknown-size body).
func SetChunked(h *urlutil.HeaderStore) {
	h.Set("Transfer-Encoding", "chunked")
}
