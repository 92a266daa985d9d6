// Package response implements C8: the Response object returned by the
// HTTP/1.1 engine — status/header access plus the four body accessors
// (content, text, json, read_chunks). Content, Text and JSON buffer the
// body once and may be called repeatedly; read_chunks consumes the
// stream and excludes the other three (§4.4).
package response

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"

	fastclienterrors "github.com/searchktools/fastclient/errors"
	"github.com/searchktools/fastclient/internal/pools"
	"github.com/searchktools/fastclient/internal/urlutil"
)

// BodyCloser is satisfied by whatever the HTTP/1.1 engine hands the
// Response for release-on-consumption bookkeeping (§4.4 "Release
// discipline").
type BodyCloser interface {
	io.Reader
	// Release is called exactly once, with consumed=true if the body was
	// read to completion and false if the caller dropped it early.
	Release(consumed bool)
}

// Response is the result of a completed HTTP/1.1 exchange.
type Response struct {
	StatusCode int
	Reason     string
	Headers    *urlutil.HeaderStore
	URL        string
	Method     string

	body BodyCloser
	mu   sync.Mutex

	bufferedOnce bool
	buffered     []byte
	bufferedErr  error

	chunksStarted bool
	chunkReader   *releasingReader

	// maxBodySize caps bytes read via Content or ReadChunks; 0 means
	// unbounded. Set via SetMaxBodySize before the first read (§7
	// "BodyTooLarge").
	maxBodySize int64
}

// SetMaxBodySize caps the body this Response will read, in bytes. The
// caller (client.Request) sets this once, immediately after the
// exchange completes and before handing the Response to anything that
// might call Content/Text/JSON/ReadChunks. A limit of 0 means unbounded.
func (r *Response) SetMaxBodySize(n int64) {
	r.maxBodySize = n
}

// New wraps body as the Response for an exchange.
func New(statusCode int, reason string, headers *urlutil.HeaderStore, method, url string, body BodyCloser) *Response {
	return &Response{
		StatusCode: statusCode,
		Reason:     reason,
		Headers:    headers,
		Method:     method,
		URL:        url,
		body:       body,
	}
}

// Content fully buffers and returns the decoded body bytes. Safe to call
// more than once; the first call's result is cached.
func (r *Response) Content() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contentLocked()
}

func (r *Response) contentLocked() ([]byte, error) {
	if r.bufferedOnce {
		return r.buffered, r.bufferedErr
	}
	if r.chunksStarted {
		return nil, fmt.Errorf("response: ReadChunks already consumed the body")
	}
	data, err := r.readAllPooled()
	r.buffered = data
	r.bufferedErr = err
	r.bufferedOnce = true
	if r.body != nil {
		r.body.Release(err == nil)
	}
	return data, err
}

// readAllPooled buffers the body using a scratch buffer borrowed from
// the pack's tiered buffer pool, sized from Content-Length when known,
// sparing an allocation-heavy io.ReadAll growth sequence for the common
// case of a response that fits one tier.
func (r *Response) readAllPooled() ([]byte, error) {
	estimate := pools.MediumBufferSize
	if cl, ok := r.Headers.Get("Content-Length"); ok {
		if n, err := strconv.Atoi(cl); err == nil && n > 0 {
			estimate = n
		}
	}

	scratch := pools.AcquireBuffer(estimate)
	defer pools.ReleaseBuffer(scratch)

	buf := make([]byte, 4096)
	for {
		n, err := r.body.Read(buf)
		if n > 0 {
			*scratch = append(*scratch, buf[:n]...)
			if r.maxBodySize > 0 && int64(len(*scratch)) > r.maxBodySize {
				return nil, fastclienterrors.BodyTooLarge(r.Method, r.URL, r.maxBodySize, int64(len(*scratch)))
			}
		}
		if err != nil {
			if err == io.EOF {
				out := make([]byte, len(*scratch))
				copy(out, *scratch)
				return out, nil
			}
			return nil, err
		}
	}
}

// Text decodes the body as a string. With encoding == "", the charset is
// sniffed from the first bytes and the Content-Type header (§4.4).
func (r *Response) Text(encoding string) (string, error) {
	data, err := r.Content()
	if err != nil {
		return "", err
	}
	if encoding == "" {
		ct, _ := r.Headers.Get("Content-Type")
		return decodeText(data, ct)
	}
	return decodeTextWithName(data, encoding)
}

// JSON parses the body as JSON regardless of Content-Type (§4.4).
func (r *Response) JSON(v interface{}) error {
	data, err := r.Content()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ReadChunks returns a lazy reader over the body, bypassing buffering.
// It may only be called once, and not after Content/Text/JSON have
// buffered the body.
func (r *Response) ReadChunks() (io.Reader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bufferedOnce {
		return nil, fmt.Errorf("response: body already buffered by Content/Text/JSON")
	}
	if r.chunksStarted {
		return nil, fmt.Errorf("response: ReadChunks already called")
	}
	r.chunksStarted = true
	rr := &releasingReader{
		r:           bufio.NewReader(r.body),
		closer:      r.body,
		maxSize:     r.maxBodySize,
		method:      r.Method,
		url:         r.URL,
	}
	r.chunkReader = rr
	return rr, nil
}

// Drop abandons the response, forcing the underlying connection closed
// rather than returned to its pool (§4.4 "Release discipline"). If
// ReadChunks was called but the stream was never drained to completion
// (e.g. a caller stops early, or a parser built on top of it errors out
// mid-stream), Drop still releases the body as unconsumed instead of
// leaking the pooled connection — releasingReader itself guards against
// a double Release if the stream later reaches EOF on its own.
func (r *Response) Drop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bufferedOnce {
		return
	}
	if r.chunksStarted {
		if r.chunkReader != nil {
			r.chunkReader.release(false)
		}
		return
	}
	if r.body != nil {
		r.body.Release(false)
	}
}

type releasingReader struct {
	r      io.Reader
	closer BodyCloser

	maxSize int64
	read    int64
	method  string
	url     string

	mu   sync.Mutex
	done bool
}

func (rr *releasingReader) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	if n > 0 {
		rr.read += int64(n)
		if rr.maxSize > 0 && rr.read > rr.maxSize {
			rr.release(false)
			return n, fastclienterrors.BodyTooLarge(rr.method, rr.url, rr.maxSize, rr.read)
		}
	}
	if err != nil {
		rr.release(err == io.EOF)
	}
	return n, err
}

// release calls closer.Release exactly once, whichever of Read (reaching
// EOF or an error) or Response.Drop (abandoning early) gets there first.
func (rr *releasingReader) release(consumed bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if rr.done {
		return
	}
	rr.done = true
	rr.closer.Release(consumed)
}
