package http1

import (
	"bufio"
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/searchktools/fastclient/core/conn"
	"github.com/searchktools/fastclient/core/connector"
	"github.com/searchktools/fastclient/core/pool"
	"github.com/searchktools/fastclient/core/response"
	"github.com/searchktools/fastclient/core/timeout"
	fastclienterrors "github.com/searchktools/fastclient/errors"
)

// Engine drives a single HTTP/1.1 exchange over a *connector.Connector's
// pooled connections (§4.4).
type Engine struct {
	Connector *connector.Connector
	Timeouts  timeout.Policy
}

// NewEngine builds an Engine.
func NewEngine(c *connector.Connector, timeouts timeout.Policy) *Engine {
	return &Engine{Connector: c, Timeouts: timeouts}
}

// Exchange performs req against target, retrying exactly once if the
// reused connection turns out to be stale (§4.4 "Keep-alive heartbeat on
// reuse").
func (e *Engine) Exchange(ctx context.Context, target *url.URL, req *Request) (*response.Response, error) {
	resp, err := e.attempt(ctx, target, req)
	if err == nil {
		return resp, nil
	}
	if !isRetryableStaleError(err) {
		return nil, err
	}
	return e.attempt(ctx, target, req)
}

func isRetryableStaleError(err error) bool {
	// A write/read failure on a connection reused from idle is treated
	// as staleness and retried once; Pool.IsStale() pre-filtering already
	// screens out most of these, so this path only matters for races
	// that slip past the non-blocking peek.
	var fcErr *fastclienterrors.Error
	if errorsAs(err, &fcErr) {
		return fcErr.Kind == fastclienterrors.KindConnectFailed || fcErr.Kind == fastclienterrors.KindHTTPParseError
	}
	return false
}

func (e *Engine) attempt(ctx context.Context, target *url.URL, req *Request) (*response.Response, error) {
	requestCtx, cancel := e.Timeouts.WithRequestTotal(ctx)
	defer cancel()

	connection, p, err := e.Connector.Acquire(requestCtx, target.String())
	if err != nil {
		return nil, err
	}
	applyDeadline(connection, requestCtx)

	if _, err := req.WriteTo(connection.Conn()); err != nil {
		e.Connector.Drop(p, connection)
		return nil, fastclienterrors.ConnectFailed(req.Method, target.String(), err)
	}

	readCtx, readCancel := e.Timeouts.WithRead(requestCtx)
	defer readCancel()
	applyDeadline(connection, readCtx)

	br := bufio.NewReader(connection.Conn())
	head, err := readHead(br, req.Method, target.String())
	if err != nil {
		e.Connector.Drop(p, connection)
		return nil, err
	}

	if cc, ok := head.Headers.Get("Connection"); ok && strings.EqualFold(strings.TrimSpace(cc), "close") {
		connection.SetKeepAlive(false)
	}

	framing, length := resolveFraming(head.Headers, req.Method)
	if framing == framingEOF {
		connection.SetKeepAlive(false)
	}

	raw := bodyReader(br, framing, length, req.Method, target.String())

	decoded := raw
	if enc, ok := head.Headers.Get("Content-Encoding"); ok {
		decoded, err = decompressReader(req.Method, target.String(), strings.ToLower(strings.TrimSpace(enc)), raw)
		if err != nil {
			e.Connector.Drop(p, connection)
			return nil, err
		}
	}

	body := &pooledBody{
		reader:     decoded,
		connector:  e.Connector,
		pool:       p,
		connection: connection,
	}

	return response.New(head.StatusCode, head.Reason, head.Headers, req.Method, target.String(), body), nil
}

// applyDeadline pushes ctx's deadline, if any, onto the connection's
// socket so reads/writes actually respect the per-phase timeout policy
// (§5 "each I/O step is bounded by the most specific applicable
// deadline").
func applyDeadline(connection *conn.Connection, ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		_ = connection.Conn().SetDeadline(dl)
		return
	}
	_ = connection.Conn().SetDeadline(time.Time{})
}

// pooledBody adapts a decoded body reader to response.BodyCloser,
// implementing §4.4's release discipline: the connection returns to its
// pool only once the body has been read to completion; dropping early
// forces keep_alive=false and closes it.
type pooledBody struct {
	reader     interface{ Read([]byte) (int, error) }
	connector  *connector.Connector
	pool       pool.Pool
	connection *conn.Connection
	released   bool
}

func (b *pooledBody) Read(p []byte) (int, error) {
	return b.reader.Read(p)
}

func (b *pooledBody) Release(consumed bool) {
	if b.released {
		return
	}
	b.released = true
	if !consumed {
		b.connection.SetKeepAlive(false)
	}
	if b.connection.KeepAlive() {
		b.connector.Release(b.pool, b.connection)
	} else {
		b.connector.Drop(b.pool, b.connection)
	}
}

// errorsAs is a tiny local helper so this file doesn't need a second
// "errors" import name colliding with fastclienterrors.
func errorsAs(err error, target **fastclienterrors.Error) bool {
	for err != nil {
		if e, ok := err.(*fastclienterrors.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
