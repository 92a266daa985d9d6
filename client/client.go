package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/searchktools/fastclient/core/connector"
	"github.com/searchktools/fastclient/core/http1"
	"github.com/searchktools/fastclient/core/pool"
	"github.com/searchktools/fastclient/core/redirect"
	"github.com/searchktools/fastclient/core/response"
	"github.com/searchktools/fastclient/core/sse"
	"github.com/searchktools/fastclient/core/timeout"
	"github.com/searchktools/fastclient/core/websocket"
	"github.com/searchktools/fastclient/internal/pools"
)

// Client is the facade collaborator of §4.8: it owns one Connector and
// exposes request/ws/sse entry points, tracking in-flight handles so
// callers can wait for drain before Close.
type Client struct {
	connector *connector.Connector
	timeouts  timeout.Policy
	defaults  RequestOptions

	wg sync.WaitGroup
}

// New builds a Client around a fresh Connector.
func New(opts connector.Options) *Client {
	if opts.Timeouts == (timeout.Policy{}) {
		opts.Timeouts = timeout.Default()
	}
	return &Client{
		connector: connector.New(opts),
		timeouts:  opts.Timeouts,
		defaults:  DefaultOptions(),
	}
}

// Request performs method against rawURL with opts, transparently
// following redirects when opts.Follow is set (§4.5, §4.8).
func (c *Client) Request(ctx context.Context, method, rawURL string, opts RequestOptions) (*response.Response, error) {
	c.wg.Add(1)
	defer c.wg.Done()

	m, err := normalizeMethod(method)
	if err != nil {
		return nil, err
	}

	timeouts := c.timeouts
	if opts.Timeouts != nil {
		timeouts = *opts.Timeouts
	}
	engine := http1.NewEngine(c.connector, timeouts)

	target, err := url.Parse(buildQuery(rawURL, opts.Params))
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}

	chain := redirect.NewChain(target)
	currentMethod := m
	retainBody := opts.Data
	retainJSON := opts.JSON
	crossedOrigin := false

	for {
		headers := http1.BaseHeaders(target.Host, "", true)
		mergeHeaders(headers, opts.Headers)
		redirect.StripAuthorizationIfCrossOrigin(headers, crossedOrigin, opts.RetainAuthOnRedirect)

		bodyOpts := opts
		bodyOpts.Data = retainBody
		bodyOpts.JSON = retainJSON
		body, err := resolveBody(headers, bodyOpts)
		if err != nil {
			return nil, err
		}

		req := &http1.Request{
			Method:  currentMethod,
			URL:     target,
			Headers: headers,
			Body:    body,
		}

		resp, err := engine.Exchange(ctx, target, req)
		if err != nil {
			return nil, err
		}
		resp.SetMaxBodySize(opts.MaxBodySize)

		if !opts.Follow {
			return resp, nil
		}

		location, _ := resp.Headers.Get("Location")
		decision, derr := redirect.Evaluate(resp.StatusCode, target, location, currentMethod)
		if derr != nil {
			resp.Drop()
			return nil, derr
		}
		if !decision.ShouldFollow {
			return resp, nil
		}

		resp.Drop()
		if err := chain.Append(decision.Next, m, rawURL); err != nil {
			return nil, err
		}

		crossedOrigin = crossedOrigin || decision.CrossOrigin
		target = decision.Next
		currentMethod = decision.Method
		if decision.DropBody {
			retainBody = nil
			retainJSON = nil
		}
	}
}

// Get, Post, Put, Patch, Delete are the sugar methods of §4.8.
func (c *Client) Get(ctx context.Context, rawURL string, opts RequestOptions) (*response.Response, error) {
	return c.Request(ctx, "GET", rawURL, opts)
}

func (c *Client) Post(ctx context.Context, rawURL string, opts RequestOptions) (*response.Response, error) {
	return c.Request(ctx, "POST", rawURL, opts)
}

func (c *Client) Put(ctx context.Context, rawURL string, opts RequestOptions) (*response.Response, error) {
	return c.Request(ctx, "PUT", rawURL, opts)
}

func (c *Client) Patch(ctx context.Context, rawURL string, opts RequestOptions) (*response.Response, error) {
	return c.Request(ctx, "PATCH", rawURL, opts)
}

func (c *Client) Delete(ctx context.Context, rawURL string, opts RequestOptions) (*response.Response, error) {
	return c.Request(ctx, "DELETE", rawURL, opts)
}

func (c *Client) Head(ctx context.Context, rawURL string, opts RequestOptions) (*response.Response, error) {
	return c.Request(ctx, "HEAD", rawURL, opts)
}

// WebSocket upgrades rawURL to a WebSocket session (§4.6, §4.8).
func (c *Client) WebSocket(ctx context.Context, rawURL string, opts websocket.DialOptions) (*websocket.Session, error) {
	c.wg.Add(1)
	defer c.wg.Done()

	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}
	return websocket.Dial(ctx, c.connector, c.timeouts, target, opts)
}

// SSE opens a reconnecting Server-Sent Events session against rawURL
// (§4.7, §4.8).
func (c *Client) SSE(rawURL string, opts sse.Options) (*sse.Session, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}
	return sse.NewSession(c.connector, c.timeouts, target, opts), nil
}

// DefaultOptions returns this Client's configured baseline options, for
// callers to start from and override selectively.
func (c *Client) DefaultOptions() RequestOptions {
	return c.defaults
}

// WaitRequests blocks until every in-flight Request/WebSocket dial has
// returned, or ctx is cancelled first (§4.8 "wait_requests").
func (c *Client) WaitRequests(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains every connection pool (§4.2 Shutdown, §4.8).
func (c *Client) Close(ctx context.Context) error {
	return c.connector.Shutdown(ctx)
}

// Stats exposes pool occupancy for diagnostics (§8).
func (c *Client) Stats() map[string]pool.Stats {
	return c.connector.Stats()
}

// BufferPoolStats reports the body-buffering scratch pool's tier hit
// rates, useful for tuning size-estimate expectations against what this
// process actually sees on the wire.
func (c *Client) BufferPoolStats() pools.BufferStats {
	return pools.GlobalBufferStats()
}
