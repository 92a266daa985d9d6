package sse

import (
	"bufio"
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"

	"github.com/searchktools/fastclient/core/connector"
	"github.com/searchktools/fastclient/core/http1"
	"github.com/searchktools/fastclient/core/response"
	"github.com/searchktools/fastclient/core/timeout"
	fastclienterrors "github.com/searchktools/fastclient/errors"
)

// Options configures an SSE session (§4.7).
type Options struct {
	Method    string // defaults to GET
	Headers   map[string]string
	Reconnect bool
	RetryBase time.Duration // initial retry_delay if the server never sends one
}

// Session drives a reconnecting SSE stream, exposing Next() as the
// single consumer entry point (§4.7, §5 "SSE event ordering").
type Session struct {
	connector *connector.Connector
	timeouts  timeout.Policy
	target    *url.URL
	opts      Options

	lastEventID  string
	retryDelay   time.Duration
	lastDataHash uint64
	haveLastHash bool

	lastYieldedID string
	resumed       bool // the next event is the first one after a reconnect

	consecutiveFailures int
	backOff             backoff.BackOff

	current *streamHandle
}

type streamHandle struct {
	resp   *response.Response
	parser *Parser
}

// NewSession constructs a Session against target. The stream is not
// opened until the first Next() call.
func NewSession(cn *connector.Connector, timeouts timeout.Policy, target *url.URL, opts Options) *Session {
	if opts.Method == "" {
		opts.Method = "GET"
	}
	retryBase := opts.RetryBase
	if retryBase <= 0 {
		retryBase = 3 * time.Second
	}
	return &Session{
		connector:  cn,
		timeouts:   timeouts,
		target:     target,
		opts:       opts,
		retryDelay: retryBase,
		backOff:    reconnectBackOff(retryBase),
	}
}

// Next returns the next dispatched Event, transparently reconnecting on
// stream end when Reconnect is enabled (§4.7 "Reconnection").
func (s *Session) Next(ctx context.Context) (*Event, error) {
	for {
		if s.current == nil {
			if err := s.open(ctx); err != nil {
				s.consecutiveFailures++
				if !s.opts.Reconnect {
					return nil, err
				}
				if !s.waitBeforeRetry(ctx, s.backOff.NextBackOff()) {
					return nil, ctx.Err()
				}
				continue
			}
			s.consecutiveFailures = 0
			s.backOff.Reset()
		}

		ev, err := s.current.parser.Next()
		if err == nil {
			resumed := s.resumed
			s.resumed = false
			if resumed && s.isDuplicate(ev) {
				continue
			}
			s.recordYielded(ev)
			if ev.Retry > 0 {
				s.retryDelay = time.Duration(ev.Retry) * time.Millisecond
			}
			return ev, nil
		}

		s.lastEventID = s.current.parser.LastEventID()
		s.current.resp.Drop()
		s.current = nil

		if !s.opts.Reconnect {
			return nil, err
		}
		s.resumed = true

		if !s.waitBeforeRetry(ctx, s.retryDelay) {
			return nil, ctx.Err()
		}
	}
}

// waitBeforeRetry blocks for d or until ctx is cancelled, reporting
// which happened.
func (s *Session) waitBeforeRetry(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) isDuplicate(ev *Event) bool {
	if !s.haveLastHash {
		return false
	}
	if ev.ID != "" && ev.ID == s.lastYieldedID {
		return true
	}
	h := xxhash.Sum64String(ev.Data)
	return h == s.lastDataHash && ev.Data != ""
}

func (s *Session) recordYielded(ev *Event) {
	s.lastDataHash = xxhash.Sum64String(ev.Data)
	s.haveLastHash = true
	s.lastYieldedID = ev.ID
}

func (s *Session) open(ctx context.Context) error {
	h := http1.BaseHeaders(s.target.Host, "", true)
	h.Set("Accept", "text/event-stream")
	if s.lastEventID != "" {
		h.Set("Last-Event-ID", s.lastEventID)
	}
	for k, v := range s.opts.Headers {
		h.Add(k, v)
	}

	req := &http1.Request{
		Method:  s.opts.Method,
		URL:     s.target,
		Headers: h,
		Body:    http1.RequestBody{Kind: http1.BodyNone},
	}

	engine := http1.NewEngine(s.connector, s.timeouts)
	resp, err := engine.Exchange(ctx, s.target, req)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Drop()
		return fastclienterrors.SSEConnectionError(s.opts.Method, s.target.String(), resp.StatusCode, nil)
	}
	ct, _ := resp.Headers.Get("Content-Type")
	if !strings.HasPrefix(strings.TrimSpace(ct), "text/event-stream") {
		resp.Drop()
		return fastclienterrors.SSEConnectionError(s.opts.Method, s.target.String(), resp.StatusCode, nil)
	}

	body, err := resp.ReadChunks()
	if err != nil {
		resp.Drop()
		return err
	}

	s.current = &streamHandle{
		resp:   resp,
		parser: NewParser(bufio.NewReader(body), s.target.String(), s.lastEventID),
	}
	return nil
}

// reconnectBackOff builds a capped exponential backoff that spaces out
// retries whenever opening the stream fails; it is reset after every
// successful open. The wait after a stream ends normally is retryDelay,
// which the server's retry: field updates.
func reconnectBackOff(base time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}
