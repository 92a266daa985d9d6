package client

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/fastclient/core/connector"
	"github.com/searchktools/fastclient/core/pool"
	"github.com/searchktools/fastclient/core/sse"
	"github.com/searchktools/fastclient/core/timeout"
	"github.com/searchktools/fastclient/core/websocket"
	"github.com/searchktools/fastclient/internal/testutil"
)

func newTestClient() *Client {
	return New(connector.Options{
		DefaultPool: pool.DefaultConfig(),
		VerifySSL:   true,
		Timeouts:    timeout.Default(),
	})
}

func TestNormalizeMethodUppercasesKnownVerbs(t *testing.T) {
	m, err := normalizeMethod("get")
	require.NoError(t, err)
	assert.Equal(t, "GET", m)
}

func TestNormalizeMethodRejectsUnknown(t *testing.T) {
	_, err := normalizeMethod("TRACE")
	assert.Error(t, err)
}

func TestBuildQueryAppendsSortedParams(t *testing.T) {
	got := buildQuery("http://example.com/path", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, "http://example.com/path?a=1&b=2", got)
}

func TestClientGetFollowsRedirectChain(t *testing.T) {
	srv := testutil.New()
	defer srv.Close()

	c := newTestClient()
	defer c.Close(context.Background())

	resp, err := c.Get(context.Background(), srv.URL+"/redirect/3", DefaultOptions())
	require.NoError(t, err)

	body, err := resp.Text("")
	require.NoError(t, err)
	assert.Equal(t, "done", body)
}

func TestClientGetWithoutFollowStopsAtFirstRedirect(t *testing.T) {
	srv := testutil.New()
	defer srv.Close()

	c := newTestClient()
	defer c.Close(context.Background())

	opts := DefaultOptions()
	opts.Follow = false
	resp, err := c.Get(context.Background(), srv.URL+"/redirect/1", opts)
	require.NoError(t, err)
	defer resp.Drop()

	assert.Equal(t, 302, resp.StatusCode)
}

func TestClientReusesConnectionAcrossSequentialGETs(t *testing.T) {
	srv := testutil.New()
	defer srv.Close()

	cfg := pool.DefaultConfig()
	cfg.Size = 1
	c := New(connector.Options{
		DefaultPool: cfg,
		VerifySSL:   true,
		Timeouts:    timeout.Default(),
	})
	defer c.Close(context.Background())

	opts := DefaultOptions()
	for i, want := range []string{"1", "2", "3"} {
		resp, err := c.Get(context.Background(), srv.URL+"/counter", opts)
		require.NoErrorf(t, err, "request #%d", i)

		body, err := resp.Text("")
		require.NoErrorf(t, err, "request #%d", i)
		assert.Equalf(t, want, body, "request #%d", i)
	}

	stats := c.Stats()
	require.Len(t, stats, 1)
	for _, s := range stats {
		assert.EqualValues(t, 1, s.ConnsCreated, "expected exactly one connection created")
		assert.EqualValues(t, 3, s.RequestsServed, "expected 3 requests served")
	}
}

func TestClientWebSocketEchoRoundTrip(t *testing.T) {
	srv := testutil.New()
	defer srv.Close()

	c := newTestClient()
	defer c.Close(context.Background())

	wsURL := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/ws"
	sess, err := c.WebSocket(context.Background(), wsURL, websocket.DialOptions{})
	require.NoError(t, err)
	defer sess.Close(1000, "")

	require.NoError(t, sess.SendText("hello"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sess.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg.Raw))
}

func TestClientSSEReceivesDispatchedEvents(t *testing.T) {
	srv := testutil.New()
	defer srv.Close()

	c := newTestClient()
	defer c.Close(context.Background())

	sess, err := c.SSE(srv.URL+"/sse", sse.Options{Reconnect: false})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev, err := sess.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tick-1", ev.Data)
}

func TestClientSSEReconnectSendsLastEventID(t *testing.T) {
	srv := testutil.New()
	defer srv.Close()

	c := newTestClient()
	defer c.Close(context.Background())

	sess, err := c.SSE(srv.URL+"/sse-reconnect", sse.Options{Reconnect: true, RetryBase: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, err := sess.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "event-1", first.Data)

	second, err := sess.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "event-2", second.Data)

	headers := srv.LastEventIDHeaders()
	require.Len(t, headers, 2)
	assert.Empty(t, headers[0], "first connection should carry no Last-Event-ID")
	assert.Equal(t, "1", headers[1], "reconnect should carry the previously dispatched event's id")
}

func TestClientBufferPoolStatsReflectBodyReads(t *testing.T) {
	srv := testutil.New()
	defer srv.Close()

	c := newTestClient()
	defer c.Close(context.Background())

	before := c.BufferPoolStats()

	resp, err := c.Get(context.Background(), srv.URL+"/counter", DefaultOptions())
	require.NoError(t, err)
	_, err = resp.Content()
	require.NoError(t, err)

	after := c.BufferPoolStats()
	assert.Greater(t, after.TotalLeases, before.TotalLeases, "expected reading a response body to lease a pooled buffer")
}

func TestClientGetEnforcesMaxBodySize(t *testing.T) {
	srv := testutil.New()
	defer srv.Close()

	c := newTestClient()
	defer c.Close(context.Background())

	opts := DefaultOptions()
	opts.MaxBodySize = 2

	resp, err := c.Get(context.Background(), srv.URL+"/redirect/0", opts)
	require.NoError(t, err)

	_, err = resp.Content()
	assert.Error(t, err, "expected body exceeding MaxBodySize to fail")
}

func TestClientWaitRequestsReturnsWhenIdle(t *testing.T) {
	c := newTestClient()
	defer c.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.WaitRequests(ctx))
}
