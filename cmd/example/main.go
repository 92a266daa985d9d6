// Command example demonstrates the fastclient facade: a GET that follows
// redirects, a WebSocket echo round-trip, and an SSE subscription,
// against whatever -url the operator points it at.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/searchktools/fastclient/client"
	"github.com/searchktools/fastclient/config"
	"github.com/searchktools/fastclient/core/connector"
	"github.com/searchktools/fastclient/core/pool"
	"github.com/searchktools/fastclient/core/sse"
	"github.com/searchktools/fastclient/core/timeout"
	"github.com/searchktools/fastclient/core/websocket"
)

func main() {
	cfg := config.New()
	configureLogging(cfg.LogLevel)

	poolCfg := pool.DefaultConfig()
	poolCfg.Size = cfg.PoolSize

	c := client.New(connector.Options{
		DefaultPool:  poolCfg,
		VerifySSL:    cfg.VerifySSL,
		HTTP2Enabled: cfg.HTTP2Enabled,
		Timeouts: timeout.Policy{
			SockConnect: cfg.SockConnect,
			SockRead:    cfg.SockRead,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go awaitSignal(cancel)

	runGet(ctx, c, cfg.TargetURL, cfg.UserAgent)
	runWebSocketEcho(ctx, c, cfg.TargetURL)
	runSSE(ctx, c, cfg.TargetURL)

	if err := c.WaitRequests(ctx); err != nil {
		log.Warn().Err(err).Msg("wait_requests did not drain before shutdown")
	}
	if err := c.Close(context.Background()); err != nil {
		log.Error().Err(err).Msg("connector shutdown failed")
	}
}

func runGet(ctx context.Context, c *client.Client, targetURL, userAgent string) {
	opts := client.DefaultOptions()
	opts.Headers = map[string]string{"User-Agent": userAgent}

	resp, err := c.Get(ctx, targetURL, opts)
	if err != nil {
		log.Error().Err(err).Str("url", targetURL).Msg("GET failed")
		return
	}
	body, err := resp.Text("")
	if err != nil {
		log.Error().Err(err).Msg("read body failed")
		return
	}
	log.Info().Int("status", resp.StatusCode).Int("bytes", len(body)).Msg("GET completed")
}

func runWebSocketEcho(ctx context.Context, c *client.Client, targetURL string) {
	wsURL := toWebSocketURL(targetURL)
	sess, err := c.WebSocket(ctx, wsURL, websocket.DialOptions{})
	if err != nil {
		log.Warn().Err(err).Str("url", wsURL).Msg("websocket dial skipped")
		return
	}
	defer sess.Close(1000, "")

	if err := sess.SendText("ping from fastclient example"); err != nil {
		log.Warn().Err(err).Msg("websocket send failed")
		return
	}
	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err := sess.Receive(recvCtx)
	if err != nil {
		log.Warn().Err(err).Msg("websocket receive failed")
		return
	}
	log.Info().Str("reply", string(msg.Raw)).Msg("websocket echo completed")
}

func runSSE(ctx context.Context, c *client.Client, targetURL string) {
	sseURL := targetURL
	sess, err := c.SSE(sseURL, sse.Options{Reconnect: true})
	if err != nil {
		log.Warn().Err(err).Msg("sse session skipped")
		return
	}

	eventCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ev, err := sess.Next(eventCtx)
	if err != nil {
		log.Warn().Err(err).Msg("sse first event not received")
		return
	}
	log.Info().Str("event", ev.Event).Str("data", ev.Data).Msg("sse event received")
}

func toWebSocketURL(targetURL string) string {
	switch {
	case strings.HasPrefix(targetURL, "https://"):
		return "wss://" + strings.TrimPrefix(targetURL, "https://")
	case strings.HasPrefix(targetURL, "http://"):
		return "ws://" + strings.TrimPrefix(targetURL, "http://")
	default:
		return targetURL
	}
}

func configureLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func awaitSignal(cancel context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("signal received, shutting down")
	cancel()
}
