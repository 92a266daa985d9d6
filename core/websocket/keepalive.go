package websocket

import (
	"context"
	"crypto/rand"
	"time"
)

// StartKeepalive launches a background goroutine that sends a PING every
// pingInterval and closes the session with code 1011 if no matching PONG
// arrives within pongTimeout (§4.6 "Automatic keepalive (optional)"). The
// returned stop function cancels the loop; it does not close the
// session.
func (s *Session) StartKeepalive(ctx context.Context, pingInterval, pongTimeout time.Duration) (stop func()) {
	loopCtx, cancel := context.WithCancel(ctx)
	go s.keepaliveLoop(loopCtx, pingInterval, pongTimeout)
	return cancel
}

func (s *Session) keepaliveLoop(ctx context.Context, pingInterval, pongTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var payload [8]byte
			if _, err := rand.Read(payload[:]); err != nil {
				continue
			}
			done, err := s.Ping(payload[:])
			if err != nil {
				return
			}
			select {
			case <-done:
			case <-time.After(pongTimeout):
				_ = s.Close(1011, "pong timeout")
				return
			case <-ctx.Done():
				return
			}
		}
	}
}
