package connector

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// tlsUpgrade wraps raw in TLS for host, advertising ALPN per §4.3:
// "h2,http/1.1" when HTTP/2 is enabled, else "http/1.1" alone.
// verifySSL=false disables certificate verification entirely.
func tlsUpgrade(ctx context.Context, raw net.Conn, host string, http2Enabled, verifySSL bool) (*tls.Conn, error) {
	protos := []string{"http/1.1"}
	if http2Enabled {
		protos = []string{"h2", "http/1.1"}
	}

	cfg := &tls.Config{
		ServerName:         host,
		NextProtos:         protos,
		InsecureSkipVerify: !verifySSL,
	}

	tc := tls.Client(raw, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		tc.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", host, err)
	}
	return tc, nil
}
