package connector

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
)

// ProxyConfig describes an HTTP CONNECT proxy (§4.2 "Proxies").
type ProxyConfig struct {
	Addr     string // host:port
	Username string
	Password string
}

func (p *ProxyConfig) authHeader() string {
	if p.Username == "" && p.Password == "" {
		return ""
	}
	token := base64.StdEncoding.EncodeToString([]byte(p.Username + ":" + p.Password))
	return "Basic " + token
}

// connectTunnel dials the proxy and issues CONNECT target, returning the
// raw tunnel once the proxy answers 200. Used for https/wss origins
// (§4.2: "a CONNECT request is issued through the proxy, then TLS is
// started on the resulting tunnel").
func connectTunnel(ctx context.Context, dialer *net.Dialer, proxy *ProxyConfig, target string) (net.Conn, error) {
	raw, err := dialer.DialContext(ctx, "tcp", proxy.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial proxy %s: %w", proxy.Addr, err)
	}

	req, err := http.NewRequest(http.MethodConnect, "http://"+target, nil)
	if err != nil {
		raw.Close()
		return nil, err
	}
	req.Host = target
	if auth := proxy.authHeader(); auth != "" {
		req.Header.Set("Proxy-Authorization", auth)
	}

	if err := req.Write(raw); err != nil {
		raw.Close()
		return nil, fmt.Errorf("write CONNECT: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(raw), req)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("read CONNECT response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw.Close()
		return nil, fmt.Errorf("proxy CONNECT to %s failed: %s", target, resp.Status)
	}
	return raw, nil
}
