package websocket

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/searchktools/fastclient/core/http1"
	fastclienterrors "github.com/searchktools/fastclient/errors"
	"github.com/searchktools/fastclient/internal/urlutil"
)

// wsMagic is the GUID RFC 6455 appends to the client key before hashing
// (§4.6).
const wsMagic = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// HandshakeOptions configures the upgrade request (§4.6).
type HandshakeOptions struct {
	Protocols []string // offered via Sec-WebSocket-Protocol
	Headers   *urlutil.HeaderStore
}

// newClientKey generates the base64(random 16 bytes) Sec-WebSocket-Key.
func newClientKey() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// acceptValue computes the expected Sec-WebSocket-Accept for key.
func acceptValue(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(wsMagic))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// buildUpgradeRequest constructs the HTTP/1.1 GET that requests the
// upgrade (§4.6).
func buildUpgradeRequest(target *url.URL, host, clientKey string, opts HandshakeOptions) *http1.Request {
	h := http1.BaseHeaders(host, "", true)
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	h.Set("Sec-WebSocket-Version", "13")
	h.Set("Sec-WebSocket-Key", clientKey)
	if len(opts.Protocols) > 0 {
		h.Set("Sec-WebSocket-Protocol", strings.Join(opts.Protocols, ", "))
	}
	if opts.Headers != nil {
		h.Merge(opts.Headers)
	}
	return &http1.Request{Method: "GET", URL: target, Headers: h, Body: http1.RequestBody{Kind: http1.BodyNone}}
}

// verifyUpgradeResponse validates a 101 response against §4.6's rules,
// reading the status line and headers directly off br (the engine hands
// the raw connection reader in before any HTTP/1.1 body framing would
// apply, since a 101 response carries no body).
func verifyUpgradeResponse(br *bufio.Reader, target string, clientKey string) (selectedProtocol string, err error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", fastclienterrors.WSHandshakeFailed(target, 0, err)
	}
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", fastclienterrors.WSHandshakeFailed(target, 0, nil)
	}

	headers := urlutil.NewHeaderStore()
	for {
		hl, err := br.ReadString('\n')
		if err != nil {
			return "", fastclienterrors.WSHandshakeFailed(target, 0, err)
		}
		hl = strings.TrimRight(hl, "\r\n")
		if hl == "" {
			break
		}
		idx := strings.IndexByte(hl, ':')
		if idx < 0 {
			continue
		}
		headers.Add(strings.TrimSpace(hl[:idx]), strings.TrimSpace(hl[idx+1:]))
	}

	status := parts[1]
	if status != "101" {
		return "", fastclienterrors.WSHandshakeFailed(target, atoiOr(status, 0), nil)
	}

	upgrade, _ := headers.Get("Upgrade")
	if !strings.EqualFold(strings.TrimSpace(upgrade), "websocket") {
		return "", fastclienterrors.WSHandshakeFailed(target, 101, nil)
	}

	conn, _ := headers.Get("Connection")
	if !strings.Contains(strings.ToLower(conn), "upgrade") {
		return "", fastclienterrors.WSHandshakeFailed(target, 101, nil)
	}

	accept, _ := headers.Get("Sec-WebSocket-Accept")
	if accept != acceptValue(clientKey) {
		return "", fastclienterrors.WSHandshakeFailed(target, 101, nil)
	}

	proto, _ := headers.Get("Sec-WebSocket-Protocol")
	return proto, nil
}

func atoiOr(s string, fallback int) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	if n == 0 && s != "0" {
		return fallback
	}
	return n
}
