// Package urlutil implements C1: URL parsing/normalization and the
// case-insensitive, multi-valued header store shared by every engine.
package urlutil

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

// Origin is the (scheme, host, port) tuple that keys connection pools
// (§3). ws/wss reuse the corresponding http/https pool as specified.
type Origin struct {
	Scheme string
	Host   string
	Port   string
}

// PoolScheme returns the scheme a connection pool should key on: ws/wss
// collapse onto http/https.
func (o Origin) PoolScheme() string {
	switch o.Scheme {
	case "wss":
		return "https"
	case "ws":
		return "http"
	default:
		return o.Scheme
	}
}

func (o Origin) String() string {
	return fmt.Sprintf("%s://%s:%s", o.Scheme, o.Host, o.Port)
}

// IsSecure reports whether the origin requires a TLS upgrade.
func (o Origin) IsSecure() bool {
	return o.Scheme == "https" || o.Scheme == "wss"
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
}

// ParseURL parses raw into a *url.URL and an Origin, applying IDNA
// normalization to non-ASCII hosts and filling in the scheme's default
// port when absent (§4 C1).
func ParseURL(raw string) (*url.URL, Origin, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, Origin{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, Origin{}, fmt.Errorf("parse url: missing scheme or host in %q", raw)
	}

	host := u.Hostname()
	if needsIDNA(host) {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return nil, Origin{}, fmt.Errorf("idna encode host %q: %w", host, err)
		}
		host = ascii
	}

	port := u.Port()
	if port == "" {
		port = defaultPorts[strings.ToLower(u.Scheme)]
	}

	return u, Origin{
		Scheme: strings.ToLower(u.Scheme),
		Host:   host,
		Port:   port,
	}, nil
}

// needsIDNA reports whether host contains non-ASCII bytes and is not a
// bare IP literal (IP literals bypass IDNA and resolution entirely, §4.1).
func needsIDNA(host string) bool {
	if net.ParseIP(host) != nil {
		return false
	}
	for i := 0; i < len(host); i++ {
		if host[i] > 0x7f {
			return true
		}
	}
	return false
}

// Resolve resolves ref against base the way a redirect Location header is
// resolved: absolute references replace base entirely, relative ones are
// joined (§4.5).
func Resolve(base *url.URL, ref string) (*url.URL, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse redirect location: %w", err)
	}
	return base.ResolveReference(refURL), nil
}

// EncodeParams percent-encodes a params mapping into a query string,
// RFC 3986 unreserved set, preserving insertion order and duplicate keys
// as repeated pairs (§6).
func EncodeParams(pairs [][2]string) string {
	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(strings.ReplaceAll(url.QueryEscape(kv[0]), "+", "%20"))
		b.WriteByte('=')
		b.WriteString(strings.ReplaceAll(url.QueryEscape(kv[1]), "+", "%20"))
	}
	return b.String()
}

// SortedKeys is a small helper used by tests and form-encoding to produce
// deterministic output from a map when insertion order isn't available.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
