//go:build !(linux || darwin || freebsd)

package conn

import "net"

// peekStale has no non-blocking peek primitive on this platform; staleness
// is instead caught by the HTTP/1.1 engine's stale-retry-once logic on
// actual write failure (§4.4).
func peekStale(c net.Conn) bool {
	return false
}
