//go:build linux || darwin || freebsd

package conn

import (
	"crypto/tls"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// peekStale performs a non-blocking MSG_PEEK read of one byte. A read of
// 0 bytes means the peer sent FIN (half-closed); an error other than
// "would block" means the socket is dead. Either way the connection is
// unfit for reuse.
func peekStale(c net.Conn) bool {
	raw, ok := rawConn(c)
	if !ok {
		return false
	}

	var stale bool
	var buf [1]byte
	err := raw.Read(func(fd uintptr) bool {
		n, _, rerr := unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		if rerr != nil {
			if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK {
				stale = false
				return true
			}
			stale = true
			return true
		}
		stale = n == 0
		return true
	})
	if err != nil {
		return false
	}
	return stale
}

func rawConn(c net.Conn) (syscall.RawConn, bool) {
	type syscallConner interface {
		SyscallConn() (syscall.RawConn, error)
	}
	target := c
	if tc, ok := c.(*tls.Conn); ok {
		target = tc.NetConn()
	}
	sc, ok := target.(syscallConner)
	if !ok {
		return nil, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, false
	}
	return raw, true
}
