package websocket

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/searchktools/fastclient/core/conn"
	"github.com/searchktools/fastclient/core/connector"
	"github.com/searchktools/fastclient/core/pool"
	"github.com/searchktools/fastclient/core/timeout"
	fastclienterrors "github.com/searchktools/fastclient/errors"
)

// state tracks the close handshake's progress (§4.6 "Close handshake").
type state int

const (
	stateOpen state = iota
	stateClosing
	stateClosed
)

// pendingPing is an outstanding ping awaiting its matching pong.
type pendingPing struct {
	payload []byte
	done    chan []byte
}

// Session owns one upgraded connection for its lifetime; it is never
// returned to a connection pool (§4.6: "the connection leaves the pool
// and is owned by the WS session").
type Session struct {
	url          string
	connection   *conn.Connection
	br           *bufio.Reader
	pool         pool.Pool
	connector    *connector.Connector
	protocol     ProtocolHandler
	maxFrameSize uint64

	writeMu sync.Mutex

	mu          sync.Mutex
	st          state
	readLock    sync.Mutex
	pending     map[string]*pendingPing
	fragOpcode  Opcode
	fragBuf     []byte
	fragmenting bool
}

// DialOptions configures session establishment beyond the HTTP upgrade
// handshake itself (§4.6).
type DialOptions struct {
	Handshake HandshakeOptions
	Protocol  ProtocolHandler // defaults to DefaultTextHandler

	// MaxFrameSize caps a single incoming frame's payload length; Receive
	// fails with errors.WSFrameTooLarge instead of buffering an
	// arbitrarily large payload when a peer sends one over this (§7).
	// 0 means unbounded.
	MaxFrameSize uint64
}

// Dial performs the HTTP/1.1 upgrade handshake against target and, on
// success, returns a Session owning the detached connection.
func Dial(ctx context.Context, cn *connector.Connector, timeouts timeout.Policy, target *url.URL, opts DialOptions) (*Session, error) {
	connection, p, err := cn.Acquire(ctx, target.String())
	if err != nil {
		return nil, err
	}

	clientKey, err := newClientKey()
	if err != nil {
		cn.Drop(p, connection)
		return nil, fastclienterrors.WSHandshakeFailed(target.String(), 0, err)
	}

	handshakeCtx, cancel := timeouts.WithRead(ctx)
	defer cancel()
	if dl, ok := handshakeCtx.Deadline(); ok {
		_ = connection.Conn().SetDeadline(dl)
	}

	hs := opts.Handshake
	if opts.Protocol != nil && opts.Protocol.Name() != "" {
		hs.Protocols = append(append([]string(nil), hs.Protocols...), opts.Protocol.Name())
	}
	req := buildUpgradeRequest(target, target.Host, clientKey, hs)
	if _, err := req.WriteTo(connection.Conn()); err != nil {
		cn.Drop(p, connection)
		return nil, fastclienterrors.WSHandshakeFailed(target.String(), 0, err)
	}

	br := bufio.NewReader(connection.Conn())
	if _, err := verifyUpgradeResponse(br, target.String(), clientKey); err != nil {
		cn.Drop(p, connection)
		return nil, err
	}
	_ = connection.Conn().SetDeadline(time.Time{})

	protocol := opts.Protocol
	if protocol == nil {
		protocol = DefaultTextHandler()
	}

	s := &Session{
		url:          target.String(),
		connection:   connection,
		br:           br,
		pool:         p,
		connector:    cn,
		protocol:     protocol,
		maxFrameSize: opts.MaxFrameSize,
		pending:      make(map[string]*pendingPing),
	}
	return s, nil
}

// SendText sends msg as a single TEXT frame.
func (s *Session) SendText(msg string) error {
	return s.sendFrame(OpText, []byte(msg))
}

// SendBinary sends msg as a single BINARY frame.
func (s *Session) SendBinary(msg []byte) error {
	return s.sendFrame(OpBinary, msg)
}

func (s *Session) sendFrame(op Opcode, payload []byte) error {
	s.mu.Lock()
	if s.st != stateOpen {
		s.mu.Unlock()
		return fmt.Errorf("websocket: session is not open")
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeFrame(s.connection.Conn(), true, op, append([]byte(nil), payload...))
}

// Ping sends a PING with payload and returns a channel that receives the
// matching PONG payload (§4.6 "Ping/Pong").
func (s *Session) Ping(payload []byte) (<-chan []byte, error) {
	key := string(payload)
	done := make(chan []byte, 1)

	s.mu.Lock()
	if s.st != stateOpen {
		s.mu.Unlock()
		return nil, fmt.Errorf("websocket: session is not open")
	}
	s.pending[key] = &pendingPing{payload: payload, done: done}
	s.mu.Unlock()

	s.writeMu.Lock()
	err := writeFrame(s.connection.Conn(), true, OpPing, append([]byte(nil), payload...))
	s.writeMu.Unlock()
	if err != nil {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		return nil, err
	}
	return done, nil
}

// Close sends a CLOSE frame with code/reason (default 1000; 1006 is
// never sent on the wire, §4.6) and releases the underlying connection.
func (s *Session) Close(code int, reason string) error {
	s.mu.Lock()
	if s.st == stateClosed {
		s.mu.Unlock()
		return nil
	}
	if code == 0 {
		code = 1000
	}
	if code == 1006 {
		code = 1000
	}
	s.st = stateClosing
	s.mu.Unlock()

	payload := closeFramePayload(code, reason)
	s.writeMu.Lock()
	err := writeFrame(s.connection.Conn(), true, OpClose, payload)
	s.writeMu.Unlock()

	s.mu.Lock()
	s.st = stateClosed
	s.mu.Unlock()

	s.connector.Drop(s.pool, s.connection)
	return err
}

func closeFramePayload(code int, reason string) []byte {
	buf := make([]byte, 2+len(reason))
	buf[0] = byte(code >> 8)
	buf[1] = byte(code)
	copy(buf[2:], reason)
	return buf
}

// Receive blocks for the next complete message (a logical message after
// fragmentation reassembly), handling control frames transparently
// in-between (§4.6 "Message delivery", "Fragmentation state"). Only one
// goroutine may call Receive at a time; a second concurrent call raises
// ConcurrentReadError.
func (s *Session) Receive(ctx context.Context) (*Message, error) {
	if !s.readLock.TryLock() {
		return nil, fastclienterrors.ConcurrentReadError(s.url)
	}
	defer s.readLock.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		_ = s.connection.Conn().SetReadDeadline(dl)
	}

	for {
		h, err := readFrameHeader(s.br)
		if err != nil {
			return nil, fastclienterrors.WSProtocolError(s.url, err)
		}
		if s.maxFrameSize > 0 && h.Length > s.maxFrameSize {
			s.connector.Drop(s.pool, s.connection)
			return nil, fastclienterrors.WSFrameTooLarge(s.url, int64(s.maxFrameSize), int64(h.Length))
		}
		payload, err := readFramePayload(s.br, h)
		if err != nil {
			return nil, fastclienterrors.WSProtocolError(s.url, err)
		}

		switch h.Opcode {
		case OpPing:
			s.writeMu.Lock()
			_ = writeFrame(s.connection.Conn(), true, OpPong, append([]byte(nil), payload...))
			s.writeMu.Unlock()
			continue
		case OpPong:
			s.deliverPong(payload)
			continue
		case OpClose:
			return s.handlePeerClose(payload)
		case OpText, OpBinary, OpContinuation:
			msg, done, err := s.accumulate(h, payload)
			if err != nil {
				return nil, fastclienterrors.WSProtocolError(s.url, err)
			}
			if !done {
				continue
			}
			return msg, nil
		default:
			return nil, fastclienterrors.WSProtocolError(s.url, fmt.Errorf("unknown opcode %d", h.Opcode))
		}
	}
}

// accumulate folds one data/continuation frame into the in-flight
// fragmented message, returning the completed Message once FIN arrives
// (§4.6 "Fragmentation state").
func (s *Session) accumulate(h *frameHeader, payload []byte) (*Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.Opcode != OpContinuation {
		if s.fragmenting {
			return nil, false, fmt.Errorf("interleaved data frame during fragmentation")
		}
		if h.Fin {
			decoded, err := s.protocol.Decode(payload)
			if err != nil {
				return nil, false, err
			}
			return &Message{Type: h.Opcode, Data: decoded, Raw: payload, Opcode: h.Opcode}, true, nil
		}
		s.fragmenting = true
		s.fragOpcode = h.Opcode
		s.fragBuf = append([]byte(nil), payload...)
		return nil, false, nil
	}

	if !s.fragmenting {
		return nil, false, fmt.Errorf("continuation frame with no fragmented message in progress")
	}
	s.fragBuf = append(s.fragBuf, payload...)
	if !h.Fin {
		return nil, false, nil
	}

	s.fragmenting = false
	decoded, err := s.protocol.Decode(s.fragBuf)
	msg := &Message{Type: s.fragOpcode, Data: decoded, Raw: s.fragBuf, Opcode: s.fragOpcode}
	s.fragBuf = nil
	return msg, true, err
}

func (s *Session) deliverPong(payload []byte) {
	key := string(payload)
	s.mu.Lock()
	p, ok := s.pending[key]
	if ok {
		delete(s.pending, key)
	}
	s.mu.Unlock()
	if ok {
		p.done <- payload
	}
}

func (s *Session) handlePeerClose(payload []byte) (*Message, error) {
	code, reason := parseClosePayload(payload)

	s.mu.Lock()
	wasOpen := s.st == stateOpen
	s.st = stateClosed
	s.mu.Unlock()

	if wasOpen {
		s.writeMu.Lock()
		_ = writeFrame(s.connection.Conn(), true, OpClose, payload)
		s.writeMu.Unlock()
	}

	s.connector.Drop(s.pool, s.connection)
	return nil, fastclienterrors.NewWSClosed(s.url, code, reason)
}

func parseClosePayload(payload []byte) (int, string) {
	if len(payload) < 2 {
		return 1005, ""
	}
	code := int(payload[0])<<8 | int(payload[1])
	return code, string(payload[2:])
}
