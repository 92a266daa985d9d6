package websocket

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/searchktools/fastclient/core/conn"
	"github.com/searchktools/fastclient/core/pool"
)

// fakeDropPool is a minimal pool.Pool that only needs to survive a Drop
// call from Receive's oversized-frame path; every other method is
// unreachable in that test.
type fakeDropPool struct{ dropped int }

func (p *fakeDropPool) Acquire(ctx context.Context, dial pool.Dialer) (*conn.Connection, error) {
	panic("not implemented")
}
func (p *fakeDropPool) Release(c *conn.Connection)     {}
func (p *fakeDropPool) Drop(c *conn.Connection)        { p.dropped++; _ = c.Close() }
func (p *fakeDropPool) Shutdown(ctx context.Context) error { return nil }
func (p *fakeDropPool) Stats() pool.Stats              { return pool.Stats{} }

func TestWriteFrameMasksPayload(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello")
	if err := writeFrame(&buf, true, OpText, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	out := buf.Bytes()
	if out[0] != 0x81 { // FIN=1, opcode=text
		t.Errorf("unexpected first byte: %x", out[0])
	}
	if out[1]&0x80 == 0 {
		t.Errorf("expected MASK bit set, got %x", out[1])
	}
	length := int(out[1] & 0x7F)
	if length != 5 {
		t.Errorf("expected length 5, got %d", length)
	}

	maskKey := out[2:6]
	masked := out[6:]
	unmasked := make([]byte, len(masked))
	for i := range masked {
		unmasked[i] = masked[i] ^ maskKey[i%4]
	}
	if string(unmasked) != "hello" {
		t.Errorf("unmasking produced %q, want %q", unmasked, "hello")
	}
}

func TestReadFrameHeaderRejectsMaskedServerFrame(t *testing.T) {
	buf := []byte{0x81, 0x85, 0, 0, 0, 0, 'h', 'e', 'l', 'l', 'o'}
	_, err := readFrameHeader(bytes.NewReader(buf))
	if err == nil {
		t.Fatal("expected error for masked server frame")
	}
}

func TestReadFrameHeaderExtendedLength16(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x82, 126, 0, 200}) // binary, unmasked, len=200
	h, err := readFrameHeader(&buf)
	if err != nil {
		t.Fatalf("readFrameHeader: %v", err)
	}
	if h.Length != 200 || h.Opcode != OpBinary {
		t.Errorf("unexpected header: %+v", h)
	}
}

func TestControlFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, 126)
	err := writeFrame(&buf, true, OpPing, payload)
	if err == nil {
		t.Fatal("expected error for oversized control frame")
	}
}

func TestAcceptValueMatchesRFCExample(t *testing.T) {
	// RFC 6455 §1.3 worked example.
	key := "dGhlIHNhbXBsZSBub25jZQ=="
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got := acceptValue(key); got != want {
		t.Errorf("acceptValue(%q) = %q, want %q", key, got, want)
	}
}

func TestSessionAccumulateFragmentedMessage(t *testing.T) {
	s := &Session{protocol: DefaultTextHandler(), pending: make(map[string]*pendingPing)}

	msg, done, err := s.accumulate(&frameHeader{Opcode: OpText, Fin: false}, []byte("hel"))
	if err != nil || done {
		t.Fatalf("expected fragment start, got done=%v err=%v", done, err)
	}
	if msg != nil {
		t.Fatalf("expected nil message mid-fragment")
	}

	msg, done, err = s.accumulate(&frameHeader{Opcode: OpContinuation, Fin: true}, []byte("lo"))
	if err != nil || !done {
		t.Fatalf("expected completion, got done=%v err=%v", done, err)
	}
	if msg.Data.(string) != "hello" {
		t.Errorf("unexpected reassembled message: %v", msg.Data)
	}
}

func TestSessionAccumulateInterleavedDataFrameIsProtocolError(t *testing.T) {
	s := &Session{protocol: DefaultTextHandler(), pending: make(map[string]*pendingPing)}

	_, _, err := s.accumulate(&frameHeader{Opcode: OpText, Fin: false}, []byte("hel"))
	if err != nil {
		t.Fatalf("unexpected error starting fragment: %v", err)
	}

	_, _, err = s.accumulate(&frameHeader{Opcode: OpBinary, Fin: true}, []byte("oops"))
	if err == nil {
		t.Fatal("expected protocol error for interleaved data frame")
	}
}

func TestReceiveRejectsFrameOverMaxFrameSize(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	connection := conn.New("test-key", clientSide, false)
	p := &fakeDropPool{}

	s := &Session{
		url:          "ws://example.invalid/ws",
		connection:   connection,
		br:           bufio.NewReader(clientSide),
		pool:         p,
		connector:    nil,
		protocol:     DefaultTextHandler(),
		maxFrameSize: 16,
		pending:      make(map[string]*pendingPing),
	}

	go func() {
		// An unmasked server TEXT frame (§4.6 "server frames must never
		// be masked") with a 64-byte payload, extended-length-free since
		// 64 < 126.
		header := []byte{0x80 | byte(OpText), 64}
		serverSide.Write(header)
		serverSide.Write(make([]byte, 64))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.Receive(ctx)
	if err == nil {
		t.Fatal("expected WSFrameTooLarge error")
	}
}

func TestJSONHandlerRoundTrip(t *testing.T) {
	h := DefaultJSONHandler()
	if h.Name() != "json" {
		t.Fatalf("unexpected protocol name: %q", h.Name())
	}

	raw, err := h.Encode(map[string]interface{}{"n": float64(3), "s": "hi"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := h.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("expected decoded map, got %T", got)
	}
	if m["n"] != float64(3) || m["s"] != "hi" {
		t.Errorf("unexpected round-tripped value: %+v", m)
	}
}

func TestParseClosePayload(t *testing.T) {
	code, reason := parseClosePayload([]byte{0x03, 0xe8, 'b', 'y', 'e'})
	if code != 1000 || reason != "bye" {
		t.Errorf("unexpected close payload parse: code=%d reason=%q", code, reason)
	}

	code2, reason2 := parseClosePayload(nil)
	if code2 != 1005 || reason2 != "" {
		t.Errorf("expected default 1005/empty for absent payload, got %d %q", code2, reason2)
	}
}
