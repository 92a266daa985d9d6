package http1

import (
	"bufio"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/searchktools/fastclient/internal/urlutil"
)

func TestRequestWriteToSimpleGET(t *testing.T) {
	u := mustParseTestURL(t, "http://example.com/path?x=1")
	h := BaseHeaders("example.com", "", true)

	req := &Request{Method: "GET", URL: u, Headers: h, Body: RequestBody{Kind: BodyNone}}

	var buf strings.Builder
	if _, err := req.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "GET /path?x=1 HTTP/1.1\r\n") {
		t.Errorf("unexpected request line: %q", out)
	}
	if !strings.Contains(out, "Host: example.com\r\n") {
		t.Errorf("expected Host header, got %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\n") {
		t.Errorf("expected header block to end with blank line, got %q", out)
	}
}

func TestRequestWriteToChunkedBody(t *testing.T) {
	u := mustParseTestURL(t, "http://example.com/upload")
	h := BaseHeaders("example.com", "", true)
	SetChunked(h)

	req := &Request{
		Method:  "POST",
		URL:     u,
		Headers: h,
		Body:    RequestBody{Kind: BodyChunked, Stream: strings.NewReader("hello")},
	}

	var buf strings.Builder
	if _, err := req.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "5\r\nhello\r\n0\r\n\r\n") {
		t.Errorf("expected chunked framing, got %q", out)
	}
}

func TestReadHeadParsesStatusLineAndHeaders(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nhello"
	br := bufio.NewReader(strings.NewReader(raw))

	head, err := readHead(br, "GET", "http://example.com/")
	if err != nil {
		t.Fatalf("readHead: %v", err)
	}
	if head.StatusCode != 200 || head.Reason != "OK" {
		t.Errorf("unexpected status: %d %q", head.StatusCode, head.Reason)
	}
	ct, _ := head.Headers.Get("Content-Type")
	if ct != "text/plain" {
		t.Errorf("unexpected Content-Type: %q", ct)
	}

	rest, _ := io.ReadAll(br)
	if string(rest) != "hello" {
		t.Errorf("unexpected leftover body: %q", rest)
	}
}

func TestReadHeadToleratesEmptyReason(t *testing.T) {
	raw := "HTTP/1.1 204 \r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))

	head, err := readHead(br, "GET", "http://example.com/")
	if err != nil {
		t.Fatalf("readHead: %v", err)
	}
	if head.StatusCode != 204 {
		t.Errorf("unexpected status code: %d", head.StatusCode)
	}
}

func TestResolveFramingChunked(t *testing.T) {
	h := urlutil.NewHeaderStore()
	h.Add("Transfer-Encoding", "chunked")
	framing, _ := resolveFraming(h, "GET")
	if framing != framingChunked {
		t.Errorf("expected chunked framing, got %v", framing)
	}
}

func TestResolveFramingContentLength(t *testing.T) {
	h := urlutil.NewHeaderStore()
	h.Add("Content-Length", "42")
	framing, length := resolveFraming(h, "GET")
	if framing != framingContentLength || length != 42 {
		t.Errorf("expected content-length framing of 42, got %v %d", framing, length)
	}
}

func TestResolveFramingEOFFallback(t *testing.T) {
	h := urlutil.NewHeaderStore()
	framing, _ := resolveFraming(h, "GET")
	if framing != framingEOF {
		t.Errorf("expected EOF framing, got %v", framing)
	}
}

func TestChunkedReaderDecodesMultipleChunks(t *testing.T) {
	raw := "5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	cr := newChunkedReader(br, "GET", "http://example.com/")

	data, err := io.ReadAll(cr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("unexpected decoded chunks: %q", data)
	}
}

func TestMultipartComposerEncodesParts(t *testing.T) {
	parts := []MultipartPart{
		{Name: "field1", Data: []byte("value1")},
		{Name: "file1", Filename: "a.txt", ContentType: "text/plain", Data: []byte("contents")},
	}
	mc := NewMultipartComposer(parts)
	if len(mc.Boundary) != 32 {
		t.Fatalf("expected 32-char boundary, got %d chars", len(mc.Boundary))
	}

	data, err := io.ReadAll(mc.AsReader())
	if err != nil {
		t.Fatalf("AsReader: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `name="field1"`) {
		t.Errorf("missing field1 part: %q", out)
	}
	if !strings.Contains(out, `filename="a.txt"`) {
		t.Errorf("missing filename: %q", out)
	}
	if !strings.HasSuffix(out, "--"+mc.Boundary+"--\r\n") {
		t.Errorf("missing trailer: %q", out)
	}
}

func mustParseTestURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, _, err := urlutil.ParseURL(raw)
	if err != nil {
		t.Fatalf("ParseURL(%q): %v", raw, err)
	}
	return u
}
