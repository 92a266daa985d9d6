package http1

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	fastclienterrors "github.com/searchktools/fastclient/errors"
	"github.com/searchktools/fastclient/internal/urlutil"
)

// maxHeaderBlock bounds the status-line+header block size (§4.4: "reject
// if block exceeds 64 KiB").
const maxHeaderBlock = 64 * 1024

// parsedHead is the status line and header block read off the wire,
// before body framing is resolved.
type parsedHead struct {
	StatusCode int
	Reason     string
	Headers    *urlutil.HeaderStore
}

// readHead reads up to and including the CRLFCRLF delimiter, then parses
// the status line and header fields (§4.4 "Response reception").
func readHead(br *bufio.Reader, method, url string) (*parsedHead, error) {
	var block bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fastclienterrors.HTTPParseError(method, url, err)
		}
		block.WriteString(line)
		if block.Len() > maxHeaderBlock {
			return nil, fastclienterrors.HTTPParseError(method, url, fmt.Errorf("header block exceeds %d bytes", maxHeaderBlock))
		}
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}

	lines := strings.Split(strings.TrimRight(block.String(), "\r\n"), "\n")
	if len(lines) == 0 {
		return nil, fastclienterrors.HTTPParseError(method, url, fmt.Errorf("empty response"))
	}

	statusLine := strings.TrimRight(lines[0], "\r")
	statusCode, reason, err := parseStatusLine(statusLine)
	if err != nil {
		return nil, fastclienterrors.HTTPParseError(method, url, err)
	}

	headers := urlutil.NewHeaderStore()
	for _, raw := range lines[1:] {
		line := strings.TrimRight(raw, "\r")
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, fastclienterrors.HTTPParseError(method, url, fmt.Errorf("malformed header line %q", line))
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		headers.Add(name, value)
	}

	return &parsedHead{StatusCode: statusCode, Reason: reason, Headers: headers}, nil
}

// parseStatusLine tolerantly parses "HTTP/1.x CODE [reason]" (§4.4:
// "empty reason allowed; HTTP-version must be HTTP/1.x").
func parseStatusLine(line string) (int, string, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0, "", fmt.Errorf("malformed status line %q", line)
	}
	if !strings.HasPrefix(parts[0], "HTTP/1.") {
		return 0, "", fmt.Errorf("unsupported HTTP version %q", parts[0])
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", fmt.Errorf("invalid status code %q: %w", parts[1], err)
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}
	return code, reason, nil
}

// bodyFraming describes how the response body is delimited on the wire.
type bodyFraming int

const (
	framingNone bodyFraming = iota
	framingChunked
	framingContentLength
	framingEOF
)

// resolveFraming determines body framing from the parsed headers, per
// §4.4's "Determine body framing" rules.
func resolveFraming(h *urlutil.HeaderStore, method string) (bodyFraming, int64) {
	if te, ok := h.Get("Transfer-Encoding"); ok && strings.Contains(strings.ToLower(te), "chunked") {
		return framingChunked, 0
	}
	if cl, ok := h.Get("Content-Length"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64); err == nil {
			return framingContentLength, n
		}
	}
	if method == "HEAD" {
		return framingNone, 0
	}
	return framingEOF, 0
}

// bodyReader returns the correctly-framed raw (still possibly
// compressed) body reader for br given the resolved framing.
func bodyReader(br *bufio.Reader, framing bodyFraming, length int64, method, url string) io.Reader {
	switch framing {
	case framingNone:
		return bytes.NewReader(nil)
	case framingChunked:
		return newChunkedReader(br, method, url)
	case framingContentLength:
		return io.LimitReader(br, length)
	default: // framingEOF
		return br
	}
}
