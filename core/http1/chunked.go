package http1

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/searchktools/fastclient/internal/pools"

	fastclienterrors "github.com/searchktools/fastclient/errors"
)

// chunkScratch supplies the scratch buffer writeChunked reads request
// bodies into, reused across requests instead of allocating fresh on
// every chunked write.
var chunkScratch = pools.NewBytePool()

// writeChunked frames src as chunked transfer-encoding: each read yields
// one chunk `hex(len) CRLF bytes CRLF`, terminated by `0 CRLF CRLF`
// (§4.4).
func writeChunked(w io.Writer, src io.Reader) (int64, error) {
	var total int64
	buf := chunkScratch.Get(32 * 1024)
	defer chunkScratch.Put(buf)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			header := fmt.Sprintf("%x\r\n", n)
			if wn, werr := io.WriteString(w, header); werr != nil {
				return total + int64(wn), werr
			} else {
				total += int64(wn)
			}
			if wn, werr := w.Write(buf[:n]); werr != nil {
				return total + int64(wn), werr
			} else {
				total += int64(wn)
			}
			if wn, werr := io.WriteString(w, "\r\n"); werr != nil {
				return total + int64(wn), werr
			} else {
				total += int64(wn)
			}
		}
		if rerr == io.EOF {
			wn, werr := io.WriteString(w, "0\r\n\r\n")
			return total + int64(wn), werr
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// chunkedReader decodes a chunked-transfer body into a plain byte
// stream, reading chunk-size lines off br.
type chunkedReader struct {
	br       *bufio.Reader
	method   string
	url      string
	remain   int64
	done     bool
	trailing bool
}

func newChunkedReader(br *bufio.Reader, method, url string) *chunkedReader {
	return &chunkedReader{br: br, method: method, url: url}
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}

	if c.remain == 0 {
		if err := c.readChunkSize(); err != nil {
			return 0, err
		}
		if c.remain == 0 {
			c.done = true
			if err := c.consumeTrailer(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
	}

	max := int64(len(p))
	if max > c.remain {
		max = c.remain
	}
	n, err := c.br.Read(p[:max])
	c.remain -= int64(n)
	if err != nil && err != io.EOF {
		return n, fastclienterrors.HTTPParseError(c.method, c.url, err)
	}
	if c.remain == 0 {
		// consume the chunk's trailing CRLF
		if _, err := c.br.Discard(2); err != nil {
			return n, fastclienterrors.HTTPParseError(c.method, c.url, err)
		}
	}
	return n, nil
}

func (c *chunkedReader) readChunkSize() error {
	line, err := c.br.ReadString('\n')
	if err != nil {
		return fastclienterrors.HTTPParseError(c.method, c.url, err)
	}
	line = strings.TrimRight(line, "\r\n")
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
	if err != nil {
		return fastclienterrors.HTTPParseError(c.method, c.url, fmt.Errorf("invalid chunk size %q: %w", line, err))
	}
	c.remain = size
	return nil
}

func (c *chunkedReader) consumeTrailer() error {
	for {
		line, err := c.br.ReadString('\n')
		if err != nil {
			return fastclienterrors.HTTPParseError(c.method, c.url, err)
		}
		if strings.TrimRight(line, "\r\n") == "" {
			return nil
		}
	}
}
