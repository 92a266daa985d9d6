package http1

import (
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	fastclienterrors "github.com/searchktools/fastclient/errors"
)

// decompressReader wraps body with a streaming decompressor matching
// Content-Encoding (§4.4). Both gzip and deflate use klauspost/compress's
// drop-in replacements for the stdlib packages, grounded on the
// teacher's DOMAIN STACK use of that module for response compression.
func decompressReader(method, url, encoding string, body io.Reader) (io.Reader, error) {
	switch encoding {
	case "gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fastclienterrors.DecompressionError(method, url, err)
		}
		return &errWrappingReader{r: zr, method: method, url: url}, nil
	case "deflate":
		return &errWrappingReader{r: flate.NewReader(body), method: method, url: url}, nil
	default:
		return body, nil
	}
}

// errWrappingReader translates stream errors from a decompressor into
// DecompressionError so callers see the taxonomy consistently.
type errWrappingReader struct {
	r      io.Reader
	method string
	url    string
}

func (e *errWrappingReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF {
		return n, fastclienterrors.DecompressionError(e.method, e.url, err)
	}
	return n, err
}
