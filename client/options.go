// Package client implements C12: the thin facade described in §4.8 —
// request(method, url, ...) and its sugar, request-option normalization,
// and a handle counter for wait_requests(). It owns a Connector but no
// cookie jar (explicit non-goal, §1).
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/searchktools/fastclient/core/http1"
	"github.com/searchktools/fastclient/core/timeout"
	"github.com/searchktools/fastclient/internal/urlutil"
)

// RequestOptions enumerates every optional input of §6's "Request API
// inputs". Data and JSON are mutually exclusive; JSON wins if both are
// set.
type RequestOptions struct {
	Params    map[string]string
	Data      interface{} // []byte, string, map[string]string, io.Reader, *http1.MultipartComposer
	JSON      interface{}
	Headers   map[string]string
	Timeouts  *timeout.Policy
	Follow    bool
	VerifySSL bool
	HTTP2     bool

	// RetainAuthOnRedirect keeps Authorization across a cross-origin
	// redirect instead of stripping it (§4.5 default is to strip).
	RetainAuthOnRedirect bool

	// HandleCookies is accepted for interface parity with §6 but has no
	// effect: the facade carries no cookie jar (explicit Non-goal, §1).
	HandleCookies bool

	// MaxBodySize caps the response body in bytes; exceeding it fails
	// Content/Text/JSON/ReadChunks with errors.BodyTooLarge instead of
	// accumulating an unbounded buffer (§7). 0 means unbounded.
	MaxBodySize int64
}

// DefaultOptions returns the facade's baseline RequestOptions.
func DefaultOptions() RequestOptions {
	return RequestOptions{
		Follow:    true,
		VerifySSL: true,
	}
}

// normalizeMethod upper-cases and validates method against §6's allowed
// set.
func normalizeMethod(method string) (string, error) {
	m := strings.ToUpper(method)
	switch m {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodHead, http.MethodOptions:
		return m, nil
	default:
		return "", fmt.Errorf("client: unsupported method %q", method)
	}
}

// buildQuery appends opts.Params to rawURL's query string, percent-
// encoded per RFC 3986 (§6). Map iteration order is not meaningful, so
// keys are emitted in sorted order; callers needing exact duplicate-key
// ordering should encode the query string into rawURL directly instead
// of using Params.
func buildQuery(rawURL string, params map[string]string) string {
	if len(params) == 0 {
		return rawURL
	}
	pairs := make([][2]string, 0, len(params))
	for _, k := range urlutil.SortedKeys(params) {
		pairs = append(pairs, [2]string{k, params[k]})
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + urlutil.EncodeParams(pairs)
}

// resolveBody turns opts.Data/opts.JSON into a RequestBody, setting
// whatever headers WriteTo needs (Content-Length or Transfer-Encoding,
// plus Content-Type where applicable), per §6 "data"/"json".
func resolveBody(h *urlutil.HeaderStore, opts RequestOptions) (http1.RequestBody, error) {
	if opts.JSON != nil {
		data, err := json.Marshal(opts.JSON)
		if err != nil {
			return http1.RequestBody{}, fmt.Errorf("client: marshal json body: %w", err)
		}
		h.Set("Content-Type", "application/json")
		http1.SetContentLength(h, len(data))
		return http1.RequestBody{Kind: http1.BodyBytes, Bytes: data}, nil
	}

	switch v := opts.Data.(type) {
	case nil:
		return http1.RequestBody{Kind: http1.BodyNone}, nil
	case []byte:
		http1.SetContentLength(h, len(v))
		return http1.RequestBody{Kind: http1.BodyBytes, Bytes: v}, nil
	case string:
		http1.SetContentLength(h, len(v))
		return http1.RequestBody{Kind: http1.BodyBytes, Bytes: []byte(v)}, nil
	case map[string]string:
		pairs := make([][2]string, 0, len(v))
		for _, k := range urlutil.SortedKeys(v) {
			pairs = append(pairs, [2]string{k, v[k]})
		}
		encoded := urlutil.EncodeParams(pairs)
		h.Set("Content-Type", "application/x-www-form-urlencoded")
		http1.SetContentLength(h, len(encoded))
		return http1.RequestBody{Kind: http1.BodyBytes, Bytes: []byte(encoded)}, nil
	case *http1.MultipartComposer:
		h.Set("Content-Type", v.ContentType())
		if size := v.Size(); size >= 0 {
			data, err := io.ReadAll(v.AsReader())
			if err != nil {
				return http1.RequestBody{}, fmt.Errorf("client: read multipart body: %w", err)
			}
			http1.SetContentLength(h, len(data))
			return http1.RequestBody{Kind: http1.BodyBytes, Bytes: data}, nil
		}
		http1.SetChunked(h)
		return http1.RequestBody{Kind: http1.BodyChunked, Stream: v.AsReader()}, nil
	case io.Reader:
		http1.SetChunked(h)
		return http1.RequestBody{Kind: http1.BodyChunked, Stream: v}, nil
	default:
		return http1.RequestBody{}, fmt.Errorf("client: unsupported data type %T", opts.Data)
	}
}

// mergeHeaders builds the final header set for a request: base headers,
// then caller headers merged on top, preserving duplicates (§4.4).
func mergeHeaders(base *urlutil.HeaderStore, extra map[string]string) *urlutil.HeaderStore {
	base.MergeMap(extra)
	return base
}
