package response

import (
	"bytes"
	"io"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

// sniffWindow is the 64 KiB prefix that decodeText cuts from the body.
// The cut prefix is not passed on: charset.NewReader sniffs the encoding
// from the Content-Type and the first 1024 bytes of the body only.
const sniffWindow = 64 * 1024

// decodeText sniffs data's encoding from contentType and its leading
// bytes, then decodes the whole buffer to UTF-8.
func decodeText(data []byte, contentType string) (string, error) {
	window := data
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		// charset.NewReader only errors on certain malformed inputs; fall
		// back to treating the body as already UTF-8.
		return string(data), nil
	}
	decoded, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// decodeTextWithName decodes data using the named encoding (IANA/HTML
// index name, e.g. "iso-8859-1", "windows-1251") explicitly requested by
// the caller, bypassing sniffing entirely.
func decodeTextWithName(data []byte, name string) (string, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", err
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
