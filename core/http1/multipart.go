package http1

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// MultipartPart is one section of a multipart/form-data body (§4.4).
type MultipartPart struct {
	Name        string
	Filename    string // empty for a plain field
	ContentType string // empty to omit the header
	Data        []byte
	Stream      io.Reader // used instead of Data for large file parts
}

// MultipartComposer builds a multipart/form-data body with a random
// 32-hex-char boundary (§4.4), grounded on the teacher's use of
// google/uuid for unique tokens elsewhere in the codebase.
type MultipartComposer struct {
	Boundary string
	Parts    []MultipartPart
}

// NewMultipartComposer generates a fresh boundary and wraps parts.
func NewMultipartComposer(parts []MultipartPart) *MultipartComposer {
	boundary := strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
	return &MultipartComposer{Boundary: boundary[:32], Parts: parts}
}

// ContentType returns the header value to send for this body.
func (m *MultipartComposer) ContentType() string {
	return "multipart/form-data; boundary=" + m.Boundary
}

// hasStreamedPart reports whether any part streams instead of buffering,
// which forces chunked transfer since the total size is unknown.
func (m *MultipartComposer) hasStreamedPart() bool {
	for _, p := range m.Parts {
		if p.Stream != nil {
			return true
		}
	}
	return false
}

// Size returns the exact encoded size, or -1 if any part streams and the
// size can't be known in advance (§4.4: "large file parts are streamed
// as chunks without preloading").
func (m *MultipartComposer) Size() int64 {
	if m.hasStreamedPart() {
		return -1
	}
	var total int64
	for _, p := range m.Parts {
		total += int64(len(m.partHeader(p))) + int64(len(p.Data)) + 2
	}
	total += int64(len("--" + m.Boundary + "--\r\n"))
	return total
}

func (m *MultipartComposer) partHeader(p MultipartPart) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--%s\r\n", m.Boundary)
	if p.Filename != "" {
		fmt.Fprintf(&b, "Content-Disposition: form-data; name=%q; filename=%q\r\n", p.Name, p.Filename)
	} else {
		fmt.Fprintf(&b, "Content-Disposition: form-data; name=%q\r\n", p.Name)
	}
	if p.ContentType != "" {
		fmt.Fprintf(&b, "Content-Type: %s\r\n", p.ContentType)
	}
	b.WriteString("\r\n")
	return b.String()
}

// AsReader returns a streaming io.Reader for the full encoded body,
// suitable as a chunked RequestBody.Stream regardless of whether any
// part streams.
func (m *MultipartComposer) AsReader() io.Reader {
	readers := make([]io.Reader, 0, len(m.Parts)*3+1)
	for _, p := range m.Parts {
		readers = append(readers, strings.NewReader(m.partHeader(p)))
		if p.Stream != nil {
			readers = append(readers, p.Stream)
		} else {
			readers = append(readers, bytes.NewReader(p.Data))
		}
		readers = append(readers, strings.NewReader("\r\n"))
	}
	readers = append(readers, strings.NewReader("--"+m.Boundary+"--\r\n"))
	return io.MultiReader(readers...)
}
