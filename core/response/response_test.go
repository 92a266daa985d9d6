package response

import (
	"io"
	"strings"
	"testing"

	"github.com/searchktools/fastclient/internal/urlutil"
)

type fakeBody struct {
	io.Reader
	released bool
	consumed bool
}

func (f *fakeBody) Release(consumed bool) {
	f.released = true
	f.consumed = consumed
}

func newTestResponse(body string) (*Response, *fakeBody) {
	fb := &fakeBody{Reader: strings.NewReader(body)}
	h := urlutil.NewHeaderStore()
	h.Add("Content-Type", "text/plain; charset=utf-8")
	return New(200, "OK", h, "GET", "http://example.com/", fb), fb
}

func TestResponseContentBuffersOnce(t *testing.T) {
	r, fb := newTestResponse("hello world")

	data, err := r.Content()
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("unexpected content: %q", data)
	}
	if !fb.released || !fb.consumed {
		t.Errorf("expected body released as consumed")
	}

	data2, err := r.Content()
	if err != nil || string(data2) != "hello world" {
		t.Errorf("second Content() call should return cached result")
	}
}

func TestResponseJSON(t *testing.T) {
	r, _ := newTestResponse(`{"a":1}`)
	var v map[string]int
	if err := r.JSON(&v); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if v["a"] != 1 {
		t.Errorf("unexpected JSON result: %v", v)
	}
}

func TestResponseReadChunksExclusiveWithContent(t *testing.T) {
	r, _ := newTestResponse("chunked data")
	if _, err := r.Content(); err != nil {
		t.Fatalf("Content: %v", err)
	}
	if _, err := r.ReadChunks(); err == nil {
		t.Fatal("expected error calling ReadChunks after Content")
	}
}

func TestResponseReadChunksConsumesStream(t *testing.T) {
	r, fb := newTestResponse("stream me")
	reader, err := r.ReadChunks()
	if err != nil {
		t.Fatalf("ReadChunks: %v", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "stream me" {
		t.Errorf("unexpected stream content: %q", data)
	}
	if !fb.released || !fb.consumed {
		t.Errorf("expected body released as consumed after full read")
	}

	if _, err := r.Content(); err == nil {
		t.Fatal("expected error calling Content after ReadChunks")
	}
}

func TestResponseDropForcesClose(t *testing.T) {
	r, fb := newTestResponse("unread")
	r.Drop()
	if !fb.released || fb.consumed {
		t.Errorf("expected Drop to release body as unconsumed")
	}
}

func TestResponseDropAfterPartialReadChunksReleasesUnconsumed(t *testing.T) {
	r, fb := newTestResponse("more data than one byte")
	reader, err := r.ReadChunks()
	if err != nil {
		t.Fatalf("ReadChunks: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := reader.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}

	r.Drop()
	if !fb.released || fb.consumed {
		t.Errorf("expected Drop on a partially-drained chunked stream to release the body as unconsumed")
	}
}

func TestResponseDropAfterFullyDrainedReadChunksIsNoop(t *testing.T) {
	r, fb := newTestResponse("short")
	reader, err := r.ReadChunks()
	if err != nil {
		t.Fatalf("ReadChunks: %v", err)
	}
	if _, err := io.ReadAll(reader); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !fb.consumed {
		t.Fatalf("expected stream to have released as consumed already")
	}

	r.Drop()
	if !fb.consumed {
		t.Errorf("expected Drop after a fully-drained stream not to re-flag it unconsumed")
	}
}
