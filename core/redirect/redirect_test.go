package redirect

import (
	"net/http"
	"testing"

	"github.com/searchktools/fastclient/internal/urlutil"
)

func TestEvaluateNonRedirectStatus(t *testing.T) {
	u, _, _ := urlutil.ParseURL("http://example.com/")
	d, err := Evaluate(200, u, "", "GET")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.ShouldFollow {
		t.Fatal("expected ShouldFollow=false for 200")
	}
}

func TestEvaluate303RewritesToGET(t *testing.T) {
	u, _, _ := urlutil.ParseURL("http://example.com/form")
	d, err := Evaluate(http.StatusSeeOther, u, "/result", http.MethodPost)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.ShouldFollow || d.Method != http.MethodGet || !d.DropBody {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.Next.Path != "/result" {
		t.Errorf("expected resolved path /result, got %s", d.Next.Path)
	}
}

func TestEvaluate307PreservesMethodAndBody(t *testing.T) {
	u, _, _ := urlutil.ParseURL("http://example.com/upload")
	d, err := Evaluate(http.StatusTemporaryRedirect, u, "http://example.com/upload2", http.MethodPost)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Method != http.MethodPost || d.DropBody {
		t.Fatalf("expected method/body preserved, got %+v", d)
	}
}

func TestEvaluate302GETUnaffected(t *testing.T) {
	u, _, _ := urlutil.ParseURL("http://example.com/")
	d, err := Evaluate(http.StatusFound, u, "/other", http.MethodGet)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Method != http.MethodGet || d.DropBody {
		t.Fatalf("expected GET to stay GET without body drop, got %+v", d)
	}
}

func TestEvaluateCrossOriginDetection(t *testing.T) {
	u, _, _ := urlutil.ParseURL("http://example.com/")
	d, err := Evaluate(http.StatusFound, u, "http://other.com/", http.MethodGet)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.CrossOrigin {
		t.Fatal("expected cross-origin redirect to be detected")
	}
}

func TestChainExceedsMaxLength(t *testing.T) {
	start, _, _ := urlutil.ParseURL("http://example.com/0")
	chain := NewChain(start)

	var err error
	for i := 1; i <= MaxChainLength+1; i++ {
		next, _, _ := urlutil.ParseURL("http://example.com/x")
		if err = chain.Append(next, "GET", start.String()); err != nil {
			break
		}
	}
	if err == nil {
		t.Fatal("expected TooManyRedirects once chain exceeds MaxChainLength")
	}
}

func TestStripAuthorizationIfCrossOrigin(t *testing.T) {
	h := urlutil.NewHeaderStore()
	h.Add("Authorization", "Bearer token")

	StripAuthorizationIfCrossOrigin(h, true, false)
	if h.Has("Authorization") {
		t.Fatal("expected Authorization stripped on cross-origin redirect")
	}

	h2 := urlutil.NewHeaderStore()
	h2.Add("Authorization", "Bearer token")
	StripAuthorizationIfCrossOrigin(h2, true, true)
	if !h2.Has("Authorization") {
		t.Fatal("expected Authorization retained when retainAuth=true")
	}
}
