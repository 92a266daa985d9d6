// Package redirect implements C9: the 3xx redirect driver — method/body
// rewrite rules, Location resolution, cross-origin Authorization
// stripping, and loop/limit detection (§4.5).
package redirect

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/searchktools/fastclient/internal/urlutil"
)

// MaxChainLength is the maximum number of redirect hops followed before
// TooManyRedirects is raised (§4.5).
const MaxChainLength = 30

// Decision is what the caller should do next: follow to Next with the
// (possibly rewritten) method/body, or stop because status isn't a
// redirect the driver handles.
type Decision struct {
	ShouldFollow bool
	Next         *url.URL
	Method       string
	DropBody     bool
	CrossOrigin  bool
}

// Evaluate inspects a response's status and Location header against the
// current request, returning whether/how to follow (§4.5).
func Evaluate(status int, currentURL *url.URL, location string, method string) (Decision, error) {
	if !isRedirectStatus(status) {
		return Decision{ShouldFollow: false}, nil
	}
	if location == "" {
		return Decision{}, fmt.Errorf("redirect: status %d had no Location header", status)
	}

	next, err := urlutil.Resolve(currentURL, location)
	if err != nil {
		return Decision{}, err
	}

	newMethod := method
	dropBody := false

	switch status {
	case http.StatusMovedPermanently, http.StatusFound:
		if method != http.MethodGet && method != http.MethodHead {
			newMethod = http.MethodGet
			dropBody = true
		}
	case http.StatusSeeOther:
		newMethod = http.MethodGet
		dropBody = true
	case http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		// method and body preserved
	default:
		return Decision{ShouldFollow: false}, nil
	}

	crossOrigin := !sameOrigin(currentURL, next)

	return Decision{
		ShouldFollow: true,
		Next:         next,
		Method:       newMethod,
		DropBody:     dropBody,
		CrossOrigin:  crossOrigin,
	}, nil
}

func isRedirectStatus(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// Chain tracks the sequence of visited URLs across a follow loop,
// raising TooManyRedirects once MaxChainLength hops are exceeded (§4.5).
type Chain struct {
	visited []string
}

// NewChain seeds the chain with the original request URL.
func NewChain(start *url.URL) *Chain {
	return &Chain{visited: []string{start.String()}}
}

// Append records next as the chain's newest hop, returning an error once
// the chain exceeds MaxChainLength.
func (c *Chain) Append(next *url.URL, method, origURL string) error {
	c.visited = append(c.visited, next.String())
	if len(c.visited)-1 > MaxChainLength {
		return newTooManyRedirects(method, origURL, c.visited)
	}
	return nil
}

// Visited returns the full chain of URLs, original first.
func (c *Chain) Visited() []string {
	return c.visited
}

// StripAuthorizationIfCrossOrigin removes the Authorization header from
// headers when crossOrigin is true and retainAuth (explicit
// configuration) is false (§4.5).
func StripAuthorizationIfCrossOrigin(headers *urlutil.HeaderStore, crossOrigin, retainAuth bool) {
	if crossOrigin && !retainAuth {
		headers.Del("Authorization")
	}
}
