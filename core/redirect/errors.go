package redirect

import fastclienterrors "github.com/searchktools/fastclient/errors"

func newTooManyRedirects(method, url string, chain []string) error {
	return fastclienterrors.NewTooManyRedirects(method, url, chain, MaxChainLength)
}
