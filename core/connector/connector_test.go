package connector

import (
	"testing"

	"github.com/searchktools/fastclient/core/pool"
)

func TestPoolConfigResolverLongestPrefixWins(t *testing.T) {
	apiCfg := pool.Config{Size: 4, Variant: pool.VariantSmart}
	apiV2Cfg := pool.Config{Size: 16, Variant: pool.VariantSmart}
	defCfg := pool.Config{Size: 2, Variant: pool.VariantSmart}

	r := newPoolConfigResolver([]PoolConfigEntry{
		{Prefix: "https://api.example.com", Config: apiCfg},
		{Prefix: "https://api.example.com/v2", Config: apiV2Cfg},
	}, defCfg)

	if got := r.Resolve("https://api.example.com/v2/users"); got.Size != 16 {
		t.Errorf("expected longest-prefix match (v2 config, size 16), got %d", got.Size)
	}
	if got := r.Resolve("https://api.example.com/v1/users"); got.Size != 4 {
		t.Errorf("expected api config, size 4, got %d", got.Size)
	}
	if got := r.Resolve("https://other.example.com/"); got.Size != 2 {
		t.Errorf("expected default config, size 2, got %d", got.Size)
	}
}

func TestPoolConfigResolverDefaultOverride(t *testing.T) {
	custom := pool.Config{Size: 99, Variant: pool.VariantCyclic}
	r := newPoolConfigResolver([]PoolConfigEntry{
		{Prefix: ":default", Config: custom},
	}, pool.DefaultConfig())

	got := r.Resolve("https://anything.example.com/")
	if got.Size != 99 || got.Variant != pool.VariantCyclic {
		t.Errorf("expected :default entry to override base default, got %+v", got)
	}
}

func TestPoolConfigResolverMemoizes(t *testing.T) {
	r := newPoolConfigResolver([]PoolConfigEntry{
		{Prefix: "https://api.example.com", Config: pool.Config{Size: 4}},
	}, pool.DefaultConfig())

	first := r.Resolve("https://api.example.com/x")
	if _, ok := r.memo["https://api.example.com/x"]; !ok {
		t.Fatal("expected resolution to be memoized")
	}
	second := r.Resolve("https://api.example.com/x")
	if first != second {
		t.Errorf("expected memoized result to be stable")
	}
}

func TestProxyAuthHeader(t *testing.T) {
	p := &ProxyConfig{Addr: "proxy:3128"}
	if h := p.authHeader(); h != "" {
		t.Errorf("expected empty auth header with no credentials, got %q", h)
	}

	p2 := &ProxyConfig{Addr: "proxy:3128", Username: "user", Password: "pass"}
	if h := p2.authHeader(); h != "Basic dXNlcjpwYXNz" {
		t.Errorf("unexpected auth header: %q", h)
	}
}
