package connector

import (
	"sort"
	"strings"

	"github.com/searchktools/fastclient/core/pool"
)

// PoolConfigEntry pairs a URL-prefix pattern with the PoolConfig that
// applies when a request URL matches it (§4.2).
type PoolConfigEntry struct {
	Prefix string
	Config pool.Config
}

// poolConfigResolver picks the PoolConfig for a request URL by longest
// matching prefix, ties broken by insertion order, with a ":default"
// fallback (§4.2). Resolution results are memoized per exact request URL
// seen, since the entry set is static after construction (SPEC_FULL.md
// supplemented feature).
type poolConfigResolver struct {
	entries []PoolConfigEntry // in insertion order, excluding ":default"
	def     pool.Config

	memo map[string]pool.Config
}

func newPoolConfigResolver(entries []PoolConfigEntry, def pool.Config) *poolConfigResolver {
	r := &poolConfigResolver{def: def, memo: make(map[string]pool.Config)}
	for _, e := range entries {
		if e.Prefix == ":default" {
			r.def = e.Config
			continue
		}
		r.entries = append(r.entries, e)
	}
	return r
}

// Resolve returns the PoolConfig for the given request URL.
func (r *poolConfigResolver) Resolve(url string) pool.Config {
	if cfg, ok := r.memo[url]; ok {
		return cfg
	}

	best := -1
	bestLen := -1
	for i, e := range r.entries {
		if strings.HasPrefix(url, e.Prefix) && len(e.Prefix) > bestLen {
			best = i
			bestLen = len(e.Prefix)
		}
	}

	cfg := r.def
	if best >= 0 {
		cfg = r.entries[best].Config
	}
	r.memo[url] = cfg
	return cfg
}

// sortedEntriesForDebug returns entries ordered by prefix length
// descending, used only by tests/diagnostics to inspect match priority.
func (r *poolConfigResolver) sortedEntriesForDebug() []PoolConfigEntry {
	out := make([]PoolConfigEntry, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Prefix) > len(out[j].Prefix)
	})
	return out
}
