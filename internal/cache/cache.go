// Package cache wraps dgraph-io/ristretto as a compile cache for parsed
// DSL ASTs, grounded on the teacher's use of
// ristretto for read-heavy, size-bounded in-memory caching. This is
// explicitly NOT an entity-property cache: the rule engine always reads
// current property values from graph.Store, never from here (spec.md's
// hardening note against a stale-read cache sitting in front of mutable
// graph state).
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// CompileCache memoizes parser.Parse outputs for rulestorage.Loader, keyed
// by a hash of their source text, so re-reading identical DSL text skips
// redundant lexing/parsing work. Translator output is not cached here.
type CompileCache struct {
	c *ristretto.Cache
}

func New(numCounters, maxCost int64) (*CompileCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CompileCache{c: c}, nil
}

// Get returns the cached value and true if key is present and not
// expired/evicted.
func (cc *CompileCache) Get(key string) (any, bool) {
	return cc.c.Get(key)
}

// Set stores value under key with a rough cost estimate and a 1-hour TTL;
// compiled artifacts are small and cheap to regenerate, so a short TTL
// bounds memory growth from a long-running watch process without needing
// explicit invalidation wiring.
func (cc *CompileCache) Set(key string, value any, cost int64) {
	cc.c.SetWithTTL(key, value, cost, time.Hour)
}

func (cc *CompileCache) Close() {
	cc.c.Close()
}
