package executive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const analysisCacheTTL = 30 * time.Minute

// analysisCacheKey hashes (decision_type, business_context) into a stable
// string, independent of map iteration order.
func analysisCacheKey(req StrategicRequest) string {
	keys := make([]string, 0, len(req.BusinessContext))
	for k := range req.BusinessContext {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]interface{}, len(req.BusinessContext))
	for _, k := range keys {
		ordered[k] = req.BusinessContext[k]
	}
	payload, _ := json.Marshal(struct {
		DecisionType string                 `json:"decision_type"`
		Context      map[string]interface{} `json:"context"`
	}{req.DecisionType, ordered})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// singleFlightCache wraps an expirable LRU with a per-key in-flight guard
// so concurrent AnalyzeStrategicSituation calls sharing a cache key wait
// for the first caller's result instead of each hitting the LLM gateway.
type singleFlightCache struct {
	lru *expirable.LRU[string, StrategicAnalysis]

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

type inflightCall struct {
	done   chan struct{}
	result StrategicAnalysis
	err    error
}

func newSingleFlightCache(size int) *singleFlightCache {
	return &singleFlightCache{
		lru:      expirable.NewLRU[string, StrategicAnalysis](size, nil, analysisCacheTTL),
		inflight: make(map[string]*inflightCall),
	}
}

// do returns the cached value for key if present; otherwise it runs fn,
// sharing the in-flight result with any concurrent caller for the same
// key, and caches the result on success.
func (c *singleFlightCache) do(key string, fn func() (StrategicAnalysis, error)) (StrategicAnalysis, error) {
	if cached, ok := c.lru.Get(key); ok {
		cached.FromCache = true
		return cached, nil
	}

	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-call.done
		return call.result, call.err
	}
	call := &inflightCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	call.result, call.err = fn()
	close(call.done)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	if call.err == nil {
		c.lru.Add(key, call.result)
	}
	return call.result, call.err
}
