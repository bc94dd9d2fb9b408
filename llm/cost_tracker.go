package llm

import (
	"context"
	"sync"

	"github.com/flipsync/flipsync/core"
)

// DefaultCostCeiling is the per-request cost ceiling applied when a caller
// doesn't configure one.
const DefaultCostCeiling = 0.05

// CostTracker accumulates per-request LLM spend and enforces a cost
// ceiling. The ceiling is advisory: a request over it is logged, not
// rejected, since blocking a strategic decision on a few cents is worse
// than the overrun itself.
type CostTracker struct {
	mu      sync.Mutex
	ceiling float64
	total   float64
	calls   int
	overCap int
	logger  core.Logger
}

func NewCostTracker(ceiling float64, logger core.Logger) *CostTracker {
	if ceiling <= 0 {
		ceiling = DefaultCostCeiling
	}
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &CostTracker{ceiling: ceiling, logger: logger}
}

// Record logs and accumulates the cost of one completed Generate call,
// flagging (but not rejecting) requests over the ceiling.
func (c *CostTracker) Record(ctx context.Context, req Request, resp Response) {
	c.mu.Lock()
	c.total += resp.CostEstimate
	c.calls++
	over := resp.CostEstimate > c.ceiling
	if over {
		c.overCap++
	}
	c.mu.Unlock()

	if over {
		c.logger.WarnWithContext(ctx, "llm request exceeded cost ceiling", map[string]interface{}{
			"cost_estimate": resp.CostEstimate,
			"ceiling":       c.ceiling,
			"model":         resp.Model,
			"tokens_used":   resp.TokensUsed,
		})
	}
}

// Totals is a point-in-time snapshot of accumulated spend.
type Totals struct {
	TotalCost        float64
	Calls            int
	OverCeilingCount int
}

func (c *CostTracker) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Totals{TotalCost: c.total, Calls: c.calls, OverCeilingCount: c.overCap}
}

// TrackedGateway wraps a Gateway and records every call's cost against a
// CostTracker, so callers get accounting for free regardless of which
// provider implementation they chose.
type TrackedGateway struct {
	inner   Gateway
	tracker *CostTracker
}

func NewTrackedGateway(inner Gateway, tracker *CostTracker) *TrackedGateway {
	return &TrackedGateway{inner: inner, tracker: tracker}
}

func (g *TrackedGateway) Generate(ctx context.Context, req Request) (Response, error) {
	resp, err := g.inner.Generate(ctx, req)
	if err != nil {
		return resp, err
	}
	g.tracker.Record(ctx, req, resp)
	return resp, nil
}
