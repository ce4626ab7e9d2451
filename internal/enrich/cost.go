package enrich

import (
	"sync"
)

// Model pricing per million tokens, gpt-4o-mini class. Local models
// report zero-cost usage the same way, which keeps the accounting
// uniform.
const (
	promptTokenCostUSD     = 0.15 / 1e6
	completionTokenCostUSD = 0.60 / 1e6
)

// CostAccumulator tracks spend for one batch against a ceiling. It is
// one of the two pieces of shared mutable state between workers, so
// it is constructed per run and injected, never global.
type CostAccumulator struct {
	mu         sync.Mutex
	ceiling    float64 // 0 means unlimited
	total      float64
	calls      int
	ceilingHit bool
}

// NewCostAccumulator creates an accumulator with the given ceiling in
// USD. A zero ceiling disables the limit.
func NewCostAccumulator(ceilingUSD float64) *CostAccumulator {
	return &CostAccumulator{ceiling: ceilingUSD}
}

// Allow reports whether a new external call may start. Once the
// ceiling is crossed, every future call is declined for the rest of
// the batch; in-flight calls are never interrupted.
func (c *CostAccumulator) Allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ceiling > 0 && c.total >= c.ceiling {
		c.ceilingHit = true
		return ErrCostCeiling
	}
	return nil
}

// Record adds the cost of a completed call from its token usage and
// returns the cost charged.
func (c *CostAccumulator) Record(promptTokens, completionTokens int) float64 {
	cost := float64(promptTokens)*promptTokenCostUSD + float64(completionTokens)*completionTokenCostUSD
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += cost
	c.calls++
	return cost
}

// Total returns the accumulated spend in USD.
func (c *CostAccumulator) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Calls returns how many external calls completed.
func (c *CostAccumulator) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// CeilingHit reports whether any call was declined because of the
// ceiling.
func (c *CostAccumulator) CeilingHit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ceilingHit
}
