package enrich

import (
	"errors"
	"sync"
	"testing"
)

func TestCostAccumulatorRecords(t *testing.T) {
	c := NewCostAccumulator(1.0)

	cost := c.Record(1000, 500)
	if cost <= 0 {
		t.Error("expected positive cost for token usage")
	}
	if c.Total() != cost {
		t.Errorf("expected total %v, got %v", cost, c.Total())
	}
	if c.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", c.Calls())
	}
}

func TestCostAccumulatorCeiling(t *testing.T) {
	c := NewCostAccumulator(0.0001)

	if err := c.Allow(); err != nil {
		t.Fatalf("expected first call allowed: %v", err)
	}
	c.Record(1000000, 1000000)

	if err := c.Allow(); !errors.Is(err, ErrCostCeiling) {
		t.Fatalf("expected ErrCostCeiling, got %v", err)
	}
	if !c.CeilingHit() {
		t.Error("expected ceiling hit flag")
	}
}

func TestCostAccumulatorUnlimited(t *testing.T) {
	c := NewCostAccumulator(0)
	c.Record(1000000, 1000000)
	if err := c.Allow(); err != nil {
		t.Errorf("zero ceiling must never decline: %v", err)
	}
	if c.CeilingHit() {
		t.Error("unlimited accumulator must not report ceiling hit")
	}
}

func TestCostAccumulatorConcurrent(t *testing.T) {
	c := NewCostAccumulator(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(100, 100)
		}()
	}
	wg.Wait()
	if c.Calls() != 50 {
		t.Errorf("expected 50 calls, got %d", c.Calls())
	}
}
