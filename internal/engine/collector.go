package engine

import (
	"fmt"
	"sync"
)

// Collector accumulates worker errors without stopping the run. Workers
// record failures and move on to the next job; the caller inspects the
// aggregate once all workers have drained.
type Collector struct {
	mu   sync.Mutex
	errs []error
}

// Record appends err to the collected list. Safe for concurrent use.
func (c *Collector) Record(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

// Len returns the number of recorded errors.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// Errors returns a copy of the recorded errors in arrival order.
func (c *Collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

// Err summarizes the collected errors as a single error, or nil if none
// were recorded. The first failure is wrapped so callers can still match
// it with errors.Is.
func (c *Collector) Err(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch len(c.errs) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s failed: %w", op, c.errs[0])
	default:
		return fmt.Errorf("%s failed with %d errors, first: %w", op, len(c.errs), c.errs[0])
	}
}
