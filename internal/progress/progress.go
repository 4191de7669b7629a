// Package progress carries aggregate transfer progress from engine
// workers to whatever renders it. Workers only ever see the Reporter
// interface; disabling progress swaps in the no-op implementation instead
// of branching on a flag inside every worker.
package progress

import "sync/atomic"

// Reporter receives progress increments from engine workers. All methods
// must be safe to call from multiple goroutines.
type Reporter interface {
	// Add records n units (bytes or items) of completed work.
	Add(n int64)

	// AddTotal grows the discovered total by n units. The total may keep
	// growing while traversal runs and is frozen once it completes.
	AddTotal(n int64)

	// Finish marks the operation complete.
	Finish(msg string)
}

// Nop is the Reporter used when progress output is disabled.
type Nop struct{}

func (Nop) Add(int64)      {}
func (Nop) AddTotal(int64) {}
func (Nop) Finish(string)  {}

// Counter is a lock-free Reporter that only accumulates. It backs the
// rendering implementations and is handy on its own in tests.
type Counter struct {
	done  atomic.Int64
	total atomic.Int64
}

func (c *Counter) Add(n int64)      { c.done.Add(n) }
func (c *Counter) AddTotal(n int64) { c.total.Add(n) }
func (c *Counter) Finish(string)    {}

// Done returns the completed unit count.
func (c *Counter) Done() int64 { return c.done.Load() }

// Total returns the discovered total so far.
func (c *Counter) Total() int64 { return c.total.Load() }
