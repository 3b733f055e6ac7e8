package stats

import (
	"sync/atomic"
	"time"
)

// Counters tracks request outcomes for a single worker. Every request that
// calls Begin must call End exactly once, whether it succeeded or failed.
type Counters struct {
	completed   atomic.Uint64
	success     atomic.Uint64
	fail        atomic.Uint64
	inflight    atomic.Int64
	maxInflight atomic.Int64

	// Service time histogram (microseconds)
	ServiceTime *SafeHistogram
}

func NewCounters() *Counters {
	return &Counters{ServiceTime: NewSafeHistogram()}
}

// Begin marks one request as in flight.
func (c *Counters) Begin() {
	n := c.inflight.Add(1)
	for {
		peak := c.maxInflight.Load()
		if n <= peak || c.maxInflight.CompareAndSwap(peak, n) {
			return
		}
	}
}

// End retires one in-flight request.
func (c *Counters) End(ok bool, serviceTime time.Duration) {
	if ok {
		c.success.Add(1)
		c.ServiceTime.Record(serviceTime)
	} else {
		c.fail.Add(1)
	}
	c.completed.Add(1)
	c.inflight.Add(-1)
}

func (c *Counters) Completed() uint64 { return c.completed.Load() }
func (c *Counters) Success() uint64   { return c.success.Load() }
func (c *Counters) Fail() uint64      { return c.fail.Load() }
func (c *Counters) Inflight() int64   { return c.inflight.Load() }

// MaxInflight is the highest number of simultaneously in-flight requests seen.
func (c *Counters) MaxInflight() int64 { return c.maxInflight.Load() }

func (c *Counters) ErrorRate() float64 {
	reqs := c.completed.Load()
	if reqs == 0 {
		return 0
	}
	return (float64(c.fail.Load()) / float64(reqs)) * 100
}

// MeanServiceMs returns the mean service time of successful requests in ms.
func (c *Counters) MeanServiceMs() float64 {
	return c.ServiceTime.Mean() / 1000.0
}

// MaxServiceMs returns the slowest successful request in ms.
func (c *Counters) MaxServiceMs() float64 {
	return float64(c.ServiceTime.Max()) / 1000.0
}

// P99ServiceMs returns the p99 service time of successful requests in ms.
func (c *Counters) P99ServiceMs() float64 {
	return float64(c.ServiceTime.ValueAtQuantile(99)) / 1000.0
}
