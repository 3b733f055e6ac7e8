package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"headbench/internal/runner"
)

type EventKind int

const (
	EventSpawned EventKind = iota
	EventExited
	EventCompleted
)

func (k EventKind) String() string {
	switch k {
	case EventSpawned:
		return "spawned"
	case EventExited:
		return "exited"
	case EventCompleted:
		return "completed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a progress notification. Every Run ends with exactly one
// EventCompleted: it carries the Report, or Err when the run never started.
type Event struct {
	Kind   EventKind
	Index  int
	Err    error
	Report *Report
}

type exit struct {
	index int
	err   error
}

// Coordinator spawns the configured number of workers, waits for every one
// of them to exit and turns the wall-clock time into a throughput figure.
type Coordinator struct {
	cfg     runner.Config
	spawner Spawner
	log     *log.Logger

	// Events receives Spawned/Exited per worker and one final Completed.
	// Sends never block; a buffer of 2*Workers+1 never drops anything.
	Events chan<- Event

	now func() time.Time
}

func New(cfg runner.Config, spawner Spawner, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		cfg:     cfg,
		spawner: spawner,
		log:     logger,
		now:     time.Now,
	}
}

// Run spawns every worker and blocks until all of them have exited. A worker
// that fails to start or exits abnormally is logged and still counted; it
// never fails the run.
func (c *Coordinator) Run(ctx context.Context) (Report, error) {
	rep := Report{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Requests: c.cfg.Requests,
		Workers:  c.cfg.Workers,
	}

	if c.cfg.Workers == 0 {
		rep.Skipped = true
		c.log.Warn("no workers configured, skipping run")
		c.emit(Event{Kind: EventCompleted, Report: &rep})
		return rep, nil
	}
	if err := c.cfg.Validate(); err != nil {
		c.emit(Event{Kind: EventCompleted, Err: err})
		return rep, err
	}
	rep.Issued = c.cfg.Issued()

	exits := make(chan exit, c.cfg.Workers)
	start := c.now()
	for i := 0; i < c.cfg.Workers; i++ {
		h, err := c.spawner.Spawn(ctx, i)
		if err != nil {
			exits <- exit{index: i, err: err}
			continue
		}
		c.emit(Event{Kind: EventSpawned, Index: i})
		go func(index int) {
			exits <- exit{index: index, err: h.Wait()}
		}(i)
	}

	for observed := 0; observed < c.cfg.Workers; observed++ {
		e := <-exits
		if e.err != nil {
			rep.Abnormal++
			c.log.Warn("worker exited abnormally", "worker", e.index, "err", e.err)
		} else {
			c.log.Debug("worker exited", "worker", e.index)
		}
		c.emit(Event{Kind: EventExited, Index: e.index, Err: e.err})
	}

	rep.Elapsed = c.now().Sub(start)
	rep.RPS, rep.Unbounded = throughput(rep.Requests, rep.Elapsed)
	c.emit(Event{Kind: EventCompleted, Report: &rep})
	return rep, nil
}

func (c *Coordinator) emit(ev Event) {
	if c.Events == nil {
		return
	}
	select {
	case c.Events <- ev:
	default:
		c.log.Debug("event dropped", "kind", ev.Kind, "worker", ev.Index)
	}
}

// throughput reports false when elapsed is too small to divide by; the rate
// is then left at 0 so the report stays JSON encodable.
func throughput(requests int, elapsed time.Duration) (float64, bool) {
	if elapsed <= 0 {
		return 0, true
	}
	return float64(requests) / elapsed.Seconds(), false
}
