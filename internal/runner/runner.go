package runner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/beefsack/go-rate"
	"github.com/charmbracelet/log"
	"github.com/hidu/go-speed"
	"golang.org/x/sync/errgroup"

	"headbench/internal/stats"
)

// State is the lifecycle of a Worker. Transitions only move forward.
type State int32

const (
	StateInit State = iota
	StateIssuing
	StateDraining
	StateExited
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIssuing:
		return "issuing"
	case StateDraining:
		return "draining"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Result summarizes what a worker did once it has exited.
type Result struct {
	Index       int
	Quota       int
	Completed   uint64
	Success     uint64
	Fail        uint64
	MaxInflight int64
	Elapsed     time.Duration
}

// Worker issues its share of HEAD requests through a private keep-alive
// connection pool, never holding more than Config.Concurrency in flight.
type Worker struct {
	cfg    Config
	index  int
	quota  int
	url    string
	client *http.Client
	log    *log.Logger

	Stats *stats.Counters

	limiter *rate.RateLimiter
	meter   *speed.Speed
	state   atomic.Int32
}

func NewWorker(cfg Config, index int, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	w := &Worker{
		cfg:   cfg,
		index: index,
		quota: cfg.Quota(index),
		url:   cfg.TargetURL(),
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(cfg.Concurrency),
		},
		log:   logger.With("worker", index),
		Stats: stats.NewCounters(),
	}
	if cfg.Rate > 0 {
		w.limiter = rate.New(cfg.Rate, time.Second)
	}
	return w
}

// newTransport builds the per-worker connection pool. It is sized so that
// every in-flight request can hold its own connection and return it for reuse.
func newTransport(size int) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.DisableKeepAlives = false
	t.ForceAttemptHTTP2 = false
	t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	t.MaxIdleConns = size
	t.MaxIdleConnsPerHost = size
	t.MaxConnsPerHost = size
	return t
}

func (w *Worker) Quota() int { return w.quota }

func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
	w.log.Debug("state", "state", s)
}

// Run issues the worker's quota and returns once every admitted request has
// completed. Cancelling ctx stops admission; requests already admitted still
// finish, successfully or not, before Run returns.
func (w *Worker) Run(ctx context.Context) Result {
	start := time.Now()
	if w.cfg.Progress > 0 {
		w.meter = speed.NewSpeed(fmt.Sprintf("worker_%d", w.index), w.cfg.Progress, func(msg string) {
			w.log.Info("progress", "speed", msg, "inflight", w.Stats.Inflight())
		})
	}

	w.setState(StateIssuing)
	g := new(errgroup.Group)
	g.SetLimit(w.cfg.Concurrency)
	for i := 0; i < w.quota; i++ {
		if !w.admit(ctx) {
			w.log.Warn("admission stopped", "issued", i, "quota", w.quota, "err", ctx.Err())
			break
		}
		// Go blocks while the group is at its limit.
		g.Go(func() error {
			w.do(ctx)
			return nil
		})
	}

	w.setState(StateDraining)
	_ = g.Wait()
	w.client.CloseIdleConnections()
	if w.meter != nil {
		w.meter.Stop()
	}
	w.setState(StateExited)

	res := Result{
		Index:       w.index,
		Quota:       w.quota,
		Completed:   w.Stats.Completed(),
		Success:     w.Stats.Success(),
		Fail:        w.Stats.Fail(),
		MaxInflight: w.Stats.MaxInflight(),
		Elapsed:     time.Since(start),
	}
	w.log.Debug("worker done",
		"completed", res.Completed,
		"success", res.Success,
		"fail", res.Fail,
		"error_rate", fmt.Sprintf("%.2f%%", w.Stats.ErrorRate()),
		"max_inflight", res.MaxInflight,
		"latency_samples", w.Stats.ServiceTime.TotalCount(),
		"mean_ms", w.Stats.MeanServiceMs(),
		"p99_ms", w.Stats.P99ServiceMs(),
		"max_ms", w.Stats.MaxServiceMs(),
		"elapsed", res.Elapsed,
	)
	return res
}

// admit reports whether the next request may start. With a rate limit it
// waits for a slot in the current window, giving up as soon as ctx is done.
func (w *Worker) admit(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if w.limiter == nil {
		return true
	}
	for {
		ok, remaining := w.limiter.Try()
		if ok {
			return true
		}
		t := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

func (w *Worker) do(ctx context.Context) {
	w.Stats.Begin()
	begin := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.url, nil)
	if err == nil {
		var resp *http.Response
		resp, err = w.client.Do(req)
		if err == nil {
			// The body must be consumed for the connection to go back to the pool.
			_, err = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	if err != nil {
		w.log.Error("request failed", "url", w.url, "err", err)
		w.Stats.End(false, 0)
		if w.meter != nil {
			w.meter.Fail("request", 1)
		}
		return
	}
	w.Stats.End(true, time.Since(begin))
	if w.meter != nil {
		w.meter.Success("request", 1)
	}
}
