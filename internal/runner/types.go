package runner

import (
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Remainder policies for requests that do not divide evenly across workers.
const (
	RemainderDrop   = "drop"
	RemainderSpread = "spread"
)

// Execution modes for workers.
const (
	ModeProcess   = "process"
	ModeGoroutine = "goroutine"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the immutable description of one benchmark run. It is built
// once at startup and handed by value to the coordinator and every worker.
type Config struct {
	Requests    int           `json:"requests"`
	Workers     int           `json:"workers"`
	Concurrency int           `json:"concurrency"`
	Host        string        `json:"host"`
	Port        int           `json:"port"`
	Path        string        `json:"path"`
	Timeout     time.Duration `json:"timeout"`
	Remainder   string        `json:"remainder"`
	Mode        string        `json:"mode"`

	// Rate caps admissions per worker per second, 0 means unlimited.
	Rate int `json:"rate"`
	// Progress is the worker progress log interval in seconds, 0 disables it.
	Progress int `json:"progress"`
}

// Default returns the configuration the benchmark runs with when nothing is
// overridden: 10000 HEAD requests from 2 workers per CPU against 127.0.0.1:80.
func Default() Config {
	return Config{
		Requests:    10000,
		Workers:     2 * runtime.NumCPU(),
		Concurrency: 100,
		Host:        "127.0.0.1",
		Port:        80,
		Path:        "/",
		Timeout:     10 * time.Second,
		Remainder:   RemainderDrop,
		Mode:        ModeProcess,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidConfig, c.Workers)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrInvalidConfig, c.Concurrency)
	case c.Requests < 0:
		return fmt.Errorf("%w: requests must be >= 0, got %d", ErrInvalidConfig, c.Requests)
	case c.Host == "":
		return fmt.Errorf("%w: host is empty", ErrInvalidConfig)
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	case !strings.HasPrefix(c.Path, "/"):
		return fmt.Errorf("%w: path %q must start with /", ErrInvalidConfig, c.Path)
	case c.Timeout < 0:
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	case c.Rate < 0 || c.Progress < 0:
		return fmt.Errorf("%w: rate and progress must be >= 0", ErrInvalidConfig)
	}
	if c.Remainder != RemainderDrop && c.Remainder != RemainderSpread {
		return fmt.Errorf("%w: unknown remainder policy %q", ErrInvalidConfig, c.Remainder)
	}
	if c.Mode != ModeProcess && c.Mode != ModeGoroutine {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

// Quota returns the number of requests worker index is responsible for.
// With RemainderDrop every worker gets Requests/Workers and the remainder is
// never issued.
func (c Config) Quota(index int) int {
	if c.Workers < 1 || index < 0 || index >= c.Workers {
		return 0
	}
	q := c.Requests / c.Workers
	if c.Remainder == RemainderSpread && index < c.Requests%c.Workers {
		q++
	}
	return q
}

// Issued is the total number of requests all workers together will send.
func (c Config) Issued() int {
	n := 0
	for i := 0; i < c.Workers; i++ {
		n += c.Quota(i)
	}
	return n
}

func (c Config) TargetURL() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + c.Path
}

// BindFlags registers every config field on fs, using c as the defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&c.Requests, "requests", "n", c.Requests, "Total number of requests across all workers")
	fs.IntVarP(&c.Workers, "workers", "w", c.Workers, "Number of workers")
	fs.IntVarP(&c.Concurrency, "concurrency", "c", c.Concurrency, "Max in-flight requests per worker")
	fs.StringVar(&c.Host, "host", c.Host, "Target host")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "Target port")
	fs.StringVar(&c.Path, "path", c.Path, "Request path")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Per-request timeout (0 disables)")
	fs.StringVar(&c.Remainder, "remainder", c.Remainder, "Remainder policy: drop or spread")
	fs.StringVar(&c.Mode, "mode", c.Mode, "Worker mode: process or goroutine")
	fs.IntVar(&c.Rate, "rate", c.Rate, "Per-worker requests per second (0 = unlimited)")
	fs.IntVar(&c.Progress, "progress", c.Progress, "Worker progress log interval in seconds (0 = off)")
}

// Args renders c as the flags BindFlags understands, so a worker process
// can be started with exactly the coordinator's configuration.
func (c Config) Args() []string {
	return []string{
		"--requests=" + strconv.Itoa(c.Requests),
		"--workers=" + strconv.Itoa(c.Workers),
		"--concurrency=" + strconv.Itoa(c.Concurrency),
		"--host=" + c.Host,
		"--port=" + strconv.Itoa(c.Port),
		"--path=" + c.Path,
		"--timeout=" + c.Timeout.String(),
		"--remainder=" + c.Remainder,
		"--mode=" + c.Mode,
		"--rate=" + strconv.Itoa(c.Rate),
		"--progress=" + strconv.Itoa(c.Progress),
	}
}
