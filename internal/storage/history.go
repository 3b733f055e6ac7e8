package storage

import (
	"time"

	"headbench/internal/runner"
)

// RunRecord is what gets persisted for a finished run when history is on.
type RunRecord struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Config    runner.Config `json:"config"`
	Summary   RunSummary    `json:"summary"`
}

type RunSummary struct {
	Issued   int           `json:"issued"`
	Elapsed  time.Duration `json:"elapsed"`
	RPS      float64       `json:"rps"`
	Abnormal int           `json:"abnormal"`
	// Unbounded runs finished too fast to measure; RPS is 0.
	Unbounded bool `json:"unbounded,omitempty"`
}
