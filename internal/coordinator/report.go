package coordinator

import (
	"fmt"
	"time"
)

// Report is the outcome of one run. RPS divides the configured request total
// by the elapsed time whether or not every request succeeded. Unbounded marks
// a run too short to measure; its RPS is 0 and prints as +Inf.
type Report struct {
	ID        string        `json:"id"`
	Requests  int           `json:"requests"`
	Issued    int           `json:"issued"`
	Workers   int           `json:"workers"`
	Abnormal  int           `json:"abnormal"`
	Elapsed   time.Duration `json:"elapsed"`
	RPS       float64       `json:"rps"`
	Unbounded bool          `json:"unbounded,omitempty"`
	Skipped   bool          `json:"skipped"`
}

func (r Report) String() string {
	if r.Skipped {
		return "no workers spawned, throughput undefined"
	}
	if r.Unbounded {
		return fmt.Sprintf("%d HTTP requests in %.2f seconds, +Inf rps", r.Requests, r.Elapsed.Seconds())
	}
	return fmt.Sprintf("%d HTTP requests in %.2f seconds, %.2f rps", r.Requests, r.Elapsed.Seconds(), r.RPS)
}
