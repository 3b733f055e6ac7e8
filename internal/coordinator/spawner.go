package coordinator

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"headbench/internal/runner"
)

// Handle is a spawned worker as seen by the coordinator. Wait blocks until
// the worker has exited and reports an abnormal exit as an error.
type Handle interface {
	Wait() error
}

// Spawner starts one isolated worker unit.
type Spawner interface {
	Spawn(ctx context.Context, index int) (Handle, error)
}

// ProcessSpawner runs every worker as a separate OS process by re-executing
// a binary with the hidden "worker" subcommand. The exit status is the only
// thing that comes back.
type ProcessSpawner struct {
	Cfg runner.Config

	// Executable defaults to the running binary.
	Executable string
	// Prefix is inserted before the worker subcommand.
	Prefix []string
	// Extra is appended after the config flags, e.g. --log-level.
	Extra []string
	Env   []string

	Stdout io.Writer
	Stderr io.Writer
}

func (s *ProcessSpawner) Spawn(ctx context.Context, index int) (Handle, error) {
	exe := s.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
	}

	args := append([]string{}, s.Prefix...)
	args = append(args, "worker", "--index="+strconv.Itoa(index))
	args = append(args, s.Cfg.Args()...)
	args = append(args, s.Extra...)

	cmd := exec.CommandContext(ctx, exe, args...)
	// Interrupt lets the worker drain what it already admitted.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = s.Cfg.Timeout + 5*time.Second
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %d: %w", index, err)
	}
	return cmd, nil
}

// LocalSpawner runs every worker in its own goroutine. Each worker gets its
// own Config copy and connection pool; nothing mutable is shared.
type LocalSpawner struct {
	Cfg    runner.Config
	Logger *log.Logger
}

type localHandle struct {
	done   chan struct{}
	err    error
	result runner.Result
}

func (h *localHandle) Wait() error {
	<-h.done
	return h.err
}

func (s *LocalSpawner) Spawn(ctx context.Context, index int) (Handle, error) {
	w := runner.NewWorker(s.Cfg, index, s.Logger)
	h := &localHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				h.err = fmt.Errorf("worker %d panicked: %v", index, r)
			}
		}()
		h.result = w.Run(ctx)
	}()
	return h, nil
}
