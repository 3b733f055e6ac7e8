package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"headbench/internal/coordinator"
	"headbench/internal/runner"
	"headbench/internal/storage"
	"headbench/internal/tui"
)

type Options struct {
	Spawner coordinator.Spawner
	Logger  *log.Logger
	// Out receives the header and the report line. Defaults to stdout.
	Out io.Writer
	// History is optional; nothing is persisted when it is nil.
	History *storage.Store
	TUI     bool
}

// Start runs one benchmark and prints its report line exactly once, after
// the last worker has exited.
func Start(ctx context.Context, cfg runner.Config, opts Options) (coordinator.Report, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	printHeader(opts.Out, cfg)

	// Zero workers is not an error: the coordinator reports the run as skipped.
	if cfg.Workers != 0 {
		if err := cfg.Validate(); err != nil {
			return coordinator.Report{}, err
		}
	}

	coord := coordinator.New(cfg, opts.Spawner, opts.Logger)

	var (
		rep coordinator.Report
		err error
	)
	if opts.TUI {
		rep, err = runWithTUI(ctx, cfg, coord)
	} else {
		rep, err = coord.Run(ctx)
	}
	if err != nil {
		return rep, err
	}

	fmt.Fprintln(opts.Out, rep.String())
	if rep.Abnormal > 0 {
		opts.Logger.Warn("some workers exited abnormally, throughput is an undercount", "abnormal", rep.Abnormal, "workers", rep.Workers)
	}

	if opts.History != nil && !rep.Skipped {
		rec, err := opts.History.Save(record(cfg, rep))
		if err != nil {
			opts.Logger.Error("saving run history failed", "path", opts.History.Path(), "err", err)
		} else {
			opts.Logger.Info("run saved", "id", rec.ID, "path", opts.History.Path())
		}
	}
	return rep, nil
}

func runWithTUI(ctx context.Context, cfg runner.Config, coord *coordinator.Coordinator) (coordinator.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan coordinator.Event, 2*cfg.Workers+1)
	coord.Events = events

	type outcome struct {
		rep coordinator.Report
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		rep, err := coord.Run(ctx)
		// Run sends nothing after it returns; closing also ends the view.
		close(events)
		done <- outcome{rep, err}
	}()

	p := tea.NewProgram(tui.NewModel(cfg, events, cancel))
	if _, err := p.Run(); err != nil {
		// The UI is cosmetic; the run itself carries on.
		log.Warn("progress view stopped", "err", err)
	}

	out := <-done
	return out.rep, out.err
}

func record(cfg runner.Config, rep coordinator.Report) storage.RunRecord {
	return storage.RunRecord{
		ID:     rep.ID,
		Config: cfg,
		Summary: storage.RunSummary{
			Issued:    rep.Issued,
			Elapsed:   rep.Elapsed,
			RPS:       rep.RPS,
			Abnormal:  rep.Abnormal,
			Unbounded: rep.Unbounded,
		},
	}
}

func printHeader(w io.Writer, cfg runner.Config) {
	fmt.Fprintf(w, "\nSTARTING HEADBENCH\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Target      : HEAD %s\n", cfg.TargetURL())
	fmt.Fprintf(w, "Requests    : %d (%d issued, remainder %s)\n", cfg.Requests, cfg.Issued(), cfg.Remainder)
	fmt.Fprintf(w, "Workers     : %d (%s)\n", cfg.Workers, cfg.Mode)
	fmt.Fprintf(w, "Concurrency : %d per worker\n", cfg.Concurrency)
	fmt.Fprintf(w, "Timeout     : %s\n", cfg.Timeout)
	fmt.Fprintf(w, "======================================================================\n\n")
}
