package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"headbench/internal/storage"
	"headbench/internal/tui/styles"
)

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List recorded runs newest first, or show one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("history")
		if path == "" {
			return errors.New("--history is required")
		}
		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			rec, err := store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Println(renderRun(*rec))
			return nil
		}

		runs, err := store.List()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println(styles.Subtle.Render("no runs recorded in " + path))
			return nil
		}
		fmt.Println(renderRuns(runs))
		return nil
	},
}

func renderRuns(runs []storage.RunRecord) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}
			return styles.Cell
		}).
		Headers("ID", "WHEN", "TARGET", "REQUESTS", "WORKERS", "ELAPSED", "RPS", "ABNORMAL")

	for _, r := range runs {
		t.Row(
			r.ID,
			r.Timestamp.Local().Format(time.DateTime),
			r.Config.TargetURL(),
			fmt.Sprintf("%d/%d", r.Summary.Issued, r.Config.Requests),
			fmt.Sprint(r.Config.Workers),
			r.Summary.Elapsed.Round(time.Millisecond).String(),
			formatRPS(r.Summary),
			fmt.Sprint(r.Summary.Abnormal),
		)
	}
	return t.String()
}

func formatRPS(s storage.RunSummary) string {
	if s.Unbounded {
		return "+Inf"
	}
	return fmt.Sprintf("%.2f", s.RPS)
}

// renderRun shows one record including the config it ran with.
func renderRun(r storage.RunRecord) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return styles.Header
			}
			return styles.Cell
		})

	t.Row("ID", r.ID)
	t.Row("WHEN", r.Timestamp.Local().Format(time.DateTime))
	t.Row("TARGET", "HEAD "+r.Config.TargetURL())
	t.Row("REQUESTS", fmt.Sprintf("%d (%d issued, remainder %s)", r.Config.Requests, r.Summary.Issued, r.Config.Remainder))
	t.Row("WORKERS", fmt.Sprintf("%d (%s)", r.Config.Workers, r.Config.Mode))
	t.Row("CONCURRENCY", fmt.Sprint(r.Config.Concurrency))
	t.Row("TIMEOUT", r.Config.Timeout.String())
	t.Row("ELAPSED", r.Summary.Elapsed.Round(time.Millisecond).String())
	t.Row("RPS", formatRPS(r.Summary))
	t.Row("ABNORMAL", fmt.Sprint(r.Summary.Abnormal))
	return t.String()
}
