package cmd

import (
	"github.com/spf13/cobra"

	"headbench/internal/runner"
)

var (
	workerIndex int
	workerCfg   = runner.Default()
)

// workerCmd is what ProcessSpawner re-executes. It takes the whole run
// config as flags so nothing is read from env or config files.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run a single worker (used internally)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := workerCfg.Validate(); err != nil {
			return err
		}
		logger := newLogger(logLevel)
		res := runner.NewWorker(workerCfg, workerIndex, logger).Run(cmd.Context())
		logger.Debug("worker exiting", "worker", res.Index, "completed", res.Completed, "quota", res.Quota)
		return nil
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerIndex, "index", 0, "Worker index")
	workerCfg.BindFlags(workerCmd.Flags())
}
