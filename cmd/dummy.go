package cmd

import (
	"github.com/spf13/cobra"

	"headbench/internal/dummy"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run the local target server",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		delay, _ := cmd.Flags().GetDuration("delay")
		srv := dummy.New(dummy.ServerConfig{Port: port, Delay: delay})
		return srv.ListenAndServe(cmd.Context(), newLogger(logLevel))
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run dummy server on")
	dummyCmd.Flags().Duration("delay", 0, "Delay added to every / response")
}
