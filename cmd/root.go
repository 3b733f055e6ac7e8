package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"headbench/internal/banner"
	"headbench/internal/cli"
	"headbench/internal/coordinator"
	"headbench/internal/runner"
	"headbench/internal/storage"
)

var (
	cfgFile  string
	logLevel string
	history  string
	useTUI   bool

	flagCfg = runner.Default()
)

var rootCmd = &cobra.Command{
	Use:   "headbench",
	Short: "headbench - HEAD request load generator",
	Long: `
headbench fires a fixed number of HEAD requests at a single HTTP target.

The load is split across isolated workers (one process each by default),
every worker keeps at most --concurrency requests in flight over its own
keep-alive pool, and the run reports one requests-per-second figure once
the last worker has exited.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench(cmd.Context())
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(workerCmd, dummyCmd, historyCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.headbench.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&history, "history", "", "bbolt file to record runs in (off when empty)")

	flagCfg.BindFlags(rootCmd.Flags())
	rootCmd.Flags().BoolVar(&useTUI, "tui", false, "Show a live progress view")

	viper.BindPFlags(rootCmd.Flags())
	viper.BindPFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".headbench")
		}
	}
	viper.SetEnvPrefix("HEADBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

// loadConfig layers flags over env over the config file over the defaults.
func loadConfig(v *viper.Viper) runner.Config {
	return runner.Config{
		Requests:    v.GetInt("requests"),
		Workers:     v.GetInt("workers"),
		Concurrency: v.GetInt("concurrency"),
		Host:        v.GetString("host"),
		Port:        v.GetInt("port"),
		Path:        v.GetString("path"),
		Timeout:     v.GetDuration("timeout"),
		Remainder:   v.GetString("remainder"),
		Mode:        v.GetString("mode"),
		Rate:        v.GetInt("rate"),
		Progress:    v.GetInt("progress"),
	}
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func runBench(ctx context.Context) error {
	cfg := loadConfig(viper.GetViper())
	level := viper.GetString("log-level")
	logger := newLogger(level)

	opts := cli.Options{
		Logger: logger,
		TUI:    viper.GetBool("tui"),
	}

	switch cfg.Mode {
	case runner.ModeGoroutine:
		opts.Spawner = &coordinator.LocalSpawner{Cfg: cfg, Logger: logger}
	default:
		opts.Spawner = &coordinator.ProcessSpawner{
			Cfg:    cfg,
			Extra:  []string{"--log-level=" + level},
			Stdout: os.Stderr,
			Stderr: os.Stderr,
		}
	}

	if path := viper.GetString("history"); path != "" {
		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.History = store
	}

	_, err := cli.Start(ctx, cfg, opts)
	return err
}
