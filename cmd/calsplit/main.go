package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"calsplit/internal/config"
	appLog "calsplit/internal/log"
)

var version = "0.1.0-dev"

// cliOptions holds persistent flag values shared by all subcommands.
type cliOptions struct {
	configPath string
	outDir     string
	verbose    bool

	// conf is populated in PersistentPreRunE.
	conf *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "calsplit <calendar.ics | URL>",
		Short: "Split an iCalendar file into one calendar per class",
		Long: `calsplit reads a calendar (for example a Canvas LMS export or feed URL) and
writes one calendar file per class code found in event summaries:

  SUMMARY:Final Exam [2025FallC-X-CSE360-77646]  ->  output_calendars/2025FallC-X-CSE360-77646

Components without a class code are written to "no_associated_class".
Existing files are never overwritten.`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Argument errors have already been reported with usage by now.
			cmd.SilenceUsage = true
			return opts.init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd.Context(), cmd.OutOrStdout(), opts.conf, args[0])
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "optional YAML config file")
	root.PersistentFlags().StringVar(&opts.outDir, "out", "", "output directory (default \"output_calendars\")")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newListCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newConfigCmd())

	return root
}

// init loads the config file (if any), applies flag overrides and sets up
// logging.
func (o *cliOptions) init() error {
	conf, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.outDir != "" {
		conf.OutputDir = o.outDir
	}

	level, err := appLog.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	if o.verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Debug("effective config",
		"config_path", o.configPath,
		"output_dir", conf.OutputDir,
		"file_extension", conf.FileExtension,
		"include_timezones", conf.IncludeTimezones,
		"fetch_timeout_seconds", conf.FetchTimeoutSeconds,
	)

	o.conf = conf
	return nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	appLog.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
