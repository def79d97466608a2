package main

import (
	"github.com/spf13/cobra"

	"calsplit/internal/web"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve <calendar.ics | URL>",
		Short: "Serve one subscribable calendar per class over HTTP",
		Long: `serve splits the source calendar in memory and publishes the result:

  GET /health
  GET /api/classes
  GET /calendars/<class>.ics

The source is re-read on the "refresh" cron schedule from the config file.
Nothing is written to disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				opts.conf.Listen = listen
			}
			return web.StartServer(cmd.Context(), opts.conf, args[0])
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default \"127.0.0.1:8080\")")
	return cmd
}
