package main

import (
	"time"

	golog "github.com/op/go-logging"
	"github.com/spf13/cobra"

	"github.com/schemawatch/schemawatch/server"
)

var flagDebounce time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer func() { _ = logger.Sync() }()

		// glsp's transport logs through op/go-logging under the server name
		level := golog.WARNING
		if flagDebug {
			level = golog.DEBUG
		}
		golog.SetLevel(level, server.Name)

		srv := server.New(server.Options{
			Debounce: flagDebounce,
			Debug:    flagDebug,
		}, logger)
		return srv.RunStdio()
	},
}

func init() {
	serveCmd.Flags().DurationVar(&flagDebounce, "debounce", 0, "quiet period before validating an edited document (default 200ms)")
}
