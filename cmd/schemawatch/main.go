package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	flagVerbose bool
	flagDebug   bool
)

var rootCmd = &cobra.Command{
	Use:   "schemawatch",
	Short: "Schema discovery and validation for JSON, YAML, TOML and XML documents",
	Long: `schemawatch validates configuration documents against JSON-Schema-style
schemas. It discovers the governing schema through inline hints, configured
mappings or file conventions, and reports violations with exact source
positions.

Run "schemawatch serve" to start the language server, or "schemawatch check"
to validate files from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable protocol-level debug output")
	rootCmd.AddCommand(serveCmd, checkCmd)
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errViolations) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// newLogger builds a stderr logger; stdout stays reserved for the LSP
// transport.
func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if !flagVerbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
