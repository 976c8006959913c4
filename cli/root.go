package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "Keep a vector index of your knowledge documents in sync with disk",
	Long: `mnemo indexes the markdown documents of a project into a vector store
and keeps the index in step with the filesystem, live or on demand.

Typical flow:
  mnemo init       Create .mnemo/config.yaml in the project root
  mnemo sync       Reconcile the index with disk once
  mnemo watch      Follow file changes and reconcile continuously
  mnemo search     Query the index semantically`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// newLogger builds the console logger all commands share.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
