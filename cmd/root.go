package cmd

import (
	"io"
	"log"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Question answering over documents fetched by URL",
	Long: `docqa ingests a document from a URL, chunks and embeds its text into
a vector index, and answers natural-language questions grounded in the
most relevant passages. It runs as an HTTP service or as a one-shot CLI.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Internal log lines are noise for interactive commands; the
		// server always logs.
		if !verbose && cmd.Name() != "serve" {
			log.SetOutput(io.Discard)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".docqa.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
