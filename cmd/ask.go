package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/progress"
)

var askCmd = &cobra.Command{
	Use:   "ask <document-url> <question> [question...]",
	Short: "Answer questions about a document in one shot",
	Long: `Fetches the document at the given URL, indexes it, and answers each
question from its most relevant passages. Answers are printed in the
order the questions were given.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		pipe, idx, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer idx.Close()

		documentURL := args[0]
		questions := args[1:]

		pipe.SetReporter(progress.NewReporter())

		answers, err := pipe.Process(cmd.Context(), documentURL, questions)
		if err != nil {
			return fmt.Errorf("processing %s: %w", documentURL, err)
		}

		for i, ans := range answers {
			fmt.Printf("Q%d: %s\n%s\n\n", i+1, questions[i], ans)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
