package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/config"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <document-url>",
	Short: "Remove a document's entries from the index",
	Long: `Removes every indexed entry whose source is the given URL. On the
local backend this drops only the metadata; run "docqa rebuild" afterwards
to reclaim the vectors.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dim, err := cfg.EmbeddingDimension()
		if err != nil {
			return err
		}
		idx, err := buildIndex(cfg, dim)
		if err != nil {
			return err
		}
		defer idx.Close()

		if err := idx.Initialize(cmd.Context()); err != nil {
			return fmt.Errorf("initializing index: %w", err)
		}
		if err := idx.DeleteBySource(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting %s: %w", args[0], err)
		}

		fmt.Printf("Deleted entries for %s\n", args[0])
		if cfg.VectorBackend == config.BackendLocal {
			fmt.Println("Vectors remain until `docqa rebuild` is run.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
