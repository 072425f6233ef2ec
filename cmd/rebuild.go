package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/config"
	"docqa/internal/embeddings"
	"docqa/internal/index"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-embed the local index, dropping orphaned vectors",
	Long: `Rebuilds the local vector index from its metadata table. Deleting a
document only removes metadata; the vectors stay behind until a rebuild
re-embeds every surviving entry and writes a compact index.

Only the local backend needs this; Qdrant deletes vectors in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.VectorBackend != config.BackendLocal {
			return fmt.Errorf("rebuild applies to the local backend only (configured: %s)", cfg.VectorBackend)
		}

		embedder, err := embeddings.New(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		flat := index.NewFlatIndex(index.FlatOptions{
			IndexPath:    cfg.IndexPath,
			MetadataPath: cfg.MetadataPath,
			Dimension:    embedder.Dimensions(),
			Workers:      cfg.Workers,
		})
		defer flat.Close()

		if err := flat.Initialize(cmd.Context()); err != nil {
			return fmt.Errorf("initializing index: %w", err)
		}

		before, err := flat.Stats(cmd.Context())
		if err != nil {
			return err
		}

		if err := flat.Rebuild(cmd.Context(), embedder); err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}

		after, err := flat.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Rebuilt index: %d vectors -> %d vectors (%d entries)\n",
			before.TotalVectors, after.TotalVectors, after.TotalEntries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
