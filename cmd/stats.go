package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector index statistics",
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
		stats, err := idx.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Printf("Backend:    %s\n", cfg.VectorBackend)
		fmt.Printf("Vectors:    %d\n", stats.TotalVectors)
		fmt.Printf("Entries:    %d\n", stats.TotalEntries)
		fmt.Printf("Dimension:  %d\n", stats.Dimension)
		if len(stats.Sources) > 0 {
			fmt.Println("Sources:")
			names := make([]string, 0, len(stats.Sources))
			for name := range stats.Sources {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %s: %d\n", name, stats.Sources[name])
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}
