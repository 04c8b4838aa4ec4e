package cli

import (
	"github.com/spf13/cobra"

	"github.com/BenjaminSRussell/shelfcrawl/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "shelfcrawl",
	Short: "A catalog crawler that collects product offers into a result file",
	Long: `shelfcrawl walks the category listings of a product catalog, extracts one
record per offer and writes the deduplicated result set to the configured sinks.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration file (JSON or YAML)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(versionCmd)
}
