package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BenjaminSRussell/shelfcrawl/internal/export"
	"github.com/BenjaminSRussell/shelfcrawl/internal/parser"
)

var writeCSV bool

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the catalog categories",
	Long:  `Run category discovery against base_url and print the two-level category tree`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(configPath, false, nil)
		if err != nil {
			return err
		}
		defer s.log.Close()

		fetcher, release, err := newFetcher(s.cfg, s.log, nil)
		if err != nil {
			return err
		}
		defer release()

		cats, err := parser.NewCatalogDiscoverer(fetcher, s.cfg.BaseURL, s.log).Discover(cmd.Context())
		if err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, c := range cats {
			if c.IsRoot() {
				fmt.Fprintf(out, "%s\t%s\n", c.ID, c.Name)
			} else {
				fmt.Fprintf(out, "  %s\t%s\n", c.ID, c.Name)
			}
		}

		if !writeCSV {
			return nil
		}
		exporter, err := export.NewExporter(s.cfg.OutputDir, s.cfg.CSVDelimiter)
		if err != nil {
			return err
		}
		path, err := exporter.WriteCategories(cats)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %d categories to %s\n", len(cats), path)
		return nil
	},
}

func init() {
	categoriesCmd.Flags().BoolVar(&writeCSV, "write-csv", false, "Write categories.csv to the output directory")
}
