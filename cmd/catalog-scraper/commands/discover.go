package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/maltedev/catalog-price-scraper/internal/catalog"
	"github.com/maltedev/catalog-price-scraper/internal/scraper"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(discoverCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Lists the categories found on the catalog index without crawling them.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := catalog.Setup(cmd.Context(), cfg, scraper.NewMetrics(), logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		links, err := rt.Service.Discover(cmd.Context())
		if err != nil {
			return err
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"#", "Categoría", "URL"})
		for i, link := range links {
			t.AppendRow(table.Row{i + 1, link.Name, link.BaseURL})
		}
		t.AppendFooter(table.Row{"", "Total", len(links)})
		t.Render()
		return nil
	},
}
