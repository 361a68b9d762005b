package commands

import (
	"fmt"

	"github.com/maltedev/catalog-price-scraper/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportSnapshot *string
	exportOutput   *string
)

func init() {
	exportSnapshot = exportCmd.Flags().String("snapshot", "", "The JSON snapshot of a previous run.")
	exportOutput = exportCmd.Flags().String("output", "", "The workbook to write (defaults to EXPORT_OUTPUT_PATH).")
	exportCmd.MarkFlagRequired("snapshot")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export --snapshot <path/to/run.json> [--output <path/to/out.xlsx>]",
	Short: "Rebuilds a workbook from a saved run snapshot without crawling.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := export.ReadSnapshot(*exportSnapshot)
		if err != nil {
			return err
		}

		output := *exportOutput
		if output == "" {
			output = cfg.Export.OutputPath
		}

		sheets, err := export.NewWorkbookExporter().Export(result, output)
		if err != nil {
			return err
		}

		logger.Info("workbook rebuilt", "run_id", result.RunID, "snapshot", *exportSnapshot, "sheets", len(sheets))
		fmt.Fprintf(cmd.OutOrStdout(), "Archivo guardado en: %s\n", output)
		return nil
	},
}
