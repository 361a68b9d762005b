package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/maltedev/catalog-price-scraper/internal/catalog"
	"github.com/maltedev/catalog-price-scraper/internal/config"
	"github.com/maltedev/catalog-price-scraper/internal/logging"
	"github.com/maltedev/catalog-price-scraper/internal/scraper"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "catalog-scraper",
	Short: "Crawls the product catalog and exports it to an Excel workbook with derived prices.",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger = logging.New(cfg.Logging, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		err := crawl(cmd.Context(), cmd.OutOrStdout())
		switch {
		case errors.Is(err, scraper.ErrNothingToExport):
			fmt.Fprintln(cmd.OutOrStdout(), "No se encontraron productos: nothing to export.")
		case err != nil:
			fmt.Fprintf(cmd.OutOrStdout(), "Error: %v\n", err)
		}

		if cfg.Export.WaitForKeypress {
			waitForEnter(cmd.OutOrStdout(), cmd.InOrStdin())
		}
		if err != nil {
			os.Exit(1)
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func crawl(ctx context.Context, out io.Writer) error {
	rt, err := catalog.Setup(ctx, cfg, scraper.NewMetrics(), logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Fprintf(out, "Iniciando extracción desde %s\n", cfg.Scraper.IndexURL)

	report, err := rt.Service.Run(ctx)
	if err != nil {
		return err
	}

	renderSummary(out, report)
	fmt.Fprintf(out, "Archivo guardado en: %s\n", report.WorkbookPath)
	return nil
}

func waitForEnter(out io.Writer, in io.Reader) {
	fmt.Fprint(out, "Presiona Enter para salir...")
	bufio.NewReader(in).ReadString('\n')
}
