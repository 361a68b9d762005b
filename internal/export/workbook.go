package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/maltedev/catalog-price-scraper/internal/models"
	"github.com/xuri/excelize/v2"
)

// ErrNoCategories is returned when a result has nothing to write.
var ErrNoCategories = errors.New("crawl result has no categories")

const (
	CurrencyFormat = "$ #,##0.00"
	maxColumnWidth = 80.0
	minColumnWidth = 10.0
)

var Headers = []string{
	"Nombre",
	"Precio Base (Web)",
	"Precio Mayorista (+30%)",
	"Precio Minorista (+100%)",
	"URL Origen",
}

// WorkbookExporter writes one worksheet per category.
type WorkbookExporter struct {
	logger *slog.Logger
}

func NewWorkbookExporter() *WorkbookExporter {
	return &WorkbookExporter{
		logger: slog.Default().With("component", "workbook_exporter"),
	}
}

// Export writes result to path and returns the sheet names in category
// order.
func (e *WorkbookExporter) Export(result *models.CrawlResult, path string) ([]string, error) {
	if result == nil || len(result.Categories) == 0 {
		return nil, ErrNoCategories
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Debug("failed to close workbook", "error", err)
		}
	}()

	currency := CurrencyFormat
	priceStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &currency})
	if err != nil {
		return nil, fmt.Errorf("failed to create price style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	namer := newSheetNamer()
	sheets := make([]string, 0, len(result.Categories))

	for i, category := range result.Categories {
		sheet := namer.next(category.Name)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return nil, fmt.Errorf("failed to rename sheet %q: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet %q: %w", sheet, err)
		}

		if err := writeCategory(f, sheet, category, priceStyle, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to write sheet %q: %w", sheet, err)
		}
		sheets = append(sheets, sheet)
	}
	f.SetActiveSheet(0)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("failed to save workbook: %w", err)
	}

	e.logger.Info("workbook exported", "path", path, "sheets", len(sheets), "products", result.TotalProducts())
	return sheets, nil
}

func writeCategory(f *excelize.File, sheet string, category models.Category, priceStyle, headerStyle int) error {
	if err := f.SetColStyle(sheet, "B:D", priceStyle); err != nil {
		return err
	}

	widths := make([]int, len(Headers))
	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
		widths[i] = utf8.RuneCountInString(h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "E1", headerStyle); err != nil {
		return err
	}

	for i, p := range category.Products {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			p.Name,
			p.BasePrice.InexactFloat64(),
			p.WholesalePrice.InexactFloat64(),
			p.RetailPrice.InexactFloat64(),
			p.SourceURL,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}

		widths[0] = max(widths[0], utf8.RuneCountInString(p.Name))
		widths[1] = max(widths[1], displayWidth(p.BasePrice.StringFixed(2)))
		widths[2] = max(widths[2], displayWidth(p.WholesalePrice.StringFixed(2)))
		widths[3] = max(widths[3], displayWidth(p.RetailPrice.StringFixed(2)))
		widths[4] = max(widths[4], utf8.RuneCountInString(p.SourceURL))
	}

	return autoSize(f, sheet, widths)
}

// displayWidth estimates the rendered width of a formatted amount: currency
// prefix plus one thousands separator per three integer digits.
func displayWidth(fixed string) int {
	digits := len(fixed) - 3
	return len("$ ") + len(fixed) + max(digits-1, 0)/3
}

func autoSize(f *excelize.File, sheet string, widths []int) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := min(max(float64(w)+2, minColumnWidth), maxColumnWidth)
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}
