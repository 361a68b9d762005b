package commands

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/maltedev/catalog-price-scraper/internal/catalog"
	"github.com/maltedev/catalog-price-scraper/internal/models"
	"github.com/maltedev/catalog-price-scraper/internal/pricing"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

// renderSummary prints one row per exported category. Report.Sheets is in
// category order.
func renderSummary(out io.Writer, report *catalog.Report) {
	result := report.Result

	t := newTable(out)
	t.AppendHeader(table.Row{"Categoría", "Hoja", "Páginas", "Productos", "Precio base"})
	pages := 0
	for i, category := range result.Categories {
		sheet := ""
		if i < len(report.Sheets) {
			sheet = report.Sheets[i]
		}
		pages += category.PageCount
		t.AppendRow(table.Row{category.Name, sheet, category.PageCount, len(category.Products), priceRange(category.Products)})
	}
	t.AppendFooter(table.Row{"Total", len(report.Sheets), pages, result.TotalProducts(), ""})
	t.Render()

	stats := newTable(out)
	stats.AppendRows([]table.Row{
		{"Categorías descubiertas", result.Stats.CategoriesDiscovered},
		{"Categorías omitidas", result.Stats.CategoriesSkipped},
		{"Páginas renderizadas", result.Stats.PagesRendered},
		{"Páginas de paginación", result.Stats.PaginationPages},
		{"Páginas con error", result.Stats.PageWarnings},
		{"Duración", result.Duration().Round(time.Second).String()},
	})
	if report.SinkFailures > 0 {
		stats.AppendRow(table.Row{"Destinos con error", report.SinkFailures})
	}
	stats.Render()
}

// priceRange shows the lowest and highest base price of a category.
func priceRange(products []models.Product) string {
	if len(products) == 0 {
		return ""
	}
	low, high := products[0].BasePrice, products[0].BasePrice
	for _, p := range products[1:] {
		if p.BasePrice.LessThan(low) {
			low = p.BasePrice
		}
		if p.BasePrice.GreaterThan(high) {
			high = p.BasePrice
		}
	}
	if low.Equal(high) {
		return pricing.FormatARS(low)
	}
	return pricing.FormatARS(low) + " a " + pricing.FormatARS(high)
}
