package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/maltedev/catalog-price-scraper/internal/catalog"
	"github.com/maltedev/catalog-price-scraper/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRenderSummary(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	product := models.NewProduct("Vela de Miel", decimal.RequireFromString("1234.56"), "https://shop.example/category/velas?page=1")
	cheap := models.NewProduct("Vela Roja", decimal.NewFromInt(100), "https://shop.example/category/velas?page=2")
	report := &catalog.Report{
		Result: &models.CrawlResult{
			StartedAt:  started,
			FinishedAt: started.Add(95 * time.Second),
			Categories: []models.Category{
				{Name: "Velas y Velones", PageCount: 2, Products: []models.Product{product, cheap}},
				{Name: "Sahumerios", PageCount: 1, Products: []models.Product{product}},
			},
			Stats: models.CrawlStats{CategoriesDiscovered: 3, CategoriesSkipped: 1, PagesRendered: 4, PaginationPages: 3, PageWarnings: 1},
		},
		WorkbookPath: "out.xlsx",
		Sheets:       []string{"Velas_y_Velones", "Sahumerios"},
		SinkFailures: 2,
	}

	var buf bytes.Buffer
	renderSummary(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "Velas y Velones")
	assert.Contains(t, out, "Velas_y_Velones")
	assert.Contains(t, out, "Sahumerios")
	assert.Contains(t, out, "Categorías descubiertas")
	assert.Contains(t, out, "1m35s")
	assert.Contains(t, out, "Destinos con error")
	assert.Contains(t, out, "$ 100,00 a $ 1.234,56")
	assert.Contains(t, out, "Páginas de paginación")
	assert.True(t, strings.Contains(out, "╭"), "rounded style")
}

func TestRenderSummaryWithoutSinkFailures(t *testing.T) {
	report := &catalog.Report{
		Result: &models.CrawlResult{
			Categories: []models.Category{{Name: "Velas", PageCount: 1}},
		},
		Sheets: []string{"Velas"},
	}

	var buf bytes.Buffer
	renderSummary(&buf, report)

	assert.NotContains(t, buf.String(), "Destinos con error")
}

func TestWaitForEnter(t *testing.T) {
	var out bytes.Buffer
	waitForEnter(&out, strings.NewReader("\n"))

	assert.Equal(t, "Presiona Enter para salir...", out.String())
}

func TestPriceRange(t *testing.T) {
	at := func(price string) models.Product {
		return models.NewProduct("x", decimal.RequireFromString(price), "u")
	}

	assert.Equal(t, "", priceRange(nil))
	assert.Equal(t, "$ 1.604,93", priceRange([]models.Product{at("1604.928")}))
	assert.Equal(t, "$ 50,50 a $ 12.500,00", priceRange([]models.Product{at("850"), at("12500"), at("50.5")}))
}
