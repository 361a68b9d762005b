package parser

import (
	"fmt"

	"github.com/maltedev/catalog-price-scraper/internal/models"
)

// Parser extracts catalog data from rendered HTML snapshots.
type Parser interface {
	ParseProducts(html string, pageURL string) ([]models.Product, error)
	ParsePageCount(html string) int
	ParseCategories(html string, indexURL string) ([]models.CategoryLink, error)
}

// Selectors locate catalog elements in a rendered page.
type Selectors struct {
	ProductContainer string
	ProductName      string
	ProductPrice     string
	PaginationLink   string
	// CategoryPath is matched against anchor hrefs on the index page.
	CategoryPath string
}

func DefaultSelectors() Selectors {
	return Selectors{
		ProductContainer: `div[class*="product-default"]`,
		ProductName:      `a[class="default-text-product"]`,
		ProductPrice:     `span[class="product-price"]`,
		PaginationLink:   `.pagination li a.page-link`,
		CategoryPath:     "/category/",
	}
}

// DefaultExcludedCategories are index links that point at category pages
// but are not categories themselves.
func DefaultExcludedCategories() []string {
	return []string{"ACERO", "CATEGORY IMAGE"}
}

// CategoryLinkSelector matches the index anchors pointing below path.
func CategoryLinkSelector(path string) string {
	return fmt.Sprintf(`a[href*=%q]`, path)
}
