package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-price-scraper/internal/pricing"
	"github.com/shopspring/decimal"
)

// Product is one priced catalog entry extracted from a listing page.
type Product struct {
	Name           string          `json:"name"`
	BasePrice      decimal.Decimal `json:"base_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	SourceURL      string          `json:"source_url"`
}

// CategoryLink is a category as found on the catalog index page.
type CategoryLink struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

// Category holds every product extracted from all pages of one category.
type Category struct {
	Name      string    `json:"name"`
	BaseURL   string    `json:"base_url"`
	PageCount int       `json:"page_count"`
	Products  []Product `json:"products"`
}

// CrawlStats summarizes what a crawl run did.
type CrawlStats struct {
	CategoriesDiscovered int `json:"categories_discovered"`
	CategoriesCompleted  int `json:"categories_completed"`
	CategoriesSkipped    int `json:"categories_skipped"`
	PagesRendered        int `json:"pages_rendered"`
	PaginationPages      int `json:"pagination_pages"`
	PageWarnings         int `json:"page_warnings"`
}

// CrawlResult is the outcome of one crawl run. Categories keep discovery
// order and none of them is empty.
type CrawlResult struct {
	RunID      uuid.UUID  `json:"run_id"`
	IndexURL   string     `json:"index_url"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Categories []Category `json:"categories"`
	Stats      CrawlStats `json:"stats"`
}

// NewProduct builds a product and derives its price tiers from base.
func NewProduct(name string, base decimal.Decimal, sourceURL string) Product {
	wholesale, retail := pricing.ComputeTiers(base)
	return Product{
		Name:           name,
		BasePrice:      base,
		WholesalePrice: wholesale,
		RetailPrice:    retail,
		SourceURL:      sourceURL,
	}
}

func (l CategoryLink) Category(pageCount int) Category {
	return Category{
		Name:      l.Name,
		BaseURL:   l.BaseURL,
		PageCount: pageCount,
	}
}

func (c *Category) IsEmpty() bool {
	return len(c.Products) == 0
}

func (r *CrawlResult) TotalProducts() int {
	total := 0
	for _, c := range r.Categories {
		total += len(c.Products)
	}
	return total
}

func (r *CrawlResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
