package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-price-scraper/internal/models"
	"github.com/maltedev/catalog-price-scraper/internal/parser"
)

// ErrNothingToExport ends a run that found no categories or no products.
var ErrNothingToExport = errors.New("nothing to export")

// Renderer returns the HTML of a page after its client-side content has
// settled. waitFor names the selector whose presence marks the content.
type Renderer interface {
	Render(ctx context.Context, url string, waitFor string) (string, error)
}

type CategoryState string

const (
	StatePending    CategoryState = "PENDING"
	StatePaginating CategoryState = "PAGINATING"
	StateExtracting CategoryState = "EXTRACTING"
	StateComplete   CategoryState = "COMPLETE"
	StateSkipped    CategoryState = "SKIPPED"
)

type Options struct {
	IndexURL            string
	IndexWaitSelector   string
	ProductWaitSelector string
	DedupeCategories    bool
}

// Crawler walks every category of a catalog one page at a time.
type Crawler struct {
	renderer Renderer
	parser   parser.Parser
	opts     Options
	metrics  *Metrics
	logger   *slog.Logger
}

func NewCrawler(renderer Renderer, p parser.Parser, opts Options, metrics *Metrics) *Crawler {
	return &Crawler{
		renderer: renderer,
		parser:   p,
		opts:     opts,
		metrics:  metrics,
		logger:   slog.Default().With("component", "crawler"),
	}
}

// tally counts the page work of one crawl step.
type tally struct {
	pages     int
	paginated int
	warnings  int
}

func (t *tally) add(o tally) {
	t.pages += o.pages
	t.paginated += o.paginated
	t.warnings += o.warnings
}

// DiscoverCategories renders the index page and lists its category links.
// A failed render yields no categories.
func (c *Crawler) DiscoverCategories(ctx context.Context, indexURL string) []models.CategoryLink {
	html, err := c.renderer.Render(ctx, indexURL, c.opts.IndexWaitSelector)
	if err != nil {
		c.metrics.IncRenderFailure(PageKindIndex)
		c.logger.Warn("failed to render category index", "url", indexURL, "error", err)
		return nil
	}
	c.metrics.IncPage(PageKindIndex)

	links, err := c.parser.ParseCategories(html, indexURL)
	if err != nil {
		c.logger.Warn("failed to parse category index", "url", indexURL, "error", err)
		return nil
	}

	c.logger.Info("discovered categories", "url", indexURL, "count", len(links))
	return links
}

// ResolvePageCount returns the number of listing pages of a category. Any
// failure falls back to 1 so the first page is still attempted.
func (c *Crawler) ResolvePageCount(ctx context.Context, categoryURL string) int {
	n, _ := c.resolvePageCount(ctx, categoryURL)
	return n
}

func (c *Crawler) resolvePageCount(ctx context.Context, categoryURL string) (int, tally) {
	pageURL := PageURL(categoryURL, 1)
	html, err := c.renderer.Render(ctx, pageURL, c.opts.ProductWaitSelector)
	if err != nil {
		c.metrics.IncRenderFailure(PageKindPagination)
		c.logger.Warn("failed to read pagination, assuming one page", "url", pageURL, "error", err)
		return 1, tally{warnings: 1}
	}
	c.metrics.IncPage(PageKindPagination)

	n := c.parser.ParsePageCount(html)
	if n < 1 {
		n = 1
	}
	return n, tally{paginated: 1}
}

// extractPage treats render and parse faults as an empty page. Only
// cancellation is returned as an error.
func (c *Crawler) extractPage(ctx context.Context, pageURL string) ([]models.Product, tally, error) {
	html, err := c.renderer.Render(ctx, pageURL, c.opts.ProductWaitSelector)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, tally{}, ctxErr
		}
		c.metrics.IncRenderFailure(PageKindListing)
		c.logger.Warn("failed to render page", "url", pageURL, "error", err)
		return nil, tally{warnings: 1}, nil
	}
	c.metrics.IncPage(PageKindListing)

	products, err := c.parser.ParseProducts(html, pageURL)
	if err != nil {
		c.logger.Warn("failed to parse page", "url", pageURL, "error", err)
		return nil, tally{pages: 1, warnings: 1}, nil
	}

	c.metrics.AddProducts(len(products))
	return products, tally{pages: 1}, nil
}

func (c *Crawler) crawlCategory(ctx context.Context, link models.CategoryLink) (models.Category, CategoryState, tally, error) {
	var work tally
	logger := c.logger.With("category", link.Name)

	state := StatePaginating
	pageCount, t := c.resolvePageCount(ctx, link.BaseURL)
	work.add(t)
	if err := ctx.Err(); err != nil {
		return models.Category{}, state, work, err
	}

	category := link.Category(pageCount)
	state = StateExtracting
	logger.Info("crawling category", "url", link.BaseURL, "pages", pageCount)

	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return models.Category{}, state, work, err
		}

		products, t, err := c.extractPage(ctx, PageURL(link.BaseURL, page))
		work.add(t)
		if err != nil {
			return models.Category{}, state, work, err
		}
		logger.Info("extracted page", "page", page, "of", pageCount, "products", len(products))

		if page == 1 && len(products) == 0 {
			logger.Info("first page is empty, skipping category")
			return category, StateSkipped, work, nil
		}
		category.Products = append(category.Products, products...)
	}

	if category.IsEmpty() {
		return category, StateSkipped, work, nil
	}
	return category, StateComplete, work, nil
}

// Run discovers and crawls every category. It returns ErrNothingToExport
// when there is nothing to hand to an exporter, and ctx.Err() when ctx is
// cancelled between pages.
func (c *Crawler) Run(ctx context.Context) (*models.CrawlResult, error) {
	result := &models.CrawlResult{
		RunID:     uuid.New(),
		IndexURL:  c.opts.IndexURL,
		StartedAt: time.Now().UTC(),
	}
	logger := c.logger.With("run_id", result.RunID)
	logger.Info("starting crawl", "index_url", c.opts.IndexURL)

	links := c.DiscoverCategories(ctx, c.opts.IndexURL)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.opts.DedupeCategories {
		if deduped := DedupeByURL(links); len(deduped) != len(links) {
			logger.Info("dropped repeated category links", "before", len(links), "after", len(deduped))
			links = deduped
		}
	}
	if len(links) == 0 {
		logger.Warn("no categories discovered")
		return nil, ErrNothingToExport
	}
	result.Stats.CategoriesDiscovered = len(links)

	var work tally
	for i, link := range links {
		logger.Info("processing category", "category", link.Name, "position", i+1, "total", len(links))

		category, state, t, err := c.crawlCategory(ctx, link)
		work.add(t)
		if err != nil {
			logger.Warn("crawl interrupted", "category", link.Name, "state", state, "error", err)
			return nil, err
		}

		c.metrics.IncCategory(state)
		if state == StateComplete {
			result.Categories = append(result.Categories, category)
			result.Stats.CategoriesCompleted++
		} else {
			result.Stats.CategoriesSkipped++
		}
	}

	result.FinishedAt = time.Now().UTC()
	result.Stats.PagesRendered = work.pages
	result.Stats.PaginationPages = work.paginated
	result.Stats.PageWarnings = work.warnings
	c.metrics.ObserveRun(result.Duration())

	if len(result.Categories) == 0 {
		logger.Warn("crawl produced no products", "categories", len(links))
		return nil, ErrNothingToExport
	}

	logger.Info("crawl completed",
		"categories", len(result.Categories),
		"skipped", result.Stats.CategoriesSkipped,
		"products", result.TotalProducts(),
		"pages", result.Stats.PagesRendered,
		"warnings", result.Stats.PageWarnings,
		"duration", result.Duration(),
	)
	return result, nil
}
