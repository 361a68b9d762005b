package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/catalog-price-scraper/internal/models"
	"github.com/shopspring/decimal"
)

var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	id                    UUID PRIMARY KEY,
	index_url             TEXT NOT NULL,
	workbook_path         TEXT NOT NULL DEFAULT '',
	started_at            TIMESTAMPTZ NOT NULL,
	finished_at           TIMESTAMPTZ NOT NULL,
	categories_discovered INTEGER NOT NULL DEFAULT 0,
	categories_completed  INTEGER NOT NULL DEFAULT 0,
	categories_skipped    INTEGER NOT NULL DEFAULT 0,
	pages_rendered        INTEGER NOT NULL DEFAULT 0,
	pagination_pages     INTEGER NOT NULL DEFAULT 0,
	page_warnings         INTEGER NOT NULL DEFAULT 0,
	product_count         INTEGER NOT NULL DEFAULT 0,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS crawl_categories (
	run_id     UUID NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	name       TEXT NOT NULL,
	base_url   TEXT NOT NULL,
	page_count INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS crawl_products (
	run_id            UUID NOT NULL,
	category_position INTEGER NOT NULL,
	position          INTEGER NOT NULL,
	name              TEXT NOT NULL,
	base_price        NUMERIC NOT NULL,
	wholesale_price   NUMERIC NOT NULL,
	retail_price      NUMERIC NOT NULL,
	source_url        TEXT NOT NULL,
	PRIMARY KEY (run_id, category_position, position),
	FOREIGN KEY (run_id, category_position) REFERENCES crawl_categories(run_id, position) ON DELETE CASCADE
);

ALTER TABLE crawl_runs ADD COLUMN IF NOT EXISTS pagination_pages INTEGER NOT NULL DEFAULT 0;

CREATE INDEX IF NOT EXISTS idx_crawl_runs_started_at ON crawl_runs(started_at DESC);
`

// RunSummary is one archived crawl run.
type RunSummary struct {
	ID           uuid.UUID         `json:"id"`
	IndexURL     string            `json:"index_url"`
	WorkbookPath string            `json:"workbook_path,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Stats        models.CrawlStats `json:"stats"`
	ProductCount int               `json:"product_count"`
}

type CategorySummary struct {
	Name         string `json:"name"`
	BaseURL      string `json:"base_url"`
	PageCount    int    `json:"page_count"`
	ProductCount int    `json:"product_count"`
}

type RunDetail struct {
	RunSummary
	Categories []CategorySummary `json:"categories"`
}

// RunProduct is an archived product together with its category name.
type RunProduct struct {
	Category string `json:"category"`
	models.Product
}

// RunStore archives crawl results in Postgres. Prices are stored as
// NUMERIC and travel as text so no precision is lost on either side.
type RunStore struct {
	db *DB
}

func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

type categoryRow struct {
	position  int
	name      string
	baseURL   string
	pageCount int
}

type productRow struct {
	categoryPosition int
	position         int
	name             string
	basePrice        string
	wholesalePrice   string
	retailPrice      string
	sourceURL        string
}

// rowsFor flattens a crawl result in export order.
func rowsFor(result *models.CrawlResult) ([]categoryRow, []productRow) {
	categories := make([]categoryRow, 0, len(result.Categories))
	var products []productRow

	for ci, c := range result.Categories {
		categories = append(categories, categoryRow{
			position:  ci,
			name:      c.Name,
			baseURL:   c.BaseURL,
			pageCount: c.PageCount,
		})
		for pi, p := range c.Products {
			products = append(products, productRow{
				categoryPosition: ci,
				position:         pi,
				name:             p.Name,
				basePrice:        p.BasePrice.String(),
				wholesalePrice:   p.WholesalePrice.String(),
				retailPrice:      p.RetailPrice.String(),
				sourceURL:        p.SourceURL,
			})
		}
	}
	return categories, products
}

func (s *RunStore) SaveRun(ctx context.Context, result *models.CrawlResult, workbookPath string) error {
	categories, products := rowsFor(result)

	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO crawl_runs (
				id, index_url, workbook_path, started_at, finished_at,
				categories_discovered, categories_completed, categories_skipped,
				pages_rendered, pagination_pages, page_warnings, product_count
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			result.RunID, result.IndexURL, workbookPath, result.StartedAt, result.FinishedAt,
			result.Stats.CategoriesDiscovered, result.Stats.CategoriesCompleted, result.Stats.CategoriesSkipped,
			result.Stats.PagesRendered, result.Stats.PaginationPages, result.Stats.PageWarnings, len(products),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		batch := &pgx.Batch{}
		for _, c := range categories {
			batch.Queue(`
				INSERT INTO crawl_categories (run_id, position, name, base_url, page_count)
				VALUES ($1, $2, $3, $4, $5)`,
				result.RunID, c.position, c.name, c.baseURL, c.pageCount)
		}
		for _, p := range products {
			batch.Queue(`
				INSERT INTO crawl_products (
					run_id, category_position, position, name,
					base_price, wholesale_price, retail_price, source_url
				) VALUES ($1, $2, $3, $4, $5::text::numeric, $6::text::numeric, $7::text::numeric, $8)`,
				result.RunID, p.categoryPosition, p.position, p.name,
				p.basePrice, p.wholesalePrice, p.retailPrice, p.sourceURL)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert run rows: %w", err)
		}
		return nil
	})
}

const runColumns = `
	id, index_url, workbook_path, started_at, finished_at,
	categories_discovered, categories_completed, categories_skipped,
	pages_rendered, pagination_pages, page_warnings, product_count`

func scanRun(row pgx.Row) (*RunSummary, error) {
	var r RunSummary
	err := row.Scan(
		&r.ID, &r.IndexURL, &r.WorkbookPath, &r.StartedAt, &r.FinishedAt,
		&r.Stats.CategoriesDiscovered, &r.Stats.CategoriesCompleted, &r.Stats.CategoriesSkipped,
		&r.Stats.PagesRendered, &r.Stats.PaginationPages, &r.Stats.PageWarnings, &r.ProductCount,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns the most recent runs first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM crawl_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (*RunDetail, error) {
	summary, err := scanRun(s.db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM crawl_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.pool.Query(ctx, `
		SELECT c.name, c.base_url, c.page_count, COUNT(p.position)
		FROM crawl_categories c
		LEFT JOIN crawl_products p ON p.run_id = c.run_id AND p.category_position = c.position
		WHERE c.run_id = $1
		GROUP BY c.position, c.name, c.base_url, c.page_count
		ORDER BY c.position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	detail := &RunDetail{RunSummary: *summary, Categories: []CategorySummary{}}
	for rows.Next() {
		var c CategorySummary
		if err := rows.Scan(&c.Name, &c.BaseURL, &c.PageCount, &c.ProductCount); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		detail.Categories = append(detail.Categories, c)
	}
	return detail, rows.Err()
}

// GetRunProducts lists a run's products in export order. A non-empty
// category restricts the result to that category, compared
// case-insensitively.
func (s *RunStore) GetRunProducts(ctx context.Context, id uuid.UUID, category string) ([]RunProduct, error) {
	var exists bool
	if err := s.db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM crawl_runs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check run: %w", err)
	}
	if !exists {
		return nil, ErrRunNotFound
	}

	rows, err := s.db.pool.Query(ctx, `
		SELECT c.name, p.name, p.base_price::text, p.wholesale_price::text, p.retail_price::text, p.source_url
		FROM crawl_products p
		JOIN crawl_categories c ON c.run_id = p.run_id AND c.position = p.category_position
		WHERE p.run_id = $1 AND ($2 = '' OR lower(c.name) = lower($2))
		ORDER BY p.category_position, p.position`, id, strings.TrimSpace(category))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []RunProduct{}
	for rows.Next() {
		var (
			p                       RunProduct
			base, wholesale, retail string
		)
		if err := rows.Scan(&p.Category, &p.Name, &base, &wholesale, &retail, &p.SourceURL); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if p.BasePrice, err = decimal.NewFromString(base); err != nil {
			return nil, fmt.Errorf("invalid base price %q: %w", base, err)
		}
		if p.WholesalePrice, err = decimal.NewFromString(wholesale); err != nil {
			return nil, fmt.Errorf("invalid wholesale price %q: %w", wholesale, err)
		}
		if p.RetailPrice, err = decimal.NewFromString(retail); err != nil {
			return nil, fmt.Errorf("invalid retail price %q: %w", retail, err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
