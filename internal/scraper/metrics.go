package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Page kinds label rendered pages. A pagination page is the page-1 render
// that only reads pagination links; with a render cache the extraction of
// page 1 reuses it.
const (
	PageKindIndex      = "index"
	PageKindPagination = "pagination"
	PageKindListing    = "listing"
)

// Metrics bundles the crawl collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Registry          *prometheus.Registry
	PagesRendered     *prometheus.CounterVec
	RenderFailures    *prometheus.CounterVec
	ProductsExtracted prometheus.Counter
	Categories        *prometheus.CounterVec
	RunDuration       prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_pages_rendered_total",
			Help: "Pages successfully rendered by the browser.",
		},
		[]string{"kind"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_render_failures_total",
			Help: "Pages that failed to render and were treated as empty.",
		},
		[]string{"kind"},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_products_extracted_total",
			Help: "Products extracted from listing pages.",
		},
	)
	categories := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_categories_total",
			Help: "Crawled categories by final state.",
		},
		[]string{"state"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_run_duration_seconds",
			Help:    "Wall time of complete crawl runs.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 8),
		},
	)

	registry.MustRegister(pages, failures, products, categories, duration)

	return &Metrics{
		Registry:          registry,
		PagesRendered:     pages,
		RenderFailures:    failures,
		ProductsExtracted: products,
		Categories:        categories,
		RunDuration:       duration,
	}
}

func (m *Metrics) IncPage(kind string) {
	if m == nil {
		return
	}
	m.PagesRendered.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncRenderFailure(kind string) {
	if m == nil {
		return
	}
	m.RenderFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddProducts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ProductsExtracted.Add(float64(n))
}

func (m *Metrics) IncCategory(state CategoryState) {
	if m == nil {
		return
	}
	m.Categories.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}
