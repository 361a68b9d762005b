package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/maltedev/catalog-price-scraper/internal/models"
	"github.com/maltedev/catalog-price-scraper/internal/parser"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexURL = "https://shop.example/products/category/aromanza-1"

type fakeRenderer struct {
	pages    map[string]string
	failures map[string]error
	calls    []string
	onRender func(url string)
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		pages:    map[string]string{},
		failures: map[string]error{},
	}
}

func (r *fakeRenderer) Render(ctx context.Context, url string, _ string) (string, error) {
	r.calls = append(r.calls, url)
	if r.onRender != nil {
		r.onRender(url)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := r.failures[url]; ok {
		return "", err
	}
	if html, ok := r.pages[url]; ok {
		return html, nil
	}
	return "<html><body></body></html>", nil
}

func (r *fakeRenderer) rendered(url string) int {
	n := 0
	for _, c := range r.calls {
		if c == url {
			n++
		}
	}
	return n
}

func indexPage(links ...[2]string) string {
	var b strings.Builder
	b.WriteString("<html><body><nav>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, l[1], l[0])
	}
	b.WriteString("</nav></body></html>")
	return b.String()
}

// listingPage renders products as name/price pairs plus a pagination bar
// with links 1..pages.
func listingPage(pages int, products ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i+1 < len(products); i += 2 {
		fmt.Fprintf(&b, `<div class="product-default"><a class="default-text-product">%s</a><span class="product-price">%s</span></div>`, products[i], products[i+1])
	}
	if pages > 1 {
		b.WriteString(`<ul class="pagination">`)
		for p := 1; p <= pages; p++ {
			fmt.Fprintf(&b, `<li><a class="page-link">%d</a></li>`, p)
		}
		b.WriteString(`<li><a class="page-link">Siguiente</a></li></ul>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestCrawler(r Renderer, metrics *Metrics) *Crawler {
	p := parser.NewCatalogParser(parser.DefaultSelectors(), parser.DefaultExcludedCategories())
	return NewCrawler(r, p, Options{
		IndexURL:            indexURL,
		ProductWaitSelector: parser.DefaultSelectors().ProductContainer,
		DedupeCategories:    true,
	}, metrics)
}

const (
	velasURL      = "https://shop.example/category/velas"
	sahumeriosURL = "https://shop.example/category/sahumerios"
)

func TestRun(t *testing.T) {
	r := newFakeRenderer()
	r.pages[indexURL] = indexPage(
		[2]string{"Velas", "/category/velas"},
		[2]string{"ACERO", "/category/acero"},
		[2]string{"Sahumerios", "/category/sahumerios?page=1"},
	)
	r.pages[PageURL(velasURL, 1)] = listingPage(3, "Vela Miel", "$ 1.234,56<br>antes $2.000", "Vela Roja", "$ 100")
	r.pages[PageURL(velasURL, 2)] = listingPage(3)
	r.pages[PageURL(velasURL, 3)] = listingPage(3, "Vela Azul", "$ 50,50")
	r.pages[PageURL(sahumeriosURL, 1)] = listingPage(4)

	metrics := NewMetrics()
	result, err := newTestCrawler(r, metrics).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Categories, 1)
	velas := result.Categories[0]
	assert.Equal(t, "Velas", velas.Name)
	assert.Equal(t, velasURL, velas.BaseURL)
	assert.Equal(t, 3, velas.PageCount)
	require.Len(t, velas.Products, 3)
	assert.Equal(t, []string{"Vela Miel", "Vela Roja", "Vela Azul"}, productNames(velas.Products))
	assert.True(t, velas.Products[0].BasePrice.Equal(decimal.RequireFromString("1234.56")))
	assert.Equal(t, "1604.93", velas.Products[0].WholesalePrice.StringFixed(2))
	assert.Equal(t, "2469.12", velas.Products[0].RetailPrice.StringFixed(2))
	assert.Equal(t, PageURL(velasURL, 3), velas.Products[2].SourceURL)

	assert.Equal(t, indexURL, result.IndexURL)
	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
	assert.Equal(t, models.CrawlStats{
		CategoriesDiscovered: 2,
		CategoriesCompleted:  1,
		CategoriesSkipped:    1,
		PagesRendered:        4,
		PaginationPages:      2,
		PageWarnings:         0,
	}, result.Stats)

	assert.Equal(t, 0, r.rendered(PageURL(sahumeriosURL, 2)), "empty first page must stop the category")
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ProductsExtracted))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Categories.WithLabelValues(string(StateComplete))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Categories.WithLabelValues(string(StateSkipped))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PagesRendered.WithLabelValues(PageKindIndex)))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.PagesRendered.WithLabelValues(PageKindListing)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PagesRendered.WithLabelValues(PageKindPagination)))
}

func TestRunEmptyFirstPageSkipsCategoryRegardlessOfPageCount(t *testing.T) {
	r := newFakeRenderer()
	r.pages[indexURL] = indexPage([2]string{"Velas", "/category/velas"}, [2]string{"Sahumerios", "/category/sahumerios"})
	r.pages[PageURL(velasURL, 1)] = listingPage(5)
	r.pages[PageURL(velasURL, 2)] = listingPage(5, "Escondida", "$ 10")
	r.pages[PageURL(sahumeriosURL, 1)] = listingPage(1, "Palo Santo", "$ 300")

	result, err := newTestCrawler(r, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Categories, 1)
	assert.Equal(t, "Sahumerios", result.Categories[0].Name)
	for p := 2; p <= 5; p++ {
		assert.Zero(t, r.rendered(PageURL(velasURL, p)))
	}
}

func TestRunPageFailureKeepsOtherPages(t *testing.T) {
	r := newFakeRenderer()
	r.pages[indexURL] = indexPage([2]string{"Velas", "/category/velas"})
	r.pages[PageURL(velasURL, 1)] = listingPage(3, "Uno", "$ 1")
	r.failures[PageURL(velasURL, 2)] = errors.New("navigation timeout")
	r.pages[PageURL(velasURL, 3)] = listingPage(3, "Tres", "$ 3")

	result, err := newTestCrawler(r, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Categories, 1)
	assert.Equal(t, []string{"Uno", "Tres"}, productNames(result.Categories[0].Products))
	assert.Equal(t, 1, result.Stats.PageWarnings)
}

func TestRunIndexRenderFailure(t *testing.T) {
	r := newFakeRenderer()
	r.failures[indexURL] = errors.New("net::ERR_NAME_NOT_RESOLVED")

	result, err := newTestCrawler(r, nil).Run(context.Background())

	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Nil(t, result)
	assert.Equal(t, []string{indexURL}, r.calls)
}

func TestRunNoProducts(t *testing.T) {
	r := newFakeRenderer()
	r.pages[indexURL] = indexPage([2]string{"Velas", "/category/velas"})

	result, err := newTestCrawler(r, nil).Run(context.Background())

	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Nil(t, result)
}

func TestRunDedupe(t *testing.T) {
	setup := func() *fakeRenderer {
		r := newFakeRenderer()
		r.pages[indexURL] = indexPage(
			[2]string{"Velas", "/category/velas"},
			[2]string{"Velas", "/category/velas?page=2"},
		)
		r.pages[PageURL(velasURL, 1)] = listingPage(1, "Uno", "$ 1")
		return r
	}

	t.Run("enabled", func(t *testing.T) {
		result, err := newTestCrawler(setup(), nil).Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, result.Categories, 1)
	})

	t.Run("disabled", func(t *testing.T) {
		c := newTestCrawler(setup(), nil)
		c.opts.DedupeCategories = false

		result, err := c.Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, result.Categories, 2)
	})
}

func TestRunCancelledBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newFakeRenderer()
	r.pages[indexURL] = indexPage([2]string{"Velas", "/category/velas"})
	r.pages[PageURL(velasURL, 1)] = listingPage(3, "Uno", "$ 1")
	r.onRender = func(url string) {
		if url == PageURL(velasURL, 2) {
			cancel()
		}
	}

	result, err := newTestCrawler(r, nil).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.Zero(t, r.rendered(PageURL(velasURL, 3)))
}

func TestResolvePageCount(t *testing.T) {
	r := newFakeRenderer()
	r.pages[PageURL(velasURL, 1)] = `<ul class="pagination">
		<li><a class="page-link">1</a></li>
		<li><a class="page-link">2</a></li>
		<li><a class="page-link">5</a></li>
		<li><a class="page-link">Siguiente</a></li>
	</ul>`
	r.failures[PageURL(sahumeriosURL, 1)] = errors.New("timeout")
	metrics := NewMetrics()
	c := newTestCrawler(r, metrics)

	assert.Equal(t, 5, c.ResolvePageCount(context.Background(), velasURL))
	assert.Equal(t, 1, c.ResolvePageCount(context.Background(), sahumeriosURL))
	assert.Equal(t, 1, c.ResolvePageCount(context.Background(), "https://shop.example/category/sin-paginas"))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PagesRendered.WithLabelValues(PageKindPagination)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RenderFailures.WithLabelValues(PageKindPagination)))
	assert.Zero(t, testutil.ToFloat64(metrics.PagesRendered.WithLabelValues(PageKindListing)))
}

func TestDiscoverCategories(t *testing.T) {
	r := newFakeRenderer()
	r.pages[indexURL] = indexPage(
		[2]string{"Aromanza", "/category/aromanza-1"},
		[2]string{"ACERO", "/category/acero"},
		[2]string{"", "/category/x"},
	)
	c := newTestCrawler(r, nil)

	links := c.DiscoverCategories(context.Background(), indexURL)

	assert.Equal(t, []models.CategoryLink{
		{Name: "Aromanza", BaseURL: "https://shop.example/category/aromanza-1"},
	}, links)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncPage(PageKindListing)
		m.IncRenderFailure(PageKindIndex)
		m.AddProducts(3)
		m.IncCategory(StateComplete)
		m.ObserveRun(0)
	})
}

func productNames(products []models.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}
