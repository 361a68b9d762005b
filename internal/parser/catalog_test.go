package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-price-scraper/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<!DOCTYPE html>
<html>
<body>
	<div class="products-grid">
		<div class="col product-default inner-quickview">
			<a class="default-text-product" href="/product/vela-miel">
				Vela de Miel
			</a>
			<span class="product-price">
				$ 1.234,56<br>
				<del>antes $2.000</del>
			</span>
		</div>
		<div class="product-default banner">
			<img src="/promo.png" alt="promo">
		</div>
		<div class="product-default">
			<a class="default-text-product" href="/product/sahumerio">Sahumerio   Sándalo</a>
			<span class="product-price">$ 850</span>
		</div>
		<div class="product-default">
			<a class="default-text-product" href="/product/consultar">Imagen San Jorge</a>
			<span class="product-price">Consultar</span>
		</div>
		<div class="product-default">
			<a class="default-text-product featured" href="/product/x">Wrong class</a>
			<span class="product-price">$ 10</span>
		</div>
		<div class="product-default">
			<span class="product-price">$ 10</span>
		</div>
		<div class="product-default">
			<a class="default-text-product" href="/product/agua">Agua Florida</a>
			<span class="product-price">$ 12.500,00</span>
		</div>
	</div>
	<ul class="pagination">
		<li class="page-item"><a class="page-link" href="?page=1">1</a></li>
		<li class="page-item"><a class="page-link" href="?page=2">2</a></li>
		<li class="page-item"><a class="page-link" href="?page=5">5</a></li>
		<li class="page-item"><a class="page-link" href="?page=2">Siguiente</a></li>
	</ul>
</body>
</html>`

func newTestParser() *CatalogParser {
	return NewCatalogParser(DefaultSelectors(), DefaultExcludedCategories())
}

func TestParseProducts(t *testing.T) {
	p := newTestParser()
	pageURL := "https://shop.example/category/velas?page=1"

	products, err := p.ParseProducts(listingPage, pageURL)
	require.NoError(t, err)
	require.Len(t, products, 3)

	assert.Equal(t, "Vela de Miel", products[0].Name)
	assert.True(t, products[0].BasePrice.Equal(decimal.RequireFromString("1234.56")))
	assert.True(t, products[0].WholesalePrice.Equal(decimal.RequireFromString("1604.928")))
	assert.True(t, products[0].RetailPrice.Equal(decimal.RequireFromString("2469.12")))
	assert.Equal(t, pageURL, products[0].SourceURL)

	assert.Equal(t, "Sahumerio Sándalo", products[1].Name)
	assert.True(t, products[1].BasePrice.Equal(decimal.NewFromInt(850)))

	assert.Equal(t, "Agua Florida", products[2].Name)
	assert.True(t, products[2].BasePrice.Equal(decimal.NewFromInt(12500)))
}

func TestParseProductsSkippedContainersDoNotAffectSiblings(t *testing.T) {
	p := newTestParser()
	withAd := `<div class="product-default"><a class="default-text-product">Uno</a><span class="product-price">$ 1</span></div>
		<div class="product-default"><p>publicidad</p></div>
		<div class="product-default"><a class="default-text-product">Dos</a><span class="product-price">$ 2</span></div>`
	withoutAd := `<div class="product-default"><a class="default-text-product">Uno</a><span class="product-price">$ 1</span></div>
		<div class="product-default"><a class="default-text-product">Dos</a><span class="product-price">$ 2</span></div>`

	got, err := p.ParseProducts(withAd, "u")
	require.NoError(t, err)
	want, err := p.ParseProducts(withoutAd, "u")
	require.NoError(t, err)

	assert.Equal(t, names(want), names(got))
}

func TestParseProductsEmptyPage(t *testing.T) {
	products, err := newTestParser().ParseProducts(`<html><body><p>Sin resultados</p></body></html>`, "u")

	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestParsePageCount(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name     string
		html     string
		expected int
	}{
		{"numeric max ignoring next link", listingPage, 5},
		{"no pagination", `<div class="product-default"></div>`, 1},
		{"only text links", `<ul class="pagination"><li><a class="page-link">Anterior</a></li><li><a class="page-link">Siguiente</a></li></ul>`, 1},
		{"blank links", `<ul class="pagination"><li><a class="page-link">  </a></li></ul>`, 1},
		{"whitespace around numbers", `<ul class="pagination"><li><a class="page-link"> 3 </a></li><li><a class="page-link">12</a></li></ul>`, 12},
		{"links outside pagination", `<a class="page-link">9</a><ul class="pagination"><li><a class="page-link">2</a></li></ul>`, 2},
		{"zero only", `<ul class="pagination"><li><a class="page-link">0</a></li></ul>`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.ParsePageCount(tt.html))
		})
	}
}

func TestParseCategories(t *testing.T) {
	p := newTestParser()
	index := `<nav>
		<a href="/category/aromanza-1">Aromanza</a>
		<a href="/category/acero">ACERO</a>
		<a href="/category/x"></a>
		<a href="/about">Nosotros</a>
	</nav>`

	links, err := p.ParseCategories(index, "https://shop.example/products")
	require.NoError(t, err)

	assert.Equal(t, []models.CategoryLink{
		{Name: "Aromanza", BaseURL: "https://shop.example/category/aromanza-1"},
	}, links)
}

func TestParseCategoriesNormalizesNamesAndURLs(t *testing.T) {
	p := NewCatalogParser(DefaultSelectors(), []string{"acero", " Category Image "})
	index := `<div>
		<a href="https://shop.example/category/velas?page=3&amp;sort=price#top">
			Velas
			y Velones
		</a>
		<a href="/category/imagenes"><span>category image</span></a>
		<a href="/category/acero-quirurgico">Acero</a>
		<a href="/category/velas?page=1">Velas y Velones</a>
	</div>`

	links, err := p.ParseCategories(index, "https://shop.example/")
	require.NoError(t, err)

	assert.Equal(t, []models.CategoryLink{
		{Name: "Velas y Velones", BaseURL: "https://shop.example/category/velas"},
		{Name: "Velas y Velones", BaseURL: "https://shop.example/category/velas"},
	}, links)
}

func TestRenderedText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<span id="t">
			$ 1.234,56<br><del>antes
			$2.000</del><script>var x = 1;</script>
		</span>`))
	require.NoError(t, err)

	assert.Equal(t, "$ 1.234,56\nantes $2.000", renderedText(doc.Find("#t")))
	assert.Equal(t, "$ 1.234,56 antes $2.000", inlineText(doc.Find("#t")))
}

func names(products []models.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}

func TestCategoryLinkSelector(t *testing.T) {
	assert.Equal(t, `a[href*="/category/"]`, CategoryLinkSelector(DefaultSelectors().CategoryPath))
	assert.Equal(t, `a[href*="/c/\"x\""]`, CategoryLinkSelector(`/c/"x"`))
}
