package parser

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-price-scraper/internal/models"
	"github.com/maltedev/catalog-price-scraper/internal/pricing"
)

type CatalogParser struct {
	selectors Selectors
	excluded  map[string]struct{}
}

func NewCatalogParser(selectors Selectors, excludedCategories []string) *CatalogParser {
	excluded := make(map[string]struct{}, len(excludedCategories))
	for _, name := range excludedCategories {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name != "" {
			excluded[name] = struct{}{}
		}
	}

	return &CatalogParser{
		selectors: selectors,
		excluded:  excluded,
	}
}

// ParseProducts extracts every product container of a listing page in
// document order. Containers without a name or a parseable price are
// skipped; they are usually banners or ad slots.
func (p *CatalogParser) ParseProducts(html string, pageURL string) ([]models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var products []models.Product
	doc.Find(p.selectors.ProductContainer).Each(func(_ int, container *goquery.Selection) {
		product, ok := p.extractProduct(container, pageURL)
		if ok {
			products = append(products, product)
		}
	})

	return products, nil
}

func (p *CatalogParser) extractProduct(container *goquery.Selection, pageURL string) (models.Product, bool) {
	nameNode, ok := first(container, p.selectors.ProductName)
	if !ok {
		return models.Product{}, false
	}
	priceNode, ok := first(container, p.selectors.ProductPrice)
	if !ok {
		return models.Product{}, false
	}

	base, ok := pricing.ParsePrice(renderedText(priceNode))
	if !ok {
		return models.Product{}, false
	}

	return models.NewProduct(inlineText(nameNode), base, pageURL), true
}

// ParsePageCount returns the highest numeric pagination link, or 1 when
// the page has no numeric pagination links.
func (p *CatalogParser) ParsePageCount(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 1
	}

	pages := 1
	doc.Find(p.selectors.PaginationLink).Each(func(_ int, link *goquery.Selection) {
		text := strings.TrimSpace(link.Text())
		if text == "" {
			return
		}
		n, err := strconv.Atoi(text)
		if err != nil {
			return
		}
		if n > pages {
			pages = n
		}
	})

	return pages
}

// ParseCategories lists the category links of the index page. Links with
// empty or excluded names are dropped; repeated links are kept.
func (p *CatalogParser) ParseCategories(html string, indexURL string) ([]models.CategoryLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index URL: %w", err)
	}

	selector := CategoryLinkSelector(p.selectors.CategoryPath)

	var links []models.CategoryLink
	doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
		name := inlineText(a)
		if name == "" || p.isExcluded(name) {
			return
		}

		href, _ := a.Attr("href")
		target, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		target.RawQuery = ""
		target.ForceQuery = false
		target.Fragment = ""

		links = append(links, models.CategoryLink{
			Name:    name,
			BaseURL: target.String(),
		})
	})

	return links, nil
}

func (p *CatalogParser) isExcluded(name string) bool {
	_, ok := p.excluded[strings.ToUpper(name)]
	return ok
}

func first(s *goquery.Selection, selector string) (*goquery.Selection, bool) {
	found := s.Find(selector)
	if found.Length() == 0 {
		return nil, false
	}
	return found.First(), true
}
