package scraper

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/maltedev/catalog-price-scraper/internal/models"
)

// PageURL returns the listing URL for page n of a category.
func PageURL(baseURL string, n int) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Sprintf("%s?page=%d", baseURL, n)
	}

	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}

// DedupeByURL drops repeated category links, keeping the first occurrence
// of each base URL.
func DedupeByURL(links []models.CategoryLink) []models.CategoryLink {
	seen := make(map[string]struct{}, len(links))
	out := make([]models.CategoryLink, 0, len(links))
	for _, link := range links {
		if _, ok := seen[link.BaseURL]; ok {
			continue
		}
		seen[link.BaseURL] = struct{}{}
		out = append(out, link)
	}
	return out
}
