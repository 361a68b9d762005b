package browser

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedRenderer keeps the most recent snapshots in memory so a URL rendered
// twice in one run (pagination count, then page 1 extraction) hits the
// browser once. Failed renders are not cached.
type CachedRenderer struct {
	next   Renderer
	cache  *lru.Cache[string, string]
	logger *slog.Logger
}

func NewCachedRenderer(next Renderer, size int) (*CachedRenderer, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &CachedRenderer{
		next:   next,
		cache:  cache,
		logger: slog.Default().With("component", "render_cache"),
	}, nil
}

func (c *CachedRenderer) Render(ctx context.Context, url string, waitFor string) (string, error) {
	key := url + "\x00" + waitFor
	if html, ok := c.cache.Get(key); ok {
		c.logger.Debug("snapshot cache hit", "url", url)
		return html, nil
	}

	html, err := c.next.Render(ctx, url, waitFor)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, html)
	return html, nil
}

func (c *CachedRenderer) Close() error {
	c.cache.Purge()
	return c.next.Close()
}
