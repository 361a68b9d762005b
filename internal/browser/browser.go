package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Renderer loads a URL in a real browser and returns the rendered HTML once
// client-side content has settled.
type Renderer interface {
	Render(ctx context.Context, url string, waitFor string) (string, error)
	Close() error
}

const (
	EnginePlaywright = "playwright"
	EngineRod        = "rod"
)

type Options struct {
	Engine         string
	Headless       bool
	Timeout        time.Duration
	SettleTimeout  time.Duration
	PollInterval   time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	CacheSize      int
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Engine:         EnginePlaywright,
		Headless:       true,
		Timeout:        30 * time.Second,
		SettleTimeout:  12 * time.Second,
		PollInterval:   500 * time.Millisecond,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "es-AR,es;q=0.9,en;q=0.8",
		TimezoneID:     "America/Argentina/Buenos_Aires",
		Locale:         "es-AR",
		CacheSize:      16,
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
	}
}

// Open starts the configured engine, wrapping it in a snapshot cache when
// opts.CacheSize is positive.
func Open(opts *Options) (Renderer, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	var (
		r   Renderer
		err error
	)
	switch opts.Engine {
	case "", EnginePlaywright:
		r, err = New(opts)
	case EngineRod:
		r, err = NewRod(opts)
	default:
		return nil, fmt.Errorf("unsupported browser engine: %s", opts.Engine)
	}
	if err != nil {
		return nil, err
	}

	if opts.CacheSize > 0 {
		cached, err := NewCachedRenderer(r, opts.CacheSize)
		if err != nil {
			r.Close()
			return nil, err
		}
		return cached, nil
	}
	return r, nil
}

// Browser renders pages with Playwright's Chromium.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-gpu",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
		},
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	}

	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		opts:    opts,
		logger:  slog.Default().With("component", "browser", "engine", EnginePlaywright),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

// Render opens a fresh page, navigates to url and waits for waitFor to
// appear and stop changing. A selector that never appears is not an error:
// the page is returned as rendered so callers can treat it as empty.
func (b *Browser) Render(ctx context.Context, url string, waitFor string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	page, err := b.NewPage()
	if err != nil {
		return "", err
	}
	defer func() {
		if err := page.Close(); err != nil {
			b.logger.Debug("failed to close page", "url", url, "error", err)
		}
	}()

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
	})
	if err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if resp != nil && !resp.Ok() {
		return "", fmt.Errorf("failed to navigate to %s: status %d", url, resp.Status())
	}

	if waitFor != "" {
		_, err := page.WaitForSelector(waitFor, playwright.PageWaitForSelectorOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: playwright.Float(float64(b.opts.SettleTimeout.Milliseconds())),
		})
		if err != nil {
			b.logger.Debug("selector did not appear", "url", url, "selector", waitFor)
		} else {
			count := func() (int, error) { return page.Locator(waitFor).Count() }
			if err := waitStable(ctx, count, b.opts.SettleTimeout, b.opts.PollInterval); err != nil {
				return "", err
			}
		}
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
