package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodBrowser renders pages over the DevTools protocol with go-rod.
type RodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	opts     *Options
	logger   *slog.Logger
}

func NewRod(opts *Options) (*RodBrowser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("window-size", fmt.Sprintf("%d,%d", opts.ViewportWidth, opts.ViewportHeight))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodBrowser{
		launcher: l,
		browser:  browser,
		opts:     opts,
		logger:   slog.Default().With("component", "browser", "engine", EngineRod),
	}, nil
}

func (b *RodBrowser) newPage(ctx context.Context) (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page = page.Context(ctx)

	err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      b.opts.UserAgent,
		AcceptLanguage: b.opts.AcceptLanguage,
	})
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.ViewportWidth,
		Height:            b.opts.ViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if b.opts.TimezoneID != "" {
		err = proto.EmulationSetTimezoneOverride{TimezoneID: b.opts.TimezoneID}.Call(page)
		if err != nil {
			b.logger.Debug("failed to set timezone", "timezone", b.opts.TimezoneID, "error", err)
		}
	}

	return page, nil
}

func (b *RodBrowser) Render(ctx context.Context, url string, waitFor string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	page, err := b.newPage(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := page.Close(); err != nil {
			b.logger.Debug("failed to close page", "url", url, "error", err)
		}
	}()

	var e proto.NetworkResponseReceived
	err = timed(page, b.opts.Timeout, func(p *rod.Page) error {
		wait := p.WaitEvent(&e)
		if err := p.Navigate(url); err != nil {
			return err
		}
		wait()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if e.Response != nil && (e.Response.Status < 200 || e.Response.Status > 299) {
		return "", fmt.Errorf("failed to navigate to %s: status %d", url, e.Response.Status)
	}

	if err := timed(page, b.opts.Timeout, (*rod.Page).WaitLoad); err != nil {
		return "", fmt.Errorf("failed to wait for page load: %w", err)
	}

	if waitFor != "" {
		err := timed(page, b.opts.SettleTimeout, func(p *rod.Page) error {
			_, err := p.Element(waitFor)
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			b.logger.Debug("selector did not appear", "url", url, "selector", waitFor)
		} else {
			count := func() (int, error) {
				elements, err := page.Elements(waitFor)
				return len(elements), err
			}
			if err := waitStable(ctx, count, b.opts.SettleTimeout, b.opts.PollInterval); err != nil {
				return "", err
			}
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (b *RodBrowser) Close() error {
	var errs []error
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	return errors.Join(errs...)
}

// timed runs fn against page bounded by d and releases the timer as soon as
// fn returns.
func timed(page *rod.Page, d time.Duration, fn func(*rod.Page) error) error {
	p := page.Timeout(d)
	defer p.CancelTimeout()
	return fn(p)
}
