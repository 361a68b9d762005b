package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/catalog-price-scraper/internal/browser"
	"github.com/maltedev/catalog-price-scraper/internal/config"
	"github.com/maltedev/catalog-price-scraper/internal/database"
	"github.com/maltedev/catalog-price-scraper/internal/events"
	"github.com/maltedev/catalog-price-scraper/internal/export"
	"github.com/maltedev/catalog-price-scraper/internal/parser"
	"github.com/maltedev/catalog-price-scraper/internal/scraper"
	"github.com/maltedev/catalog-price-scraper/internal/upload"
	"github.com/redis/go-redis/v9"
)

func BrowserOptions(c config.BrowserConfig) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Engine = c.Engine
	opts.Headless = c.Headless
	opts.Timeout = c.Timeout
	opts.SettleTimeout = c.SettleTimeout
	opts.PollInterval = c.PollInterval
	opts.ViewportWidth = c.ViewportWidth
	opts.ViewportHeight = c.ViewportHeight
	opts.UserAgent = c.UserAgent
	opts.AcceptLanguage = c.AcceptLanguage
	opts.TimezoneID = c.TimezoneID
	opts.Locale = c.Locale
	opts.CacheSize = c.CacheSize
	return opts
}

func Selectors(c config.SelectorConfig) parser.Selectors {
	return parser.Selectors{
		ProductContainer: c.ProductContainer,
		ProductName:      c.ProductName,
		ProductPrice:     c.ProductPrice,
		PaginationLink:   c.PaginationLink,
		CategoryPath:     c.CategoryPath,
	}
}

func ScraperOptions(c config.ScraperConfig) scraper.Options {
	return scraper.Options{
		IndexURL:            c.IndexURL,
		IndexWaitSelector:   c.IndexWaitSelector,
		ProductWaitSelector: c.Selectors.ProductContainer,
		DedupeCategories:    c.DedupeCategories,
	}
}

func DatabaseConfig(c config.DatabaseConfig) database.Config {
	return database.Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Name,
		SSLMode:  c.SSLMode,
		MaxConns: c.MaxConns,
	}
}

// Runtime is a Service together with the connections built for it.
type Runtime struct {
	Service *Service
	DB      *database.DB
	Runs    *database.RunStore
	closers []func() error
}

func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Setup builds a Service from configuration, connecting the optional
// archive, event stream and bucket that are enabled.
func Setup(ctx context.Context, cfg *config.Config, metrics *scraper.Metrics, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{}
	deps := Dependencies{
		OpenRenderer: func() (browser.Renderer, error) {
			return browser.Open(BrowserOptions(cfg.Browser))
		},
		Parser:   parser.NewCatalogParser(Selectors(cfg.Scraper.Selectors), cfg.Scraper.ExcludedCategories),
		Exporter: export.NewWorkbookExporter(),
		Metrics:  metrics,
	}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, DatabaseConfig(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.closers = append(rt.closers, func() error { db.Close(); return nil })

		runs := database.NewRunStore(db)
		if err := runs.EnsureSchema(ctx); err != nil {
			rt.Close()
			return nil, err
		}
		rt.DB = db
		rt.Runs = runs
		deps.Archive = runs
		logger.Info("run archive enabled", "host", cfg.Database.Host, "database", cfg.Database.Name)
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			rt.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		publisher := events.NewPublisher(client, cfg.Redis.Stream, logger)
		rt.closers = append(rt.closers, publisher.Close)
		deps.Publisher = publisher
		logger.Info("export events enabled", "addr", cfg.Redis.Addr, "stream", cfg.Redis.Stream)
	}

	if cfg.Storage.Enabled {
		uploader, err := upload.NewUploader(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, uploader.Close)
		deps.Uploader = uploader
		logger.Info("artifact upload enabled", "bucket", cfg.Storage.Bucket)
	}

	rt.Service = NewService(deps, Options{
		Scraper:    ScraperOptions(cfg.Scraper),
		OutputPath: cfg.Export.OutputPath,
		Snapshot:   cfg.Export.Snapshot,
	}, logger)
	return rt, nil
}
