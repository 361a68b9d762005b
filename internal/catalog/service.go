package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/catalog-price-scraper/internal/browser"
	"github.com/maltedev/catalog-price-scraper/internal/events"
	"github.com/maltedev/catalog-price-scraper/internal/export"
	"github.com/maltedev/catalog-price-scraper/internal/models"
	"github.com/maltedev/catalog-price-scraper/internal/parser"
	"github.com/maltedev/catalog-price-scraper/internal/scraper"
)

type Exporter interface {
	Export(result *models.CrawlResult, path string) ([]string, error)
}

type RunArchive interface {
	SaveRun(ctx context.Context, result *models.CrawlResult, workbookPath string) error
}

type EventPublisher interface {
	PublishCatalogExported(ctx context.Context, payload *events.CatalogExportedPayload) error
}

type ArtifactUploader interface {
	Upload(ctx context.Context, runID, localPath string) (string, error)
}

// Dependencies wires a Service. Archive, Publisher and Uploader are
// optional and skipped when nil.
type Dependencies struct {
	OpenRenderer func() (browser.Renderer, error)
	Parser       parser.Parser
	Exporter     Exporter
	Archive      RunArchive
	Publisher    EventPublisher
	Uploader     ArtifactUploader
	Metrics      *scraper.Metrics
}

type Options struct {
	Scraper    scraper.Options
	OutputPath string
	Snapshot   bool
}

// Report describes a finished run.
type Report struct {
	Result       *models.CrawlResult
	WorkbookPath string
	SnapshotPath string
	Sheets       []string
	ObjectURIs   []string
	SinkFailures int
}

// Service runs the complete crawl and export pipeline. A browser is opened
// for each run and closed when the run ends.
type Service struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger
}

func NewService(deps Dependencies, opts Options, logger *slog.Logger) *Service {
	return &Service{
		deps:   deps,
		opts:   opts,
		logger: logger.With("component", "catalog_service"),
	}
}

func (s *Service) withCrawler(fn func(*scraper.Crawler) error) error {
	renderer, err := s.deps.OpenRenderer()
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			s.logger.Warn("failed to close browser", "error", err)
		}
	}()

	return fn(scraper.NewCrawler(renderer, s.deps.Parser, s.opts.Scraper, s.deps.Metrics))
}

// Discover lists the categories a run would crawl.
func (s *Service) Discover(ctx context.Context) ([]models.CategoryLink, error) {
	var links []models.CategoryLink
	err := s.withCrawler(func(c *scraper.Crawler) error {
		links = c.DiscoverCategories(ctx, s.opts.Scraper.IndexURL)
		if s.opts.Scraper.DedupeCategories {
			links = scraper.DedupeByURL(links)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// Run crawls the catalog and writes the workbook. Crawl errors, including
// scraper.ErrNothingToExport, and export errors fail the run. Snapshot,
// archive, upload and event failures are logged and counted in the report.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	var result *models.CrawlResult
	err := s.withCrawler(func(c *scraper.Crawler) error {
		var err error
		result, err = c.Run(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	sheets, err := s.deps.Exporter.Export(result, s.opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to export workbook: %w", err)
	}

	report := &Report{
		Result:       result,
		WorkbookPath: s.opts.OutputPath,
		Sheets:       sheets,
	}
	logger := s.logger.With("run_id", result.RunID)

	if s.opts.Snapshot {
		path := export.SnapshotPath(s.opts.OutputPath)
		if err := export.WriteSnapshot(result, path); err != nil {
			report.SinkFailures++
			logger.Warn("failed to write snapshot", "path", path, "error", err)
		} else {
			report.SnapshotPath = path
		}
	}

	// Sinks run on their own deadline, detached from ctx cancellation.
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()

	if s.deps.Archive != nil {
		if err := s.deps.Archive.SaveRun(sinkCtx, result, report.WorkbookPath); err != nil {
			report.SinkFailures++
			logger.Warn("failed to archive run", "error", err)
		}
	}

	if s.deps.Uploader != nil {
		for _, path := range report.artifacts() {
			uri, err := s.deps.Uploader.Upload(sinkCtx, result.RunID.String(), path)
			if err != nil {
				report.SinkFailures++
				logger.Warn("failed to upload artifact", "path", path, "error", err)
				continue
			}
			report.ObjectURIs = append(report.ObjectURIs, uri)
		}
	}

	if s.deps.Publisher != nil {
		payload := events.NewCatalogExportedPayload(result, report.WorkbookPath, sheets)
		if len(report.ObjectURIs) > 0 {
			payload.ObjectURI = report.ObjectURIs[0]
		}
		if err := s.deps.Publisher.PublishCatalogExported(sinkCtx, payload); err != nil {
			report.SinkFailures++
			logger.Warn("failed to publish export event", "error", err)
		}
	}

	logger.Info("run finished",
		"workbook", report.WorkbookPath,
		"sheets", len(report.Sheets),
		"products", result.TotalProducts(),
		"sink_failures", report.SinkFailures,
	)
	return report, nil
}

func (r *Report) artifacts() []string {
	paths := []string{r.WorkbookPath}
	if r.SnapshotPath != "" {
		paths = append(paths, r.SnapshotPath)
	}
	return paths
}
