package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-price-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	// EventTypeCatalogExported is published after a workbook was written.
	EventTypeCatalogExported EventType = "CATALOG_EXPORTED"

	DefaultStream = "stream:catalog_exports"
	eventSource   = "catalog-scraper"
)

// RedisClient is the subset of the redis client the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

type ExportedCategory struct {
	Name     string `json:"name"`
	Sheet    string `json:"sheet"`
	Products int    `json:"products"`
}

type CatalogExportedPayload struct {
	EventID      string             `json:"event_id"`
	EventType    string             `json:"event_type"`
	Timestamp    time.Time          `json:"timestamp"`
	RunID        uuid.UUID          `json:"run_id"`
	IndexURL     string             `json:"index_url"`
	WorkbookPath string             `json:"workbook_path"`
	ObjectURI    string             `json:"object_uri,omitempty"`
	Categories   []ExportedCategory `json:"categories"`
	ProductCount int                `json:"product_count"`
	Stats        models.CrawlStats  `json:"stats"`
	Source       string             `json:"source"`
}

// NewCatalogExportedPayload describes an exported result. sheets holds the
// worksheet names in category order.
func NewCatalogExportedPayload(result *models.CrawlResult, workbookPath string, sheets []string) *CatalogExportedPayload {
	categories := make([]ExportedCategory, len(result.Categories))
	for i, c := range result.Categories {
		categories[i] = ExportedCategory{Name: c.Name, Products: len(c.Products)}
		if i < len(sheets) {
			categories[i].Sheet = sheets[i]
		}
	}

	return &CatalogExportedPayload{
		RunID:        result.RunID,
		IndexURL:     result.IndexURL,
		WorkbookPath: workbookPath,
		Categories:   categories,
		ProductCount: result.TotalProducts(),
		Stats:        result.Stats,
	}
}

// Publisher appends export events to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) PublishCatalogExported(ctx context.Context, payload *CatalogExportedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeCatalogExported)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	if payload.Source == "" {
		payload.Source = eventSource
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(data),
			"type":       payload.EventType,
			"event_id":   payload.EventID,
			"run_id":     payload.RunID.String(),
			"timestamp":  strconv.FormatInt(payload.Timestamp.UnixNano(), 10),
			"event_type": payload.EventType,
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"run_id", payload.RunID,
		"stream", p.stream,
		"stream_id", id,
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
