package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maltedev/catalog-price-scraper/internal/models"
)

// SnapshotPath returns the JSON snapshot path that sits next to a workbook.
func SnapshotPath(workbookPath string) string {
	return strings.TrimSuffix(workbookPath, filepath.Ext(workbookPath)) + ".json"
}

// WriteSnapshot stores result as indented JSON. The file is written to a
// temporary path first and renamed into place.
func WriteSnapshot(result *models.CrawlResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (*models.CrawlResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var result models.CrawlResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return &result, nil
}
