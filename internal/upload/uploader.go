package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// objectStore opens writers for objects of one bucket.
type objectStore interface {
	NewWriter(ctx context.Context, object, contentType string) io.WriteCloser
	URI(object string) string
	Close() error
}

type gcsBucket struct {
	client *storage.Client
	bucket string
}

func (b *gcsBucket) NewWriter(ctx context.Context, object, contentType string) io.WriteCloser {
	w := b.client.Bucket(b.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (b *gcsBucket) URI(object string) string {
	return fmt.Sprintf("gs://%s/%s", b.bucket, object)
}

func (b *gcsBucket) Close() error {
	return b.client.Close()
}

// Uploader copies exported artifacts to a Google Cloud Storage bucket.
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS or
// the metadata server).
type Uploader struct {
	store  objectStore
	prefix string
	logger *slog.Logger
}

func NewUploader(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*Uploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return newUploader(&gcsBucket{client: client, bucket: bucket}, prefix, logger), nil
}

func newUploader(store objectStore, prefix string, logger *slog.Logger) *Uploader {
	return &Uploader{
		store:  store,
		prefix: prefix,
		logger: logger.With("component", "uploader"),
	}
}

// ObjectName places a file under prefix/runID/.
func ObjectName(prefix, runID, localPath string) string {
	return path.Join(prefix, runID, filepath.Base(localPath))
}

// Upload stores the file at localPath under prefix/runID and returns the
// object URI.
func (u *Uploader) Upload(ctx context.Context, runID, localPath string) (string, error) {
	start := time.Now()

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	contentType, err := detectContentType(localPath)
	if err != nil {
		u.logger.Warn("failed to detect content type", "path", localPath, "error", err)
		contentType = defaultContentType
	}

	object := ObjectName(u.prefix, runID, localPath)
	writer := u.store.NewWriter(ctx, object, contentType)

	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload of %s: %w", object, err)
	}

	uri := u.store.URI(object)
	u.logger.Info("artifact uploaded",
		"path", localPath,
		"uri", uri,
		"content_type", contentType,
		"duration", time.Since(start),
	)
	return uri, nil
}

func (u *Uploader) Close() error {
	return u.store.Close()
}

func detectContentType(filePath string) (string, error) {
	mime, err := mimetype.DetectFile(filePath)
	if err != nil {
		return "", err
	}
	return mime.String(), nil
}
