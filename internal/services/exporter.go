package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/sesgocero/articleflow/internal/gcp"
	"github.com/sesgocero/articleflow/internal/models"
)

// ExportStore is the slice of the store the exporter reads.
type ExportStore interface {
	ListArticles(ctx context.Context) ([]*models.Article, error)
}

// Exporter dumps the articles collection as a JSON array, newest first,
// either to a writer or to a GCS object.
type Exporter struct {
	store         ExportStore
	storageClient *storage.Client
	bucket        string
	logger        *slog.Logger
}

// NewExporter creates an exporter. storageClient and bucket may be zero
// when only writer-based export is used.
func NewExporter(store ExportStore, storageClient *storage.Client, bucket string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		store:         store,
		storageClient: storageClient,
		bucket:        bucket,
		logger:        logger,
	}
}

// Export writes the full article dump to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer) error {
	data, count, err := e.dump(ctx)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	e.logger.Info("Export written.", "articleCount", count)
	return nil
}

// ExportToBucket writes the dump to a GCS object. The write is
// conditioned on the object not existing, so re-running an export with
// the same object name is a no-op.
func (e *Exporter) ExportToBucket(ctx context.Context, objectName string) error {
	if e.storageClient == nil || e.bucket == "" {
		return fmt.Errorf("exporter has no storage bucket configured")
	}
	data, count, err := e.dump(ctx)
	if err != nil {
		return err
	}
	bucketHandle := e.storageClient.Bucket(e.bucket)
	if err := gcp.SaveObjectAtomically(ctx, bucketHandle, objectName, string(data)); err != nil {
		return fmt.Errorf("failed to export to gs://%s/%s: %w", e.bucket, objectName, err)
	}
	e.logger.Info("Export uploaded.", "bucket", e.bucket, "object", objectName, "articleCount", count)
	return nil
}

func (e *Exporter) dump(ctx context.Context) ([]byte, int, error) {
	articles, err := e.store.ListArticles(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load articles: %w", err)
	}
	data, err := json.MarshalIndent(articles, "", "    ")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal articles: %w", err)
	}
	return data, len(articles), nil
}
