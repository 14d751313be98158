// Command article-exporter dumps the articles collection as JSON, newest
// first. With EXPORT_BUCKET set the dump goes to GCS; otherwise stdout.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"

	"github.com/sesgocero/articleflow/internal/gcp"
	"github.com/sesgocero/articleflow/internal/services"
	"github.com/sesgocero/articleflow/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		logger.Error("Critical: PROJECT_ID environment variable must be set")
		os.Exit(1)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		logger.Error("Critical: failed to create firestore client", "error", err)
		os.Exit(1)
	}
	defer firestoreClient.Close()

	st := store.New(
		firestoreClient,
		gcp.GetEnv("ARTICLES_COLLECTION", store.DefaultArticlesCollection),
		gcp.GetEnv("CLEAN_COLLECTION", store.DefaultCleanCollection),
		gcp.GetEnv("CLUSTERS_COLLECTION", store.DefaultClustersCollection),
	)

	bucket := gcp.GetEnv("EXPORT_BUCKET", "")
	if bucket == "" {
		exporter := services.NewExporter(st, nil, "", logger)
		if err := exporter.Export(ctx, os.Stdout); err != nil {
			logger.Error("Critical: export failed", "error", err)
			os.Exit(1)
		}
		return
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		logger.Error("Critical: failed to create storage client", "error", err)
		os.Exit(1)
	}
	defer storageClient.Close()

	objectName := gcp.GetEnv("EXPORT_OBJECT", "")
	if objectName == "" {
		objectName = fmt.Sprintf("exports/articles-%s.json", time.Now().Format("2006-01-02"))
	}

	exporter := services.NewExporter(st, storageClient, bucket, logger)
	if err := exporter.ExportToBucket(ctx, objectName); err != nil {
		logger.Error("Critical: export failed", "error", err)
		os.Exit(1)
	}
}
