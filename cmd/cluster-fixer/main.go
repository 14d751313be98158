// Command cluster-fixer recomputes member counts and political-stance
// coverage for every cluster. Store-only; the oracle is never contacted.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sesgocero/articleflow/internal/gcp"
	"github.com/sesgocero/articleflow/internal/services"
	"github.com/sesgocero/articleflow/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
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

	if _, err := services.NewFixer(st, logger).Run(ctx); err != nil {
		logger.Error("Critical: fixer pass failed", "error", err)
		os.Exit(1)
	}
}
