// Command article-clusterer runs one classify-and-bucket pass: every
// article without a cluster reference is classified by the oracle and
// joins (or creates) the cluster named by the returned label.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sesgocero/articleflow/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()
	runtime, err := services.NewRuntime(ctx, logger)
	if err != nil {
		logger.Error("Critical: initialization failed", "error", err)
		os.Exit(1)
	}
	defer runtime.Close()

	articles, err := runtime.Store.ListArticles(ctx)
	if err != nil {
		logger.Error("Critical: failed to load articles", "error", err)
		os.Exit(1)
	}
	names, err := runtime.Store.ListClusterNames(ctx)
	if err != nil {
		logger.Error("Critical: failed to load cluster names", "error", err)
		os.Exit(1)
	}
	logger.Info("Loaded articles and clusters.", "articles", len(articles), "clusters", len(names))

	strategy := services.NewClusterStrategy(runtime.Store, names, logger)
	summary := runtime.Engine.Run(ctx, articles, strategy).Summary()

	if summary.Failed > 0 {
		logger.Warn("Run finished with failures; re-running will retry them.",
			"failed", summary.Failed, "failedIds", summary.FailedIDs)
	}
}
