// Command article-cleaner runs one tag-and-duplicate pass: every article
// without a cleaned copy is sent to the oracle, the cleaned copy is stored
// and the original gets its processed marker.
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
	logger.Info("Loaded articles.", "count", len(articles))

	strategy := services.NewCleanStrategy(runtime.Store, logger)
	summary := runtime.Engine.Run(ctx, articles, strategy).Summary()

	if summary.Failed > 0 {
		logger.Warn("Run finished with failures; re-running will retry them.",
			"failed", summary.Failed, "failedIds", summary.FailedIDs)
	}
}
