package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sesgocero/articleflow/internal/models"
)

// FixerStore is the slice of the store the fixer pass reads and writes.
type FixerStore interface {
	ListClusters(ctx context.Context) ([]*models.Cluster, error)
	GetArticle(ctx context.Context, articleID string) (*models.Article, error)
	UpdateClusterStats(ctx context.Context, clusterID string, count int, coverage models.Coverage) error
}

// FixerSummary reports what a fixer pass did.
type FixerSummary struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
}

// Fixer recomputes the member count and political-stance coverage
// histogram of every cluster from its member articles. Clusters whose
// coverage already accounts for every member are skipped, which makes the
// pass cheap to re-run.
type Fixer struct {
	store  FixerStore
	logger *slog.Logger
}

// NewFixer creates the maintenance pass.
func NewFixer(store FixerStore, logger *slog.Logger) *Fixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fixer{store: store, logger: logger}
}

// Run walks all clusters sequentially; the pass is store-only and never
// contacts the oracle.
func (f *Fixer) Run(ctx context.Context) (FixerSummary, error) {
	clusters, err := f.store.ListClusters(ctx)
	if err != nil {
		return FixerSummary{}, fmt.Errorf("failed to list clusters: %w", err)
	}
	f.logger.Info("Starting cluster fixer pass.", "clusterCount", len(clusters))

	var summary FixerSummary
	for _, cluster := range clusters {
		summary.Processed++
		logCtx := f.logger.With("clusterId", cluster.ID, "cluster", cluster.Name)

		if len(cluster.Articles) == 0 {
			logCtx.Info("Skipping cluster with no members.")
			summary.Skipped++
			continue
		}
		if cluster.Coverage.Sum() == len(cluster.Articles) {
			logCtx.Debug("Coverage already matches member count, skipping.")
			summary.Skipped++
			continue
		}

		coverage, err := f.computeCoverage(ctx, logCtx, cluster.Articles)
		if err != nil {
			// Leave this cluster as-is and keep going; a later pass
			// will retry it because its coverage still won't match.
			logCtx.Error("Failed to compute coverage", "error", err)
			continue
		}

		if err := f.store.UpdateClusterStats(ctx, cluster.ID, len(cluster.Articles), coverage); err != nil {
			logCtx.Error("Failed to update cluster stats", "error", err)
			continue
		}
		logCtx.Info("Updated cluster coverage.", "members", len(cluster.Articles), "covered", coverage.Sum())
		summary.Updated++
	}

	f.logger.Info("Cluster fixer pass complete.",
		"processed", summary.Processed, "updated", summary.Updated, "skipped", summary.Skipped)
	return summary, nil
}

func (f *Fixer) computeCoverage(ctx context.Context, logCtx *slog.Logger, articleIDs []string) (models.Coverage, error) {
	var coverage models.Coverage
	for _, id := range articleIDs {
		article, err := f.store.GetArticle(ctx, id)
		if err != nil {
			return models.Coverage{}, err
		}
		if article == nil || article.PoliticalOrientation == "" {
			logCtx.Warn("No political orientation for member article.", "articleId", id)
			continue
		}
		if !coverage.Add(article.PoliticalOrientation) {
			logCtx.Warn("Unknown political stance.", "articleId", id, "stance", article.PoliticalOrientation)
		}
	}
	return coverage, nil
}
