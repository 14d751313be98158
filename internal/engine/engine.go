// Package engine drives one synchronization run: it fans a list of
// articles out into independent oracle calls under a concurrency ceiling,
// hands each answer to the run's write strategy, and tallies terminal
// statuses in a ledger. One article's failure never cancels or delays the
// others; a later run picks failed articles up again because the filter
// re-checks persisted markers.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sesgocero/articleflow/internal/models"
	"github.com/sesgocero/articleflow/internal/oracle"
)

// Strategy is a write policy: it decides which articles still need work,
// shapes the oracle request, and commits the oracle's answer to storage.
type Strategy interface {
	Name() string
	// Done reports whether the article has already been handled by a
	// previous run, judged from its persisted markers.
	Done(article *models.Article) bool
	// BuildRequest shapes the oracle payload for one article.
	BuildRequest(article *models.Article) (oracle.Request, error)
	// Apply commits the oracle's answer for this article to the store.
	Apply(ctx context.Context, article *models.Article, answer string) error
}

// Engine coordinates oracle calls for a batch of articles.
type Engine struct {
	gateway oracle.Gateway
	limiter *Limiter
	logger  *slog.Logger
}

// New creates an engine with the given concurrency ceiling.
func New(gateway oracle.Gateway, concurrency int, logger *slog.Logger) (*Engine, error) {
	limiter, err := NewLimiter(concurrency)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		gateway: gateway,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Run processes every article under the strategy and returns the ledger.
// Articles already done are counted without contacting the oracle. The run
// always completes: per-article failures are recorded, never propagated.
func (e *Engine) Run(ctx context.Context, articles []*models.Article, strategy Strategy) *Ledger {
	runID := uuid.NewString()
	logCtx := e.logger.With("runId", runID, "strategy", strategy.Name())
	started := time.Now()
	logCtx.Info("Starting sync run.", "articleCount", len(articles))

	ledger := NewLedger()
	var group errgroup.Group

	for _, article := range articles {
		if strategy.Done(article) {
			logCtx.Debug("Article already processed, skipping.", "articleId", article.ID)
			ledger.Record(article.ID, StatusAlreadyDone)
			continue
		}

		article := article
		group.Go(func() error {
			// Outcomes go to the ledger; returning an error here
			// would let one article cancel its siblings.
			ledger.Record(article.ID, e.processOne(ctx, logCtx, article, strategy))
			return nil
		})
	}

	_ = group.Wait()

	summary := ledger.Summary()
	logCtx.Info("Sync run complete.",
		"applied", summary.Applied,
		"alreadyDone", summary.AlreadyDone,
		"failed", summary.Failed,
		"total", summary.Total,
		"elapsed", time.Since(started).String(),
	)
	return ledger
}

// processOne runs the full pipeline for a single article: build payload,
// call the oracle inside a limiter slot, then apply the answer.
func (e *Engine) processOne(ctx context.Context, logCtx *slog.Logger, article *models.Article, strategy Strategy) Status {
	req, err := strategy.BuildRequest(article)
	if err != nil {
		logCtx.Error("Failed to build oracle payload", "articleId", article.ID, "error", err)
		return StatusFailed
	}

	answer, err := e.classify(ctx, req)
	if err != nil {
		logCtx.Error("Oracle call failed",
			"articleId", article.ID,
			"errorKind", oracle.KindOf(err).String(),
			"error", err,
		)
		return StatusFailed
	}

	if err := strategy.Apply(ctx, article, answer); err != nil {
		logCtx.Error("Failed to apply oracle answer", "articleId", article.ID, "error", err)
		return StatusFailed
	}

	logCtx.Info("Article synced.", "articleId", article.ID)
	return StatusApplied
}

// classify scopes the limiter slot strictly around the oracle call, so
// slow store writes never hold a slot.
func (e *Engine) classify(ctx context.Context, req oracle.Request) (string, error) {
	if err := e.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	defer e.limiter.Release()
	return e.gateway.Classify(ctx, req)
}
