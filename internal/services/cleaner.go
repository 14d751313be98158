// Package services holds the write strategies and maintenance passes that
// sit between the sync engine and the store, one file per concern.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sesgocero/articleflow/internal/models"
	"github.com/sesgocero/articleflow/internal/oracle"
)

// CleanStore is the slice of the store the cleaning strategy writes to.
type CleanStore interface {
	InsertClean(ctx context.Context, doc map[string]interface{}) (string, error)
	MarkProcessed(ctx context.Context, articleID string) (matched, modified bool, err error)
}

// CleanStrategy implements tag-and-duplicate: the oracle returns a cleaned
// copy of the article, which is inserted into the clean collection before
// the original is marked processed. Insert-then-mark ordering means a
// crash between the two writes leaves the marker unset and the article
// eligible for a safe retry; the retry may insert a second cleaned copy,
// an accepted at-least-once semantic.
type CleanStrategy struct {
	store  CleanStore
	logger *slog.Logger
}

// NewCleanStrategy creates the cleaning write strategy.
func NewCleanStrategy(store CleanStore, logger *slog.Logger) *CleanStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanStrategy{store: store, logger: logger}
}

func (s *CleanStrategy) Name() string { return "clean" }

// Done reports whether a cleaned copy already exists for this article.
func (s *CleanStrategy) Done(article *models.Article) bool {
	return article.Processed
}

// BuildRequest asks the oracle for a cleaned JSON copy of the article.
func (s *CleanStrategy) BuildRequest(article *models.Article) (oracle.Request, error) {
	articleJSON, err := json.Marshal(article)
	if err != nil {
		return oracle.Request{}, fmt.Errorf("failed to marshal article %s: %w", article.ID, err)
	}
	return oracle.Request{
		Messages: []oracle.Message{
			{Role: "system", Content: oracle.CleanerSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(oracle.CleanerUserPromptTemplate, articleJSON)},
		},
		ResponseFormat:   oracle.FormatJSON,
		Temperature:      0.5,
		TopP:             0.95,
		PresencePenalty:  0.1,
		FrequencyPenalty: 0.1,
	}, nil
}

// Apply inserts the cleaned document, then marks the original processed.
// The marker is only ever set after a confirmed insert.
func (s *CleanStrategy) Apply(ctx context.Context, article *models.Article, answer string) error {
	cleaned, err := parseCleanedArticle(answer)
	if err != nil {
		return fmt.Errorf("article %s: %w", article.ID, err)
	}

	// The oracle echoes whatever identifier was in the payload; the new
	// document gets its own ID, so keep only a back-reference.
	delete(cleaned, "_id")
	cleaned["sourceArticleId"] = article.ID

	cleanID, err := s.store.InsertClean(ctx, cleaned)
	if err != nil {
		return fmt.Errorf("failed to insert cleaned copy of article %s: %w", article.ID, err)
	}

	matched, modified, err := s.store.MarkProcessed(ctx, article.ID)
	if err != nil {
		return fmt.Errorf("failed to mark article %s processed: %w", article.ID, err)
	}
	switch {
	case !matched:
		// The original vanished or changed concurrently. The cleaned
		// copy is persisted, so the work still counts as applied.
		s.logger.Warn("Article missing when setting processed marker; cleaned copy kept.",
			"articleId", article.ID, "cleanId", cleanID)
	case !modified:
		s.logger.Info("Processed marker was already set; benign no-op.",
			"articleId", article.ID, "cleanId", cleanID)
	}
	return nil
}

// parseCleanedArticle decodes the oracle's answer as a JSON object,
// tolerating markdown fences around the body.
func parseCleanedArticle(answer string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(answer)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var cleaned map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &cleaned); err != nil {
		return nil, fmt.Errorf("cleaned article is not valid JSON: %w", err)
	}
	return cleaned, nil
}
