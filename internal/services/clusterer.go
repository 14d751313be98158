package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sesgocero/articleflow/internal/models"
	"github.com/sesgocero/articleflow/internal/oracle"
)

// ClusterStore is the slice of the store the clustering strategy uses.
type ClusterStore interface {
	FindClusterByName(ctx context.Context, name string) (*models.Cluster, error)
	AppendClusterMember(ctx context.Context, clusterID, articleID string) error
	CreateCluster(ctx context.Context, name, articleID string) (string, error)
	UpsertCluster(ctx context.Context, name, articleID string) (clusterID string, created bool, err error)
	SetArticleCluster(ctx context.Context, articleID, clusterID string) error
}

// ClusterStrategy implements classify-and-bucket: the oracle answers with
// a cluster label, the article joins that cluster (created on first use)
// and gets its cluster reference set.
//
// With AtomicUpsert enabled (the default) label lookup and creation run in
// one store transaction, so two concurrent runs naming the same new label
// converge on a single cluster. The find-then-create path is kept because
// it is what the pipeline originally shipped with; it can create duplicate
// clusters under that race and exists only behind the flag.
type ClusterStrategy struct {
	store        ClusterStore
	logger       *slog.Logger
	AtomicUpsert bool

	mu         sync.Mutex
	knownNames []string
}

// NewClusterStrategy creates the clustering write strategy. knownNames
// seeds the label list offered to the oracle, typically the names of all
// existing clusters at run start.
func NewClusterStrategy(store ClusterStore, knownNames []string, logger *slog.Logger) *ClusterStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClusterStrategy{
		store:        store,
		logger:       logger,
		AtomicUpsert: true,
		knownNames:   append([]string(nil), knownNames...),
	}
}

func (s *ClusterStrategy) Name() string { return "cluster" }

// Done reports whether the article already belongs to a cluster.
func (s *ClusterStrategy) Done(article *models.Article) bool {
	return article.ClusterID != ""
}

// BuildRequest asks the oracle for the article's cluster label, offering
// the labels known so far.
func (s *ClusterStrategy) BuildRequest(article *models.Article) (oracle.Request, error) {
	articleJSON, err := json.Marshal(article)
	if err != nil {
		return oracle.Request{}, fmt.Errorf("failed to marshal article %s: %w", article.ID, err)
	}
	namesJSON, err := json.Marshal(s.snapshotNames())
	if err != nil {
		return oracle.Request{}, fmt.Errorf("failed to marshal cluster names: %w", err)
	}
	return oracle.Request{
		Messages: []oracle.Message{
			{Role: "system", Content: oracle.ClustererSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(oracle.ClustererUserPromptTemplate, articleJSON, namesJSON)},
		},
		ResponseFormat:   oracle.FormatText,
		Temperature:      0.3,
		TopP:             0.9,
		FrequencyPenalty: 0.2,
	}, nil
}

// Apply buckets the article under the label the oracle returned, then
// points the article's cluster reference at the bucket.
func (s *ClusterStrategy) Apply(ctx context.Context, article *models.Article, answer string) error {
	label := strings.Trim(strings.TrimSpace(answer), `"`)
	if label == "" {
		return fmt.Errorf("article %s: oracle returned an empty cluster label", article.ID)
	}

	clusterID, created, err := s.bucket(ctx, label, article.ID)
	if err != nil {
		return err
	}

	if err := s.store.SetArticleCluster(ctx, article.ID, clusterID); err != nil {
		// The cluster write is already persisted; the next run will
		// re-classify this article and ArrayUnion keeps the member
		// list duplicate-free.
		return fmt.Errorf("article %s joined cluster %q but reference not set: %w", article.ID, label, err)
	}

	if created {
		s.rememberName(label)
		s.logger.Info("Created new cluster.", "articleId", article.ID, "cluster", label)
	} else {
		s.logger.Info("Added article to existing cluster.", "articleId", article.ID, "cluster", label)
	}
	return nil
}

func (s *ClusterStrategy) bucket(ctx context.Context, label, articleID string) (clusterID string, created bool, err error) {
	if s.AtomicUpsert {
		clusterID, created, err = s.store.UpsertCluster(ctx, label, articleID)
		if err != nil {
			return "", false, fmt.Errorf("article %s: %w", articleID, err)
		}
		return clusterID, created, nil
	}

	// Baseline find-then-create. Two concurrent calls that both miss the
	// lookup will each create a cluster with this label.
	cluster, err := s.store.FindClusterByName(ctx, label)
	if err != nil {
		return "", false, fmt.Errorf("article %s: %w", articleID, err)
	}
	if cluster != nil {
		if err := s.store.AppendClusterMember(ctx, cluster.ID, articleID); err != nil {
			return "", false, fmt.Errorf("article %s: %w", articleID, err)
		}
		return cluster.ID, false, nil
	}
	clusterID, err = s.store.CreateCluster(ctx, label, articleID)
	if err != nil {
		return "", false, fmt.Errorf("article %s: %w", articleID, err)
	}
	return clusterID, true, nil
}

func (s *ClusterStrategy) snapshotNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.knownNames...)
}

func (s *ClusterStrategy) rememberName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, known := range s.knownNames {
		if known == name {
			return
		}
	}
	s.knownNames = append(s.knownNames, name)
}
