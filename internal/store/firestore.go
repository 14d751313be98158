// Package store is the Firestore-backed persistence layer for articles and
// clusters. Every operation touches a single document and relies on
// Firestore's per-document atomicity; the one multi-document sequence
// (cluster upsert) runs inside a transaction.
package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sesgocero/articleflow/internal/models"
)

// Default collection names, matching the scraper's layout.
const (
	DefaultArticlesCollection = "articles"
	DefaultCleanCollection    = "clean_articles"
	DefaultClustersCollection = "clusters"
)

// Store wraps a Firestore client with the collections the engine writes to.
type Store struct {
	client      *firestore.Client
	articlesCol string
	cleanCol    string
	clustersCol string
}

// New creates a Store over the given client. Empty collection names fall
// back to the defaults.
func New(client *firestore.Client, articlesCol, cleanCol, clustersCol string) *Store {
	if articlesCol == "" {
		articlesCol = DefaultArticlesCollection
	}
	if cleanCol == "" {
		cleanCol = DefaultCleanCollection
	}
	if clustersCol == "" {
		clustersCol = DefaultClustersCollection
	}
	return &Store{
		client:      client,
		articlesCol: articlesCol,
		cleanCol:    cleanCol,
		clustersCol: clustersCol,
	}
}

// ListArticles returns every article, newest first.
func (s *Store) ListArticles(ctx context.Context) ([]*models.Article, error) {
	iter := s.client.Collection(s.articlesCol).OrderBy("date", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var articles []*models.Article
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate articles: %w", err)
		}
		var article models.Article
		if err := doc.DataTo(&article); err != nil {
			return nil, fmt.Errorf("failed to decode article %s: %w", doc.Ref.ID, err)
		}
		article.ID = doc.Ref.ID
		articles = append(articles, &article)
	}
	return articles, nil
}

// InsertClean stores a cleaned article document and returns its new ID.
// The document shape comes from the oracle, so it is kept loosely typed.
func (s *Store) InsertClean(ctx context.Context, doc map[string]interface{}) (string, error) {
	ref, _, err := s.client.Collection(s.cleanCol).Add(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert clean article: %w", err)
	}
	return ref.ID, nil
}

// MarkProcessed sets the processed flag on an article. It reports whether
// the article still existed (matched) and whether the flag actually
// changed (modified); an already-set flag is matched but not modified.
func (s *Store) MarkProcessed(ctx context.Context, articleID string) (matched, modified bool, err error) {
	ref := s.client.Collection(s.articlesCol).Doc(articleID)
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to read article %s: %w", articleID, err)
	}

	var article models.Article
	if err := snap.DataTo(&article); err != nil {
		return true, false, fmt.Errorf("failed to decode article %s: %w", articleID, err)
	}
	if article.Processed {
		return true, false, nil
	}

	if _, err := ref.Update(ctx, []firestore.Update{{Path: "processed", Value: true}}); err != nil {
		if status.Code(err) == codes.NotFound {
			// Deleted between the read and the update.
			return false, false, nil
		}
		return true, false, fmt.Errorf("failed to mark article %s processed: %w", articleID, err)
	}
	return true, true, nil
}

// SetArticleCluster points an article's cluster reference at a cluster.
func (s *Store) SetArticleCluster(ctx context.Context, articleID, clusterID string) error {
	ref := s.client.Collection(s.articlesCol).Doc(articleID)
	if _, err := ref.Update(ctx, []firestore.Update{{Path: "clusterId", Value: clusterID}}); err != nil {
		return fmt.Errorf("failed to set cluster on article %s: %w", articleID, err)
	}
	return nil
}

// ListClusterNames returns the names of all existing clusters.
func (s *Store) ListClusterNames(ctx context.Context) ([]string, error) {
	iter := s.client.Collection(s.clustersCol).Documents(ctx)
	defer iter.Stop()

	var names []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate clusters: %w", err)
		}
		if name, err := doc.DataAt("name"); err == nil {
			if s, ok := name.(string); ok && s != "" {
				names = append(names, s)
			}
		}
	}
	return names, nil
}

// ListClusters returns every cluster document.
func (s *Store) ListClusters(ctx context.Context) ([]*models.Cluster, error) {
	iter := s.client.Collection(s.clustersCol).Documents(ctx)
	defer iter.Stop()

	var clusters []*models.Cluster
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate clusters: %w", err)
		}
		var cluster models.Cluster
		if err := doc.DataTo(&cluster); err != nil {
			return nil, fmt.Errorf("failed to decode cluster %s: %w", doc.Ref.ID, err)
		}
		cluster.ID = doc.Ref.ID
		clusters = append(clusters, &cluster)
	}
	return clusters, nil
}

// FindClusterByName finds a cluster by its exact label. Returns nil when
// no cluster carries that name.
func (s *Store) FindClusterByName(ctx context.Context, name string) (*models.Cluster, error) {
	docs, err := s.client.Collection(s.clustersCol).Where("name", "==", name).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster %q: %w", name, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	var cluster models.Cluster
	if err := docs[0].DataTo(&cluster); err != nil {
		return nil, fmt.Errorf("failed to decode cluster %q: %w", name, err)
	}
	cluster.ID = docs[0].Ref.ID
	return &cluster, nil
}

// AppendClusterMember adds an article to an existing cluster. ArrayUnion
// keeps the member list free of duplicate identifiers.
func (s *Store) AppendClusterMember(ctx context.Context, clusterID, articleID string) error {
	ref := s.client.Collection(s.clustersCol).Doc(clusterID)
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "articles", Value: firestore.ArrayUnion(articleID)},
		{Path: "articlesCount", Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to append article %s to cluster %s: %w", articleID, clusterID, err)
	}
	return nil
}

// CreateCluster creates a new single-member cluster and returns its ID.
func (s *Store) CreateCluster(ctx context.Context, name, articleID string) (string, error) {
	now := time.Now()
	ref, _, err := s.client.Collection(s.clustersCol).Add(ctx, models.Cluster{
		Name:          name,
		Articles:      []string{articleID},
		ArticlesCount: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create cluster %q: %w", name, err)
	}
	return ref.ID, nil
}

// UpsertCluster atomically appends the article to the cluster named by
// label, creating the cluster if it does not exist. Running lookup and
// write inside one transaction closes the duplicate-cluster window that a
// plain find-then-create sequence leaves open under concurrent runs.
func (s *Store) UpsertCluster(ctx context.Context, name, articleID string) (clusterID string, created bool, err error) {
	col := s.client.Collection(s.clustersCol)
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(col.Where("name", "==", name).Limit(1)).GetAll()
		if err != nil {
			return fmt.Errorf("failed to query cluster %q: %w", name, err)
		}
		now := time.Now()
		if len(docs) > 0 {
			clusterID = docs[0].Ref.ID
			created = false
			return tx.Update(docs[0].Ref, []firestore.Update{
				{Path: "articles", Value: firestore.ArrayUnion(articleID)},
				{Path: "articlesCount", Value: firestore.Increment(1)},
				{Path: "updatedAt", Value: now},
			})
		}
		ref := col.NewDoc()
		clusterID = ref.ID
		created = true
		return tx.Create(ref, models.Cluster{
			Name:          name,
			Articles:      []string{articleID},
			ArticlesCount: 1,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to upsert cluster %q: %w", name, err)
	}
	return clusterID, created, nil
}

// UpdateClusterStats overwrites a cluster's member count and coverage
// histogram. Used by the fixer pass.
func (s *Store) UpdateClusterStats(ctx context.Context, clusterID string, count int, coverage models.Coverage) error {
	ref := s.client.Collection(s.clustersCol).Doc(clusterID)
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "articlesCount", Value: count},
		{Path: "coverage", Value: coverage},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to update stats for cluster %s: %w", clusterID, err)
	}
	return nil
}

// GetArticle fetches one article by ID. Returns nil when it is gone.
func (s *Store) GetArticle(ctx context.Context, articleID string) (*models.Article, error) {
	snap, err := s.client.Collection(s.articlesCol).Doc(articleID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read article %s: %w", articleID, err)
	}
	var article models.Article
	if err := snap.DataTo(&article); err != nil {
		return nil, fmt.Errorf("failed to decode article %s: %w", articleID, err)
	}
	article.ID = snap.Ref.ID
	return &article, nil
}
