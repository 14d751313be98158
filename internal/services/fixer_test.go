package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sesgocero/articleflow/internal/models"
)

type fakeFixerStore struct {
	clusters []*models.Cluster
	articles map[string]*models.Article

	listErr error
	getErr  map[string]error

	updates map[string]models.Coverage
	counts  map[string]int
}

func newFakeFixerStore() *fakeFixerStore {
	return &fakeFixerStore{
		articles: make(map[string]*models.Article),
		getErr:   make(map[string]error),
		updates:  make(map[string]models.Coverage),
		counts:   make(map[string]int),
	}
}

func (s *fakeFixerStore) ListClusters(ctx context.Context) ([]*models.Cluster, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.clusters, nil
}

func (s *fakeFixerStore) GetArticle(ctx context.Context, articleID string) (*models.Article, error) {
	if err := s.getErr[articleID]; err != nil {
		return nil, err
	}
	return s.articles[articleID], nil
}

func (s *fakeFixerStore) UpdateClusterStats(ctx context.Context, clusterID string, count int, coverage models.Coverage) error {
	s.counts[clusterID] = count
	s.updates[clusterID] = coverage
	return nil
}

func (s *fakeFixerStore) addArticle(id, stance string) {
	s.articles[id] = &models.Article{ID: id, PoliticalOrientation: stance}
}

func TestFixerRecomputesCoverage(t *testing.T) {
	store := newFakeFixerStore()
	store.addArticle("a1", "left")
	store.addArticle("a2", "center")
	store.addArticle("a3", "center")
	store.clusters = []*models.Cluster{
		{ID: "c1", Name: "Elecciones", Articles: []string{"a1", "a2", "a3"}},
	}

	summary, err := NewFixer(store, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, FixerSummary{Processed: 1, Updated: 1}, summary)
	assert.Equal(t, 3, store.counts["c1"])
	assert.Equal(t, models.Coverage{Left: 1, Center: 2}, store.updates["c1"])
}

func TestFixerSkipsWhenCoverageMatches(t *testing.T) {
	store := newFakeFixerStore()
	store.addArticle("a1", "left")
	store.addArticle("a2", "right")
	store.clusters = []*models.Cluster{
		{ID: "c1", Name: "Economía", Articles: []string{"a1", "a2"},
			Coverage: models.Coverage{Left: 1, Right: 1}},
	}

	summary, err := NewFixer(store, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, FixerSummary{Processed: 1, Skipped: 1}, summary)
	assert.Empty(t, store.updates, "a matching histogram is not rewritten")
}

func TestFixerSkipsEmptyClusters(t *testing.T) {
	store := newFakeFixerStore()
	store.clusters = []*models.Cluster{{ID: "c1", Name: "Vacío"}}

	summary, err := NewFixer(store, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, FixerSummary{Processed: 1, Skipped: 1}, summary)
	assert.Empty(t, store.updates)
}

func TestFixerToleratesUnknownAndMissingStances(t *testing.T) {
	store := newFakeFixerStore()
	store.addArticle("a1", "left")
	store.addArticle("a2", "extreme") // not a recognized stance
	store.addArticle("a3", "")        // never classified
	store.clusters = []*models.Cluster{
		{ID: "c1", Name: "Sequía", Articles: []string{"a1", "a2", "a3", "a4"}},
	}

	summary, err := NewFixer(store, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, FixerSummary{Processed: 1, Updated: 1}, summary)
	// The count reflects membership even when some members are uncovered.
	assert.Equal(t, 4, store.counts["c1"])
	assert.Equal(t, models.Coverage{Left: 1}, store.updates["c1"])
}

func TestFixerContinuesPastFailingCluster(t *testing.T) {
	store := newFakeFixerStore()
	store.addArticle("a1", "left")
	store.addArticle("b1", "right")
	store.getErr["a1"] = errors.New("deadline exceeded")
	store.clusters = []*models.Cluster{
		{ID: "c1", Name: "Elecciones", Articles: []string{"a1"}},
		{ID: "c2", Name: "Economía", Articles: []string{"b1"}},
	}

	summary, err := NewFixer(store, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, FixerSummary{Processed: 2, Updated: 1}, summary)
	assert.NotContains(t, store.updates, "c1")
	assert.Equal(t, models.Coverage{Right: 1}, store.updates["c2"])
}

func TestFixerPropagatesListError(t *testing.T) {
	store := newFakeFixerStore()
	store.listErr = errors.New("unavailable")

	_, err := NewFixer(store, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list clusters")
}
