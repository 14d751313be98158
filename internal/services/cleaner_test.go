package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sesgocero/articleflow/internal/models"
)

// fakeCleanStore records writes in order so ordering between the insert
// and the marker update can be asserted.
type fakeCleanStore struct {
	mu        sync.Mutex
	inserted  []map[string]interface{}
	processed map[string]bool
	missing   map[string]bool
	ops       []string

	insertErr error
	markErr   error
}

func newFakeCleanStore() *fakeCleanStore {
	return &fakeCleanStore{
		processed: make(map[string]bool),
		missing:   make(map[string]bool),
	}
}

func (s *fakeCleanStore) InsertClean(ctx context.Context, doc map[string]interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return "", s.insertErr
	}
	s.inserted = append(s.inserted, doc)
	s.ops = append(s.ops, "insert")
	return fmt.Sprintf("clean-%d", len(s.inserted)), nil
}

func (s *fakeCleanStore) MarkProcessed(ctx context.Context, articleID string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return false, false, s.markErr
	}
	s.ops = append(s.ops, "mark:"+articleID)
	if s.missing[articleID] {
		return false, false, nil
	}
	if s.processed[articleID] {
		return true, false, nil
	}
	s.processed[articleID] = true
	return true, true, nil
}

func TestCleanStrategyDone(t *testing.T) {
	strategy := NewCleanStrategy(newFakeCleanStore(), nil)
	assert.False(t, strategy.Done(&models.Article{ID: "a1"}))
	assert.True(t, strategy.Done(&models.Article{ID: "a1", Processed: true}))
}

func TestCleanStrategyBuildRequest(t *testing.T) {
	strategy := NewCleanStrategy(newFakeCleanStore(), nil)
	req, err := strategy.BuildRequest(&models.Article{ID: "a1", Title: "Titular"})
	require.NoError(t, err)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "Titular")
	assert.Equal(t, "json_object", req.ResponseFormat)
}

func TestCleanStrategyApplyInsertsThenMarks(t *testing.T) {
	store := newFakeCleanStore()
	strategy := NewCleanStrategy(store, nil)

	err := strategy.Apply(context.Background(), &models.Article{ID: "a1"},
		`{"title":"Limpio","content":"texto"}`)
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, "Limpio", store.inserted[0]["title"])
	assert.Equal(t, "a1", store.inserted[0]["sourceArticleId"])
	assert.True(t, store.processed["a1"])
	assert.Equal(t, []string{"insert", "mark:a1"}, store.ops, "insert must precede the marker update")
}

func TestCleanStrategyApplyDropsEchoedID(t *testing.T) {
	store := newFakeCleanStore()
	strategy := NewCleanStrategy(store, nil)

	err := strategy.Apply(context.Background(), &models.Article{ID: "a1"},
		`{"_id":"a1","title":"Limpio"}`)
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	assert.NotContains(t, store.inserted[0], "_id")
}

func TestCleanStrategyApplyToleratesFences(t *testing.T) {
	store := newFakeCleanStore()
	strategy := NewCleanStrategy(store, nil)

	err := strategy.Apply(context.Background(), &models.Article{ID: "a1"},
		"```json\n{\"title\":\"Limpio\"}\n```")
	require.NoError(t, err)
	require.Len(t, store.inserted, 1)
}

func TestCleanStrategyInsertFailureLeavesMarkerUnset(t *testing.T) {
	store := newFakeCleanStore()
	store.insertErr = fmt.Errorf("collection unavailable")
	strategy := NewCleanStrategy(store, nil)

	err := strategy.Apply(context.Background(), &models.Article{ID: "a1"}, `{"title":"x"}`)
	require.Error(t, err)

	assert.Empty(t, store.inserted)
	assert.False(t, store.processed["a1"], "marker must never be set before a confirmed insert")
	assert.NotContains(t, store.ops, "mark:a1")
}

func TestCleanStrategyBadJSONWritesNothing(t *testing.T) {
	store := newFakeCleanStore()
	strategy := NewCleanStrategy(store, nil)

	err := strategy.Apply(context.Background(), &models.Article{ID: "a1"}, "not json at all")
	require.Error(t, err)
	assert.Empty(t, store.ops)
}

func TestCleanStrategyVanishedArticleStillApplied(t *testing.T) {
	store := newFakeCleanStore()
	store.missing["a1"] = true
	strategy := NewCleanStrategy(store, nil)

	err := strategy.Apply(context.Background(), &models.Article{ID: "a1"}, `{"title":"x"}`)
	require.NoError(t, err, "a persisted duplicate counts as applied even if the original vanished")
	require.Len(t, store.inserted, 1)
}

func TestCleanStrategyAlreadyMarkedIsBenignNoOp(t *testing.T) {
	store := newFakeCleanStore()
	store.processed["a1"] = true
	strategy := NewCleanStrategy(store, nil)

	err := strategy.Apply(context.Background(), &models.Article{ID: "a1"}, `{"title":"x"}`)
	require.NoError(t, err)
}

func TestCleanStrategyMarkErrorFails(t *testing.T) {
	store := newFakeCleanStore()
	store.markErr = fmt.Errorf("update failed")
	strategy := NewCleanStrategy(store, nil)

	err := strategy.Apply(context.Background(), &models.Article{ID: "a1"}, `{"title":"x"}`)
	require.Error(t, err)
	require.Len(t, store.inserted, 1, "the duplicate insert had already happened")
}
