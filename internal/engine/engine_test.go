package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sesgocero/articleflow/internal/models"
	"github.com/sesgocero/articleflow/internal/oracle"
)

// stubGateway answers with the article ID it was asked about and tracks
// how many calls are in flight at once. Failures are injected per ID.
type stubGateway struct {
	mu          sync.Mutex
	delay       time.Duration
	failFor     map[string]error
	calls       int
	inFlight    int
	maxInFlight int
}

func (g *stubGateway) Classify(ctx context.Context, req oracle.Request) (string, error) {
	articleID := req.Messages[len(req.Messages)-1].Content

	g.mu.Lock()
	g.calls++
	g.inFlight++
	if g.inFlight > g.maxInFlight {
		g.maxInFlight = g.inFlight
	}
	g.mu.Unlock()

	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	g.mu.Lock()
	g.inFlight--
	err := g.failFor[articleID]
	g.mu.Unlock()

	if err != nil {
		return "", err
	}
	return "answer-for-" + articleID, nil
}

// fakeStrategy treats its done map as the persisted marker: Apply sets it,
// so a second run over the same articles skips them.
type fakeStrategy struct {
	mu       sync.Mutex
	done     map[string]bool
	applied  []string
	applyErr map[string]error
}

func newFakeStrategy() *fakeStrategy {
	return &fakeStrategy{done: make(map[string]bool)}
}

func (s *fakeStrategy) Name() string { return "fake" }

func (s *fakeStrategy) Done(article *models.Article) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done[article.ID]
}

func (s *fakeStrategy) BuildRequest(article *models.Article) (oracle.Request, error) {
	return oracle.Request{
		Messages: []oracle.Message{{Role: "user", Content: article.ID}},
	}, nil
}

func (s *fakeStrategy) Apply(ctx context.Context, article *models.Article, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.applyErr[article.ID]; err != nil {
		return err
	}
	s.applied = append(s.applied, article.ID)
	s.done[article.ID] = true
	return nil
}

func makeArticles(n int) []*models.Article {
	articles := make([]*models.Article, 0, n)
	for i := 1; i <= n; i++ {
		articles = append(articles, &models.Article{ID: fmt.Sprintf("a%d", i)})
	}
	return articles
}

func TestNewRejectsZeroConcurrency(t *testing.T) {
	_, err := New(&stubGateway{}, 0, nil)
	require.Error(t, err)
	_, err = New(&stubGateway{}, -3, nil)
	require.Error(t, err)
}

func TestRunAppliesAllArticles(t *testing.T) {
	gateway := &stubGateway{}
	strategy := newFakeStrategy()
	eng, err := New(gateway, 4, nil)
	require.NoError(t, err)

	summary := eng.Run(context.Background(), makeArticles(6), strategy).Summary()

	assert.Equal(t, 6, summary.Applied)
	assert.Equal(t, 0, summary.AlreadyDone)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 6, summary.Total)
	assert.Len(t, strategy.applied, 6)
}

func TestRunConcurrencyBound(t *testing.T) {
	const limit = 3
	gateway := &stubGateway{delay: 20 * time.Millisecond}
	eng, err := New(gateway, limit, nil)
	require.NoError(t, err)

	eng.Run(context.Background(), makeArticles(20), newFakeStrategy())

	assert.LessOrEqual(t, gateway.maxInFlight, limit,
		"no instant may have more than %d oracle calls outstanding", limit)
	assert.Equal(t, 20, gateway.calls)
}

func TestRunFaultIsolation(t *testing.T) {
	gateway := &stubGateway{failFor: map[string]error{
		"a3": &oracle.Error{Kind: oracle.KindUpstream, Err: fmt.Errorf("rejected")},
		"a7": &oracle.Error{Kind: oracle.KindNetwork, Err: fmt.Errorf("reset")},
	}}
	strategy := newFakeStrategy()
	eng, err := New(gateway, 4, nil)
	require.NoError(t, err)

	summary := eng.Run(context.Background(), makeArticles(10), strategy).Summary()

	assert.Equal(t, 8, summary.Applied)
	assert.Equal(t, 2, summary.Failed)
	assert.ElementsMatch(t, []string{"a3", "a7"}, summary.FailedIDs)
	assert.Len(t, strategy.applied, 8)
	assert.NotContains(t, strategy.applied, "a3")
	assert.NotContains(t, strategy.applied, "a7")
}

func TestRunWriteFailureIsolated(t *testing.T) {
	gateway := &stubGateway{}
	strategy := newFakeStrategy()
	strategy.applyErr = map[string]error{"a2": fmt.Errorf("store write failed")}
	eng, err := New(gateway, 2, nil)
	require.NoError(t, err)

	summary := eng.Run(context.Background(), makeArticles(4), strategy).Summary()

	assert.Equal(t, 3, summary.Applied)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"a2"}, summary.FailedIDs)
}

func TestRunIdempotentRestart(t *testing.T) {
	gateway := &stubGateway{}
	strategy := newFakeStrategy()
	eng, err := New(gateway, 4, nil)
	require.NoError(t, err)

	articles := makeArticles(5)
	first := eng.Run(context.Background(), articles, strategy).Summary()
	require.Equal(t, 5, first.Applied)
	callsAfterFirst := gateway.calls

	second := eng.Run(context.Background(), articles, strategy).Summary()

	assert.Equal(t, 0, second.Applied)
	assert.Equal(t, 5, second.AlreadyDone)
	assert.Equal(t, 0, second.Failed)
	assert.Equal(t, callsAfterFirst, gateway.calls, "second run must not contact the oracle")
	assert.Len(t, strategy.applied, 5, "second run must not write")
}

func TestRunSkipsDoneWithoutOracleContact(t *testing.T) {
	gateway := &stubGateway{}
	strategy := newFakeStrategy()
	strategy.done["a1"] = true
	strategy.done["a3"] = true
	eng, err := New(gateway, 2, nil)
	require.NoError(t, err)

	summary := eng.Run(context.Background(), makeArticles(4), strategy).Summary()

	assert.Equal(t, 2, summary.Applied)
	assert.Equal(t, 2, summary.AlreadyDone)
	assert.Equal(t, 2, gateway.calls)
}
