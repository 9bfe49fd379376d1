package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/models"
)

type rankingStoreStub struct {
	calls int
	limit int
}

func (s *rankingStoreStub) TopByAccess(ctx context.Context, limit int) ([]models.RankedStudy, error) {
	s.calls++
	s.limit = limit
	return []models.RankedStudy{{Study: models.Study{ID: "s1", Name: "Most read"}, Score: 40}}, nil
}

func (s *rankingStoreStub) TopByPreview(ctx context.Context, limit int) ([]models.RankedStudy, error) {
	return []models.RankedStudy{{Study: models.Study{ID: "s2", Name: "Most previewed"}, Score: 9}}, nil
}

func (s *rankingStoreStub) TopByHelpful(ctx context.Context, limit int) ([]models.RankedStudy, error) {
	return []models.RankedStudy{
		{Study: models.Study{ID: "s3", Name: "Helpful"}, Score: 2, Votes: 4},
		{Study: models.Study{ID: "s4", Name: "Unvoted"}, Score: 0, Votes: 0},
	}, nil
}

type newsRecentStub struct{}

func (newsRecentStub) Recent(ctx context.Context, limit int) ([]models.News, error) {
	return []models.News{{ID: "n1", Name: "Open day", CreateAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}}, nil
}

type memoryCache struct {
	entries map[string][]byte
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func TestRankingServiceHomeUsesCache(t *testing.T) {
	store := &rankingStoreStub{}
	cache := &memoryCache{entries: map[string][]byte{}}
	svc := NewRankingService(store, newsRecentStub{}, cache, testConfigStore(), nil, zap.NewNop())

	home, hit, err := svc.Home(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Research Archive", home.Title)
	require.Len(t, home.AccessRank, 1)
	assert.Equal(t, int64(40), home.AccessRank[0].Score)
	require.Len(t, home.HelpfulRank, 2)
	assert.Equal(t, int64(4), home.HelpfulRank[0].Votes)
	require.Len(t, home.RecentNews, 1)
	assert.Equal(t, "Open day", home.RecentNews[0].Title)
	assert.Equal(t, 10, store.limit)

	again, hit, err := svc.Home(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, home.PreviewRank, again.PreviewRank)
}

func TestRankingServiceWithoutCache(t *testing.T) {
	store := &rankingStoreStub{}
	svc := NewRankingService(store, newsRecentStub{}, nil, nil, nil, zap.NewNop())

	_, _, err := svc.Home(context.Background())
	require.NoError(t, err)
	_, _, err = svc.Home(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
	assert.Equal(t, defaultRankingLimit, store.limit)
}
