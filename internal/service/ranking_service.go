package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/pkg/config"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
)

// HomeCacheKey stores the three ranking widgets. Writes that change ranked studies invalidate it.
const HomeCacheKey = "home:rankings"

const (
	defaultRankingLimit = 10
	homeNewsLimit       = 5
)

type rankingStore interface {
	TopByAccess(ctx context.Context, limit int) ([]models.RankedStudy, error)
	TopByPreview(ctx context.Context, limit int) ([]models.RankedStudy, error)
	TopByHelpful(ctx context.Context, limit int) ([]models.RankedStudy, error)
}

type recentNewsLister interface {
	Recent(ctx context.Context, limit int) ([]models.News, error)
}

type rankingCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type homeRankings struct {
	Access  []dto.RankedStudyView `json:"access"`
	Preview []dto.RankedStudyView `json:"preview"`
	Helpful []dto.RankedStudyView `json:"helpful"`
}

// RankingService assembles the home page.
type RankingService struct {
	rankings rankingStore
	news     recentNewsLister
	cache    rankingCache
	config   *config.Store
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewRankingService constructs a RankingService.
func NewRankingService(rankings rankingStore, news recentNewsLister, cache rankingCache, cfg *config.Store, metrics *MetricsService, logger *zap.Logger) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{
		rankings: rankings,
		news:     news,
		cache:    cache,
		config:   cfg,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Home returns the access, preview and helpful top lists plus the latest announcements, and
// whether the rankings came from the cache. Rankings only ever contain studies without a grave.
func (s *RankingService) Home(ctx context.Context) (*dto.HomeView, bool, error) {
	cfg := s.settings()

	rankings, hit, err := s.loadRankings(ctx, cfg)
	if err != nil {
		return nil, false, err
	}

	news, err := s.news.Recent(ctx, homeNewsLimit)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load news")
	}
	recent := make([]dto.NewsView, 0, len(news))
	for _, n := range news {
		recent = append(recent, dto.NewsView{ID: n.ID, Title: n.Name, CreateAt: n.CreateAt})
	}

	return &dto.HomeView{
		Title:       cfg.Site.Title,
		AccessRank:  rankings.Access,
		PreviewRank: rankings.Preview,
		HelpfulRank: rankings.Helpful,
		RecentNews:  recent,
		GeneratedAt: s.now().UTC(),
	}, hit, nil
}

func (s *RankingService) loadRankings(ctx context.Context, cfg *config.Config) (*homeRankings, bool, error) {
	useCache := s.cache != nil && cfg.Ranking.CacheEnabled
	if useCache {
		var cached homeRankings
		hit, err := s.cache.Get(ctx, HomeCacheKey, &cached)
		if err != nil {
			s.logger.Warn("home rankings cache unavailable", zap.Error(err))
		}
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	limit := cfg.Ranking.Limit
	if limit <= 0 {
		limit = defaultRankingLimit
	}

	start := time.Now()
	access, err := s.rankings.TopByAccess(ctx, limit)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank by access")
	}
	preview, err := s.rankings.TopByPreview(ctx, limit)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank by preview")
	}
	helpful, err := s.rankings.TopByHelpful(ctx, limit)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank by votes")
	}
	s.metrics.ObserveDBQuery("rankings", time.Since(start))

	rankings := &homeRankings{
		Access:  rankedViews(access),
		Preview: rankedViews(preview),
		Helpful: rankedViews(helpful),
	}
	if useCache {
		if err := s.cache.Set(ctx, HomeCacheKey, rankings, cfg.Ranking.CacheTTL); err != nil {
			s.logger.Warn("failed to cache home rankings", zap.Error(err))
		}
	}
	return rankings, false, nil
}

func (s *RankingService) settings() *config.Config {
	if s.config != nil {
		if cfg := s.config.Current(); cfg != nil {
			return cfg
		}
	}
	return &config.Config{Ranking: config.RankingConfig{Limit: defaultRankingLimit}}
}

func rankedViews(rows []models.RankedStudy) []dto.RankedStudyView {
	views := make([]dto.RankedStudyView, 0, len(rows))
	for _, r := range rows {
		views = append(views, dto.RankedStudyView{
			ID:    r.ID,
			Name:  r.Name,
			Field: r.Field,
			Score: r.Score,
			Votes: r.Votes,
		})
	}
	return views
}
