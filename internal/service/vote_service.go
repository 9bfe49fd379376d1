package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
)

type voteStore interface {
	Replace(ctx context.Context, userID, studyID string, helpful bool) (models.VoteCounts, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// VoteService records helpful/unhelpful votes.
type VoteService struct {
	studies studyFinder
	votes   voteStore
	cache   cacheInvalidator
	metrics *MetricsService
	logger  *zap.Logger
}

// NewVoteService constructs a VoteService.
func NewVoteService(studies studyFinder, votes voteStore, cache cacheInvalidator, metrics *MetricsService, logger *zap.Logger) *VoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoteService{studies: studies, votes: votes, cache: cache, metrics: metrics, logger: logger}
}

// Cast replaces the actor's vote on a study and returns the refreshed counts.
func (s *VoteService) Cast(ctx context.Context, studyID string, helpful bool, actor *models.JWTClaims) (*dto.VoteResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := visibleStudy(ctx, s.studies, studyID, actor.IsAdmin()); err != nil {
		return nil, err
	}

	counts, err := s.votes.Replace(ctx, actor.UserID, studyID, helpful)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record vote")
	}
	s.metrics.RecordVote(helpful)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, HomeCacheKey); err != nil {
			s.logger.Warn("failed to invalidate home rankings", zap.Error(err))
		}
	}

	return &dto.VoteResult{UserVote: helpful, Helpful: counts.Helpful, Unhelpful: counts.Unhelpful}, nil
}
