package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/models"
)

type voteStoreStub struct {
	votes map[string]bool
	calls int
}

func (s *voteStoreStub) Replace(ctx context.Context, userID, studyID string, helpful bool) (models.VoteCounts, error) {
	s.calls++
	if s.votes == nil {
		s.votes = make(map[string]bool)
	}
	s.votes[userID+"/"+studyID] = helpful
	var counts models.VoteCounts
	for _, v := range s.votes {
		if v {
			counts.Helpful++
		} else {
			counts.Unhelpful++
		}
	}
	return counts, nil
}

type invalidatorStub struct {
	keys []string
}

func (s *invalidatorStub) Invalidate(ctx context.Context, keys ...string) error {
	s.keys = append(s.keys, keys...)
	return nil
}

func newVoteServiceForTest() (*VoteService, *voteStoreStub, *invalidatorStub) {
	graved := studyRecord("s2", "graved")
	graved.GraveState = graveState("off topic", false)
	open := studyRecord("s1", "open")
	studies := &studyFinderStub{records: map[string]*models.StudyRecord{"s1": &open, "s2": &graved}}
	votes := &voteStoreStub{}
	cache := &invalidatorStub{}
	return NewVoteService(studies, votes, cache, NewMetricsService(), zap.NewNop()), votes, cache
}

func TestVoteServiceLastVoteWins(t *testing.T) {
	svc, _, cache := newVoteServiceForTest()
	actor := userClaims("u1")

	res, err := svc.Cast(context.Background(), "s1", true, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Helpful)

	res, err = svc.Cast(context.Background(), "s1", false, actor)
	require.NoError(t, err)
	assert.False(t, res.UserVote)
	assert.Equal(t, 0, res.Helpful)
	assert.Equal(t, 1, res.Unhelpful)
	assert.Equal(t, []string{HomeCacheKey, HomeCacheKey}, cache.keys)
}

func TestVoteServiceHidesGravedStudy(t *testing.T) {
	svc, votes, _ := newVoteServiceForTest()

	_, err := svc.Cast(context.Background(), "s2", true, userClaims("u1"))
	assertAppErrorCode(t, err, "NOT_FOUND")
	assert.Zero(t, votes.calls)

	_, err = svc.Cast(context.Background(), "missing", true, userClaims("u1"))
	assertAppErrorCode(t, err, "NOT_FOUND")
}

func TestVoteServiceAdminMayVoteOnGraved(t *testing.T) {
	svc, _, _ := newVoteServiceForTest()

	res, err := svc.Cast(context.Background(), "s2", true, adminClaims())
	require.NoError(t, err)
	assert.True(t, res.UserVote)
}

func TestVoteServiceRequiresUser(t *testing.T) {
	svc, _, _ := newVoteServiceForTest()

	_, err := svc.Cast(context.Background(), "s1", true, nil)
	assertAppErrorCode(t, err, "UNAUTHORIZED")
}
