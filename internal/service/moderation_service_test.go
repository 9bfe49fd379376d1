package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
)

type graveStoreStub struct {
	known  map[string]bool
	graves map[string]models.Grave
}

func (s *graveStoreStub) Apply(ctx context.Context, target models.GraveTarget, id, reason string, requestDelete bool, purge func() error) (models.Grave, error) {
	if !s.known[id] {
		return models.Grave{}, sql.ErrNoRows
	}
	var current *models.Grave
	if g, ok := s.graves[id]; ok {
		current = &g
	}
	next, err := models.NextGrave(current, reason, requestDelete, time.Now())
	if err != nil {
		return models.Grave{}, err
	}
	if next.Deleted {
		if err := purge(); err != nil {
			return models.Grave{}, fmt.Errorf("purge stored files: %w", err)
		}
	}
	s.graves[id] = next
	return next, nil
}

type purgerStub struct {
	deleted []string
	removed []string
	err     error
}

func (s *purgerStub) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	return s.err
}

func (s *purgerStub) RemoveAll(dir string) error {
	s.removed = append(s.removed, dir)
	return s.err
}

type deleterStub struct {
	known map[string]bool
}

func (s *deleterStub) Delete(ctx context.Context, id string) error {
	if !s.known[id] {
		return sql.ErrNoRows
	}
	delete(s.known, id)
	return nil
}

type fileFinderStub struct {
	files map[string]*models.File
}

func (s *fileFinderStub) FindByID(ctx context.Context, id string) (*models.File, error) {
	f, ok := s.files[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return f, nil
}

type moderationFixture struct {
	svc     *ModerationService
	graves  *graveStoreStub
	storage *purgerStub
	cache   *invalidatorStub
}

func newModerationFixture() *moderationFixture {
	graves := &graveStoreStub{known: map[string]bool{"s1": true, "f1": true}, graves: map[string]models.Grave{}}
	files := &fileFinderStub{files: map[string]*models.File{"f1": {ID: "f1", StudyID: "s1", Filename: "s1/20240101000000-a.pdf"}}}
	storage := &purgerStub{}
	news := &deleterStub{known: map[string]bool{"n1": true}}
	tags := &deleterStub{known: map[string]bool{"t1": true}}
	cache := &invalidatorStub{}
	svc := NewModerationService(graves, files, storage, news, tags, cache, NewMetricsService(), nil, zap.NewNop())
	return &moderationFixture{svc: svc, graves: graves, storage: storage, cache: cache}
}

func TestModerationUnpublishThenDelete(t *testing.T) {
	f := newModerationFixture()
	ctx := context.Background()

	res, err := f.svc.Moderate(ctx, dto.ModerationRequest{Type: "STUDY", ID: "s1", Reason: "plagiarism"}, adminClaims())
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	assert.Empty(t, f.storage.removed)

	_, err = f.svc.Moderate(ctx, dto.ModerationRequest{Type: "STUDY", ID: "s1", Reason: "again"}, adminClaims())
	assertAppErrorCode(t, err, "CONFLICT")

	res, err = f.svc.Moderate(ctx, dto.ModerationRequest{Type: "study", ID: "s1", Reason: "confirmed", Delete: true}, adminClaims())
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, []string{"s1"}, f.storage.removed)
	assert.Equal(t, "confirmed", f.graves.graves["s1"].Reason)

	_, err = f.svc.Moderate(ctx, dto.ModerationRequest{Type: "STUDY", ID: "s1", Reason: "x", Delete: true}, adminClaims())
	assertAppErrorCode(t, err, "CONFLICT")
	assert.Contains(t, err.Error(), "already deleted")
	assert.Contains(t, f.cache.keys, HomeCacheKey)
}

func TestModerationDeleteFileRemovesStoredBytes(t *testing.T) {
	f := newModerationFixture()

	res, err := f.svc.Moderate(context.Background(), dto.ModerationRequest{Type: "FILE", ID: "f1", Reason: "duplicate", Delete: true}, adminClaims())
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, []string{"s1/20240101000000-a.pdf"}, f.storage.deleted)
}

func TestModerationPurgeFailureLeavesNoGrave(t *testing.T) {
	f := newModerationFixture()
	f.storage.err = errors.New("disk busy")

	_, err := f.svc.Moderate(context.Background(), dto.ModerationRequest{Type: "STUDY", ID: "s1", Reason: "r", Delete: true}, adminClaims())
	assertAppErrorCode(t, err, "INTERNAL_ERROR")
	_, graved := f.graves.graves["s1"]
	assert.False(t, graved)
}

func TestModerationValidation(t *testing.T) {
	f := newModerationFixture()
	ctx := context.Background()

	_, err := f.svc.Moderate(ctx, dto.ModerationRequest{Type: "STUDY", ID: "s1"}, adminClaims())
	assertAppErrorCode(t, err, "VALIDATION_ERROR")

	_, err = f.svc.Moderate(ctx, dto.ModerationRequest{Type: "USER", ID: "s1", Reason: "r"}, adminClaims())
	assertAppErrorCode(t, err, "VALIDATION_ERROR")

	_, err = f.svc.Moderate(ctx, dto.ModerationRequest{Type: "STUDY", ID: "nope", Reason: "r"}, adminClaims())
	assertAppErrorCode(t, err, "NOT_FOUND")
}

func TestModerationRequiresAdmin(t *testing.T) {
	f := newModerationFixture()

	_, err := f.svc.Moderate(context.Background(), dto.ModerationRequest{Type: "STUDY", ID: "s1", Reason: "r"}, userClaims("u1"))
	assertAppErrorCode(t, err, "FORBIDDEN")

	_, err = f.svc.Moderate(context.Background(), dto.ModerationRequest{Type: "STUDY", ID: "s1", Reason: "r"}, nil)
	assertAppErrorCode(t, err, "UNAUTHORIZED")
}

func TestModerationHardDeletesNewsAndTags(t *testing.T) {
	f := newModerationFixture()
	ctx := context.Background()

	res, err := f.svc.Moderate(ctx, dto.ModerationRequest{Type: "NEWS", ID: "n1"}, adminClaims())
	require.NoError(t, err)
	assert.True(t, res.Deleted)

	_, err = f.svc.Moderate(ctx, dto.ModerationRequest{Type: "NEWS", ID: "n1"}, adminClaims())
	assertAppErrorCode(t, err, "NOT_FOUND")

	_, err = f.svc.Moderate(ctx, dto.ModerationRequest{Type: "TAG", ID: "t1"}, adminClaims())
	require.NoError(t, err)
}
