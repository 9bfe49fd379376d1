package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
)

// Moderation targets beyond the graveable ones.
const (
	ModerationNews = "NEWS"
	ModerationTag  = "TAG"
)

type graveStore interface {
	Apply(ctx context.Context, target models.GraveTarget, id, reason string, requestDelete bool, purge func() error) (models.Grave, error)
}

type fileFinder interface {
	FindByID(ctx context.Context, id string) (*models.File, error)
}

type storagePurger interface {
	Delete(filename string) error
	RemoveAll(dir string) error
}

type recordDeleter interface {
	Delete(ctx context.Context, id string) error
}

// ModerationService unpublishes and deletes records on behalf of administrators.
type ModerationService struct {
	graves    graveStore
	files     fileFinder
	storage   storagePurger
	news      recordDeleter
	tags      recordDeleter
	cache     cacheInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewModerationService constructs a ModerationService.
func NewModerationService(graves graveStore, files fileFinder, storage storagePurger, news, tags recordDeleter, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ModerationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModerationService{
		graves:    graves,
		files:     files,
		storage:   storage,
		news:      news,
		tags:      tags,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Moderate applies the requested action. Studies and files move through the grave lifecycle
// (unpublished, then deleted); news and tags are removed outright.
func (s *ModerationService) Moderate(ctx context.Context, req dto.ModerationRequest, actor *models.JWTClaims) (*dto.ModerationResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	req.Type = strings.ToUpper(strings.TrimSpace(req.Type))
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid moderation payload")
	}

	var (
		result *dto.ModerationResult
		err    error
	)
	switch req.Type {
	case string(models.GraveTargetStudy), string(models.GraveTargetFile):
		result, err = s.bury(ctx, req)
	case ModerationNews:
		result, err = s.remove(ctx, req, s.news, "news")
	case ModerationTag:
		result, err = s.remove(ctx, req, s.tags, "tag")
	}
	if err != nil {
		s.metrics.RecordModeration(req.Type, outcomeLabel(err))
		return nil, err
	}
	s.metrics.RecordModeration(req.Type, "ok")

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, HomeCacheKey); err != nil {
			s.logger.Warn("failed to invalidate home rankings", zap.Error(err))
		}
	}
	s.logger.Info("moderation applied",
		zap.String("type", result.Type),
		zap.String("id", result.ID),
		zap.Bool("deleted", result.Deleted),
		zap.String("actor", actor.UserID),
	)
	return result, nil
}

func (s *ModerationService) bury(ctx context.Context, req dto.ModerationRequest) (*dto.ModerationResult, error) {
	if req.Reason == "" {
		return nil, appErrors.Validation("reason", "reason is required")
	}
	target := models.GraveTarget(req.Type)

	var purge func() error
	switch target {
	case models.GraveTargetStudy:
		purge = func() error { return s.storage.RemoveAll(req.ID) }
	case models.GraveTargetFile:
		file, err := s.files.FindByID(ctx, req.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, errHidden("file")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
		}
		filename := file.Filename
		purge = func() error { return s.storage.Delete(filename) }
	}

	grave, err := s.graves.Apply(ctx, target, req.ID, req.Reason, req.Delete, purge)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, errHidden(strings.ToLower(req.Type))
		case errors.Is(err, models.ErrGraveDeleted):
			return nil, appErrors.Clone(appErrors.ErrConflict, "already deleted")
		case errors.Is(err, models.ErrGraveUnpublished):
			return nil, appErrors.Clone(appErrors.ErrConflict, "already unpublished")
		}
		s.logger.Error("grave transition failed", zap.String("type", req.Type), zap.String("id", req.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to moderate record")
	}
	return &dto.ModerationResult{Type: req.Type, ID: req.ID, Reason: grave.Reason, Deleted: grave.Deleted}, nil
}

func (s *ModerationService) remove(ctx context.Context, req dto.ModerationRequest, repo recordDeleter, resource string) (*dto.ModerationResult, error) {
	if err := repo.Delete(ctx, req.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errHidden(resource)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete "+resource)
	}
	return &dto.ModerationResult{Type: req.Type, ID: req.ID, Deleted: true}, nil
}

func outcomeLabel(err error) string {
	appErr := appErrors.FromError(err)
	return strings.ToLower(appErr.Code)
}
