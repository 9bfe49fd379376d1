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
	"github.com/noah-isme/research-archive-api/internal/repository"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
)

const tagStudiesPerPage = 10

type tagStore interface {
	List(ctx context.Context) ([]models.Tag, error)
	Search(ctx context.Context, query string) ([]models.Tag, error)
	FindByID(ctx context.Context, id string) (*models.Tag, error)
	FindByNames(ctx context.Context, names []string) ([]models.Tag, error)
	Create(ctx context.Context, tag *models.Tag) error
	Update(ctx context.Context, tag *models.Tag) error
}

type taggedStudyLister interface {
	ListByTag(ctx context.Context, tagID string, admin bool, page, pageSize int) ([]models.StudyRecord, int, error)
}

// TagTipsProvider looks up a short description for a new tag name.
type TagTipsProvider interface {
	Tips(ctx context.Context, name string) (string, error)
}

// TagService lists, edits and creates tags.
type TagService struct {
	tags      tagStore
	studies   taggedStudyLister
	files     studyFileLister
	tips      TagTipsProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTagService constructs a TagService. tips may be nil, in which case new tags get DefaultTagTips.
func NewTagService(tags tagStore, studies taggedStudyLister, files studyFileLister, tips TagTipsProvider, validate *validator.Validate, logger *zap.Logger) *TagService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TagService{tags: tags, studies: studies, files: files, tips: tips, validator: validate, logger: logger}
}

// List returns every tag ordered by name.
func (s *TagService) List(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tags")
	}
	return tags, nil
}

// Search matches tags by name or tips. An empty query lists everything.
func (s *TagService) Search(ctx context.Context, query string) ([]models.Tag, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx)
	}
	tags, err := s.tags.Search(ctx, query)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search tags")
	}
	return tags, nil
}

// Get returns a tag with one page of the visible studies labelled with it.
func (s *TagService) Get(ctx context.Context, id string, page int, viewer *models.JWTClaims) (*dto.TagDetail, *models.Pagination, error) {
	tag, err := s.tags.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, errHidden("tag")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tag")
	}
	if page < 1 {
		page = 1
	}
	admin := viewer.IsAdmin()
	records, total, err := s.studies.ListByTag(ctx, id, admin, page, tagStudiesPerPage)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tagged studies")
	}
	studies, err := summarizeStudies(ctx, s.files, records, admin)
	if err != nil {
		return nil, nil, err
	}
	return &dto.TagDetail{Tag: *tag, Studies: studies}, models.NewPagination(page, tagStudiesPerPage, total), nil
}

// Update renames a tag or edits its tips. Admin only.
func (s *TagService) Update(ctx context.Context, id string, req dto.TagUpdateRequest, actor *models.JWTClaims) (*models.Tag, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Tips = strings.TrimSpace(req.Tips)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid tag payload")
	}

	tag, err := s.tags.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errHidden("tag")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tag")
	}
	tag.Name = req.Name
	tag.Tips = req.Tips
	if tag.Tips == "" {
		tag.Tips = models.DefaultTagTips
	}
	if err := s.tags.Update(ctx, tag); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "tag name already exists")
		case errors.Is(err, sql.ErrNoRows):
			return nil, errHidden("tag")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tag")
	}
	return tag, nil
}

// Ensure returns the tags named, creating the missing ones.
func (s *TagService) Ensure(ctx context.Context, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return []models.Tag{}, nil
	}
	existing, err := s.tags.FindByNames(ctx, names)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tags")
	}
	byName := make(map[string]models.Tag, len(existing))
	for _, t := range existing {
		byName[t.Name] = t
	}

	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		if tag, ok := byName[name]; ok {
			tags = append(tags, tag)
			continue
		}
		tag := models.Tag{Name: name, Tips: s.lookupTips(ctx, name)}
		if err := s.tags.Create(ctx, &tag); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create tag")
		}
		byName[name] = tag
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *TagService) lookupTips(ctx context.Context, name string) string {
	if s.tips == nil {
		return models.DefaultTagTips
	}
	tips, err := s.tips.Tips(ctx, name)
	if err != nil {
		s.logger.Warn("tag tips lookup failed", zap.String("tag", name), zap.Error(err))
		return models.DefaultTagTips
	}
	if tips = strings.TrimSpace(tips); tips == "" {
		return models.DefaultTagTips
	}
	return tips
}
