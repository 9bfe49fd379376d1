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

type studyStore interface {
	FindByID(ctx context.Context, id string) (*models.StudyRecord, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, study *models.Study, authorID string, tagIDs []string, prepare func() error) error
	Update(ctx context.Context, study *models.Study, tagIDs []string) error
	ListAuthors(ctx context.Context, studyID string) ([]models.User, error)
	IsAuthor(ctx context.Context, studyID, userID string) (bool, error)
	AddAuthor(ctx context.Context, studyID, userID string) error
	RemoveAuthor(ctx context.Context, studyID, userID string) error
	ListTags(ctx context.Context, studyID string) ([]models.Tag, error)
}

type tagEnsurer interface {
	Ensure(ctx context.Context, names []string) ([]models.Tag, error)
}

type voteReader interface {
	Counts(ctx context.Context, studyID string) (models.VoteCounts, error)
	FindUserVote(ctx context.Context, userID, studyID string) (*bool, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type studyDirectories interface {
	EnsureDir(dir string) error
	RemoveAll(dir string) error
}

type markdownRenderer interface {
	Render(source string) (string, error)
}

// StudyService manages studies, their authors and their detail page.
type StudyService struct {
	studies   studyStore
	files     studyFileLister
	tags      tagEnsurer
	votes     voteReader
	users     userFinder
	storage   studyDirectories
	markdown  markdownRenderer
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudyService constructs a StudyService.
func NewStudyService(studies studyStore, files studyFileLister, tags tagEnsurer, votes voteReader, users userFinder, storage studyDirectories, markdown markdownRenderer, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *StudyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudyService{
		studies:   studies,
		files:     files,
		tags:      tags,
		votes:     votes,
		users:     users,
		storage:   storage,
		markdown:  markdown,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// Create stores a new study credited to the actor. The study's upload directory is
// created in the same unit of work.
func (s *StudyService) Create(ctx context.Context, req dto.StudyRequest, actor *models.JWTClaims) (*dto.StudyDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req = normalizeStudyRequest(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid study payload")
	}
	if err := s.ensureUniqueName(ctx, req.Name, ""); err != nil {
		return nil, err
	}
	tagIDs, err := s.resolveTags(ctx, req.Tags)
	if err != nil {
		return nil, err
	}

	study := &models.Study{
		Name:        req.Name,
		Summary:     req.Summary,
		RawMarkdown: req.Markdown,
		Field:       req.Field,
	}
	prepare := func() error { return s.storage.EnsureDir(study.ID) }
	if err := s.studies.Create(ctx, study, actor.UserID, tagIDs, prepare); err != nil {
		if study.ID != "" {
			if rmErr := s.storage.RemoveAll(study.ID); rmErr != nil {
				s.logger.Warn("failed to clean study directory", zap.String("study_id", study.ID), zap.Error(rmErr))
			}
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "study name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create study")
	}
	s.logger.Info("study created", zap.String("study_id", study.ID), zap.String("actor", actor.UserID))
	s.invalidateHome(ctx)
	return s.Get(ctx, study.ID, actor)
}

// Update edits a study. Only its authors and admins may edit.
func (s *StudyService) Update(ctx context.Context, id string, req dto.StudyRequest, actor *models.JWTClaims) (*dto.StudyDetail, error) {
	record, err := s.editable(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	req = normalizeStudyRequest(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid study payload")
	}
	if err := s.ensureUniqueName(ctx, req.Name, id); err != nil {
		return nil, err
	}
	tagIDs, err := s.resolveTags(ctx, req.Tags)
	if err != nil {
		return nil, err
	}

	study := record.Study
	study.Name = req.Name
	study.Summary = req.Summary
	study.RawMarkdown = req.Markdown
	study.Field = req.Field
	if err := s.studies.Update(ctx, &study, tagIDs); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "study name already exists")
		case errors.Is(err, sql.ErrNoRows):
			return nil, errHidden("study")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update study")
	}
	s.invalidateHome(ctx)
	return s.Get(ctx, id, actor)
}

// invalidateHome drops the ranking widgets, which embed study names.
func (s *StudyService) invalidateHome(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, HomeCacheKey); err != nil {
		s.logger.Warn("failed to invalidate home rankings", zap.Error(err))
	}
}

// AddAuthor credits another user on the study.
func (s *StudyService) AddAuthor(ctx context.Context, studyID, userID string, actor *models.JWTClaims) error {
	if _, err := s.editable(ctx, studyID, actor); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return appErrors.Validation("userId", "user is required")
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Validation("userId", "user does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.studies.AddAuthor(ctx, studyID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add author")
	}
	return nil
}

// RemoveAuthor withdraws a user's credit on the study.
func (s *StudyService) RemoveAuthor(ctx context.Context, studyID, userID string, actor *models.JWTClaims) error {
	if _, err := s.editable(ctx, studyID, actor); err != nil {
		return err
	}
	if err := s.studies.RemoveAuthor(ctx, studyID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Validation("userId", "user is not an author of this study")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove author")
	}
	return nil
}

// Get returns the study page. Graved studies and files are hidden from non-admins.
func (s *StudyService) Get(ctx context.Context, id string, viewer *models.JWTClaims) (*dto.StudyDetail, error) {
	admin := viewer.IsAdmin()
	record, err := visibleStudy(ctx, s.studies, id, admin)
	if err != nil {
		return nil, err
	}

	files, err := s.files.ListByStudies(ctx, []string{id}, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load study files")
	}
	files = FilterFiles(files, admin)

	tags, err := s.studies.ListTags(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load study tags")
	}
	authors, err := s.studies.ListAuthors(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load study authors")
	}
	counts, err := s.votes.Counts(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count votes")
	}

	html, err := s.markdown.Render(record.RawMarkdown)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render study body")
	}

	detail := &dto.StudyDetail{
		StudySummary: dto.NewStudySummary(*record, admin),
		HTML:         html,
		Tags:         tags,
		Helpful:      counts.Helpful,
		Unhelpful:    counts.Unhelpful,
		Editable:     admin,
	}
	detail.Files = dto.NewFileViews(files, admin)
	detail.Authors = make([]dto.AuthorView, 0, len(authors))
	for _, a := range authors {
		detail.Authors = append(detail.Authors, dto.AuthorView{ID: a.ID, Name: a.Name, DisplayName: a.DisplayName})
		if viewer != nil && a.ID == viewer.UserID {
			detail.Editable = true
		}
	}
	if viewer != nil {
		vote, err := s.votes.FindUserVote(ctx, viewer.UserID, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vote")
		}
		detail.UserVote = vote
	}
	if detail.Editable {
		detail.Markdown = record.RawMarkdown
	}
	return detail, nil
}

// editable loads the study and checks the actor may modify it.
func (s *StudyService) editable(ctx context.Context, id string, actor *models.JWTClaims) (*models.StudyRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	admin := actor.IsAdmin()
	record, err := visibleStudy(ctx, s.studies, id, admin)
	if err != nil {
		return nil, err
	}
	if admin {
		return record, nil
	}
	ok, err := s.studies.IsAuthor(ctx, id, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check authorship")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only authors may edit this study")
	}
	return record, nil
}

func (s *StudyService) ensureUniqueName(ctx context.Context, name, excludeID string) error {
	exists, err := s.studies.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check study name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "study name already exists")
	}
	return nil
}

func (s *StudyService) resolveTags(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	tags, err := s.tags.Ensure(ctx, names)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func normalizeStudyRequest(req dto.StudyRequest) dto.StudyRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Summary = strings.TrimSpace(req.Summary)
	seen := make(map[string]struct{}, len(req.Tags))
	tags := make([]string, 0, len(req.Tags))
	for _, t := range req.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	req.Tags = tags
	return req
}
