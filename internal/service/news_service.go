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

const newsPerPage = 10

type newsStore interface {
	List(ctx context.Context, page, pageSize int) ([]models.News, int, error)
	Recent(ctx context.Context, limit int) ([]models.News, error)
	FindByID(ctx context.Context, id string) (*models.News, error)
	Create(ctx context.Context, item *models.News) error
}

// NewsService publishes and renders announcements.
type NewsService struct {
	repo      newsStore
	markdown  markdownRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNewsService constructs a NewsService.
func NewNewsService(repo newsStore, markdown markdownRenderer, validate *validator.Validate, logger *zap.Logger) *NewsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsService{repo: repo, markdown: markdown, validator: validate, logger: logger}
}

// List returns one page of announcements, newest first.
func (s *NewsService) List(ctx context.Context, page int) ([]dto.NewsView, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	items, total, err := s.repo.List(ctx, page, newsPerPage)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list news")
	}
	views := make([]dto.NewsView, 0, len(items))
	for _, n := range items {
		views = append(views, dto.NewsView{ID: n.ID, Title: n.Name, CreateAt: n.CreateAt})
	}
	return views, models.NewPagination(page, newsPerPage, total), nil
}

// Recent returns the latest announcements without bodies.
func (s *NewsService) Recent(ctx context.Context, limit int) ([]dto.NewsView, error) {
	items, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list news")
	}
	views := make([]dto.NewsView, 0, len(items))
	for _, n := range items {
		views = append(views, dto.NewsView{ID: n.ID, Title: n.Name, CreateAt: n.CreateAt})
	}
	return views, nil
}

// Get returns one announcement with its rendered body.
func (s *NewsService) Get(ctx context.Context, id string) (*dto.NewsView, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errHidden("news")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load news")
	}
	html := item.Content
	if html == "" {
		if html, err = s.markdown.Render(item.RawMarkdown); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render news")
		}
	}
	return &dto.NewsView{ID: item.ID, Title: item.Name, HTML: html, CreateAt: item.CreateAt}, nil
}

// Create publishes an announcement. Admin only.
func (s *NewsService) Create(ctx context.Context, req dto.NewsRequest, actor *models.JWTClaims) (*dto.NewsView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid news payload")
	}
	html, err := s.markdown.Render(req.Markdown)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render news")
	}
	authorID := actor.UserID
	item := &models.News{
		Name:        req.Title,
		RawMarkdown: req.Markdown,
		Content:     html,
		AuthorID:    &authorID,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create news")
	}
	s.logger.Info("news published", zap.String("news_id", item.ID), zap.String("actor", actor.UserID))
	return &dto.NewsView{ID: item.ID, Title: item.Name, HTML: item.Content, CreateAt: item.CreateAt}, nil
}
