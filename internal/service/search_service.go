package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/pkg/config"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
)

// AllStudiesTitle labels an unfiltered listing.
const AllStudiesTitle = "All studies"

type searchRepository interface {
	Search(ctx context.Context, params models.SearchParams) ([]models.StudyRecord, int, error)
}

type studyFileLister interface {
	ListByStudies(ctx context.Context, studyIDs []string, terms []string) ([]models.File, error)
}

// SearchService runs study searches and resolves the files to show for every hit.
type SearchService struct {
	studies searchRepository
	files   studyFileLister
	config  *config.Store
	metrics *MetricsService
	logger  *zap.Logger
}

// NewSearchService constructs a SearchService.
func NewSearchService(studies searchRepository, files studyFileLister, cfg *config.Store, metrics *MetricsService, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{studies: studies, files: files, config: cfg, metrics: metrics, logger: logger}
}

// SearchTitle describes a result set: a fixed label without terms, otherwise the quoted raw query.
func SearchTitle(query string) string {
	if len(models.SearchParams{Query: query}.Terms()) == 0 {
		return AllStudiesTitle
	}
	return fmt.Sprintf("Search results for %q", query)
}

// Search returns one page of matching studies. Every study carries the files to render for it:
// with a query, only files whose summary or content contains at least one query word; without
// one, all of the study's files. Graved records are dropped for non-admins.
func (s *SearchService) Search(ctx context.Context, params models.SearchParams) (*models.SearchResult, error) {
	return s.run(ctx, s.normalize(params))
}

// SearchAll returns up to limit matching studies in one page, bypassing the page size cap.
func (s *SearchService) SearchAll(ctx context.Context, params models.SearchParams, limit int) (*models.SearchResult, error) {
	params = s.normalize(params)
	params.Page = 1
	params.PerPage = limit
	return s.run(ctx, params)
}

func (s *SearchService) run(ctx context.Context, params models.SearchParams) (*models.SearchResult, error) {
	start := time.Now()
	records, total, err := s.studies.Search(ctx, params)
	s.metrics.ObserveDBQuery("search", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search studies")
	}
	s.metrics.RecordSearch(string(params.SortColumn))

	records = FilterStudies(records, params.Admin)
	studies, err := s.attachFiles(ctx, records, params)
	if err != nil {
		return nil, err
	}

	return &models.SearchResult{
		Studies:    studies,
		Title:      SearchTitle(params.Query),
		Pagination: models.NewPagination(params.Page, params.PerPage, total),
	}, nil
}

func (s *SearchService) attachFiles(ctx context.Context, records []models.StudyRecord, params models.SearchParams) ([]models.StudyWithFiles, error) {
	result := make([]models.StudyWithFiles, 0, len(records))
	if len(records) == 0 {
		return result, nil
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	files, err := s.files.ListByStudies(ctx, ids, params.Terms())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load matching files")
	}

	byStudy := make(map[string][]models.File, len(records))
	for _, f := range FilterFiles(files, params.Admin) {
		byStudy[f.StudyID] = append(byStudy[f.StudyID], f)
	}
	for _, r := range records {
		result = append(result, models.StudyWithFiles{StudyRecord: r, Files: byStudy[r.ID]})
	}
	return result, nil
}

func (s *SearchService) normalize(params models.SearchParams) models.SearchParams {
	defaultPerPage, maxPerPage := 10, 100
	if s.config != nil {
		cfg := s.config.Current().Search
		defaultPerPage, maxPerPage = cfg.DefaultPerPage, cfg.MaxPerPage
	}
	if params.SortColumn == "" {
		params.SortColumn = models.SortUpdateAt
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PerPage <= 0 {
		params.PerPage = defaultPerPage
	}
	if params.PerPage > maxPerPage {
		params.PerPage = maxPerPage
	}
	return params
}
