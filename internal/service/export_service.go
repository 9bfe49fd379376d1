package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/models"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
	"github.com/noah-isme/research-archive-api/pkg/export"
)

const exportRowLimit = 1000

type studySearcher interface {
	SearchAll(ctx context.Context, params models.SearchParams, limit int) (*models.SearchResult, error)
}

// ExportResult is a rendered document ready to send.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders search results as CSV or PDF tables.
type ExportService struct {
	search    studySearcher
	exporters map[string]export.Exporter
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with the CSV and PDF renderers.
func NewExportService(search studySearcher, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		search: search,
		exporters: map[string]export.Exporter{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// ExportSearch renders up to exportRowLimit search hits in format ("csv" or "pdf").
func (s *ExportService) ExportSearch(ctx context.Context, params models.SearchParams, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.Validation("format", "format must be csv or pdf")
	}

	result, err := s.search.SearchAll(ctx, params, exportRowLimit)
	if err != nil {
		return nil, err
	}

	headers := []string{"Name", "Field", "Updated", "Accesses", "Previews"}
	dataset := export.Dataset{Title: result.Title, Headers: headers}
	for _, study := range result.Studies {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":     study.Name,
			"Field":    fmt.Sprintf("%d", study.Field),
			"Updated":  study.UpdateAt.UTC().Format("2006-01-02"),
			"Accesses": fmt.Sprintf("%d", study.TotalAccessCount),
			"Previews": fmt.Sprintf("%d", study.TotalPreviewCount),
		})
	}

	data, err := exporter.Render(dataset)
	if err != nil {
		s.logger.Error("render export failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("studies-%s%s", s.now().UTC().Format("20060102-150405"), exporter.Extension()),
		ContentType: exporter.ContentType(),
		Data:        data,
	}, nil
}
