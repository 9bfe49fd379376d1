package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
)

type hideable interface {
	HiddenFromPublic() bool
}

func filterVisible[T hideable](items []T, admin bool) []T {
	if admin {
		return items
	}
	visible := make([]T, 0, len(items))
	for _, item := range items {
		if !item.HiddenFromPublic() {
			visible = append(visible, item)
		}
	}
	return visible
}

// FilterStudies drops every graved study, unpublished or deleted, unless the caller is an admin.
func FilterStudies(studies []models.StudyRecord, admin bool) []models.StudyRecord {
	return filterVisible(studies, admin)
}

// FilterFiles drops graved files and files whose study is graved unless the caller is an admin.
func FilterFiles(files []models.File, admin bool) []models.File {
	return filterVisible(files, admin)
}

// errHidden is returned for records a caller may not see. It is indistinguishable from a missing id.
func errHidden(resource string) error {
	return appErrors.Clone(appErrors.ErrNotFound, resource+" not found")
}

type studyFinder interface {
	FindByID(ctx context.Context, id string) (*models.StudyRecord, error)
}

// visibleStudy loads a study and hides it from non-admins when it is graved.
func visibleStudy(ctx context.Context, studies studyFinder, id string, admin bool) (*models.StudyRecord, error) {
	record, err := studies.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errHidden("study")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load study")
	}
	if !admin && record.HiddenFromPublic() {
		return nil, errHidden("study")
	}
	return record, nil
}

// summarizeStudies converts visible studies to listing rows, each carrying its visible files.
func summarizeStudies(ctx context.Context, files studyFileLister, records []models.StudyRecord, admin bool) ([]dto.StudySummary, error) {
	records = FilterStudies(records, admin)
	summaries := make([]dto.StudySummary, 0, len(records))
	if len(records) == 0 {
		return summaries, nil
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	rows, err := files.ListByStudies(ctx, ids, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load study files")
	}
	byStudy := make(map[string][]models.File, len(records))
	for _, f := range FilterFiles(rows, admin) {
		byStudy[f.StudyID] = append(byStudy[f.StudyID], f)
	}
	for _, r := range records {
		summary := dto.NewStudySummary(r, admin)
		summary.Files = dto.NewFileViews(byStudy[r.ID], admin)
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
