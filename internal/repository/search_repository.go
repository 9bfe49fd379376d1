package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/research-archive-api/internal/models"
)

const studyRecordColumns = `s.id, s.name, s.summary, s.raw_markdown, s.field, s.create_at, s.update_at,
	sg.reason AS grave_reason, sg.deleted AS grave_deleted,
	COALESCE((SELECT SUM(tf.access_count) FROM files tf WHERE tf.study_id = s.id), 0) AS total_access_count,
	COALESCE((SELECT SUM(tf.preview_count) FROM files tf WHERE tf.study_id = s.id), 0) AS total_preview_count`

var searchSortExpressions = map[models.SortColumn]string{
	models.SortUpdateAt:          "s.update_at",
	models.SortTotalAccessCount:  "total_access_count",
	models.SortTotalPreviewCount: "total_preview_count",
}

// SearchRepository builds the parameterised study search query.
type SearchRepository struct {
	db *sqlx.DB
}

// NewSearchRepository creates a new SearchRepository.
func NewSearchRepository(db *sqlx.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// Search returns one page of studies matching params together with the total match count.
// Every query word must appear in the study name or summary, or in the summary or content of
// one of the study's files together with the other words. A study without files still matches
// on its own fields.
func (r *SearchRepository) Search(ctx context.Context, params models.SearchParams) ([]models.StudyRecord, int, error) {
	where, args := buildSearchWhere(params)

	orderBy := fmt.Sprintf(" ORDER BY %s %s, s.id ASC", sortExpression(params.SortColumn), direction(params.Ascending))
	listQuery := "SELECT " + studyRecordColumns + " FROM studies s LEFT JOIN study_graves sg ON sg.study_id = s.id" + where + orderBy
	if params.PerPage > 0 {
		listQuery += fmt.Sprintf(" LIMIT %d OFFSET %d", params.PerPage, models.Offset(params.Page, params.PerPage))
	}

	var studies []models.StudyRecord
	if err := r.db.SelectContext(ctx, &studies, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("search studies: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM studies s LEFT JOIN study_graves sg ON sg.study_id = s.id" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count studies: %w", err)
	}
	return studies, total, nil
}

func buildSearchWhere(params models.SearchParams) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if terms := params.Terms(); len(terms) > 0 {
		studyOnly := make([]string, 0, len(terms))
		withFile := make([]string, 0, len(terms))
		for _, term := range terms {
			args = append(args, containsPattern(term))
			n := len(args)
			studyOnly = append(studyOnly, fmt.Sprintf("(s.name ILIKE $%d OR s.summary ILIKE $%d)", n, n))
			withFile = append(withFile, fmt.Sprintf("(s.name ILIKE $%d OR s.summary ILIKE $%d OR f.summary ILIKE $%d OR f.content ILIKE $%d)", n, n, n, n))
		}
		fileScope := "f.study_id = s.id"
		if !params.Admin {
			fileScope += " AND NOT EXISTS (SELECT 1 FROM file_graves fg WHERE fg.file_id = f.id)"
		}
		conditions = append(conditions, fmt.Sprintf("((%s) OR EXISTS (SELECT 1 FROM files f WHERE %s AND %s))",
			strings.Join(studyOnly, " AND "), fileScope, strings.Join(withFile, " AND ")))
	}
	if rng := params.UpdateAtRange; rng != nil {
		conditions = append(conditions, fmt.Sprintf("s.update_at BETWEEN $%d AND $%d", len(args)+1, len(args)+2))
		args = append(args, rng.Start, rng.End)
	}
	if rng := params.CreateAtRange; rng != nil {
		conditions = append(conditions, fmt.Sprintf("s.create_at BETWEEN $%d AND $%d", len(args)+1, len(args)+2))
		args = append(args, rng.Start, rng.End)
	}
	if params.Field != 0 {
		conditions = append(conditions, fmt.Sprintf("s.field = $%d", len(args)+1))
		args = append(args, params.Field)
	}
	if !params.Admin {
		conditions = append(conditions, "sg.study_id IS NULL")
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func sortExpression(column models.SortColumn) string {
	if column == "" {
		column = models.SortUpdateAt
	}
	if expr, ok := searchSortExpressions[column]; ok {
		return expr
	}
	return "s.create_at"
}

func direction(ascending bool) string {
	if ascending {
		return "ASC"
	}
	return "DESC"
}
