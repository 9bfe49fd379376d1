package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/research-archive-api/internal/models"
)

// HistoryKind distinguishes file page visits from previews.
type HistoryKind string

const (
	HistoryAccess  HistoryKind = "access"
	HistoryPreview HistoryKind = "preview"
)

var historyTables = map[HistoryKind]string{
	HistoryAccess:  "file_access",
	HistoryPreview: "file_preview",
}

// HistoryRepository records which files a user opened.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record stores one history row per file id.
func (r *HistoryRepository) Record(ctx context.Context, kind HistoryKind, userID string, fileIDs []string, at time.Time) (err error) {
	table, ok := historyTables[kind]
	if !ok {
		return fmt.Errorf("unknown history kind %q", kind)
	}
	if len(fileIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record history: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf("INSERT INTO %s (id, user_id, file_id, at) VALUES ($1, $2, $3, $4)", table)
	for _, fileID := range fileIDs {
		if _, err = tx.ExecContext(ctx, query, uuid.NewString(), userID, fileID, at); err != nil {
			return fmt.Errorf("insert %s history: %w", kind, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit record history: %w", err)
	}
	return nil
}

// ListVisitedFiles returns a page of the distinct files a user opened, most recent visit first.
// Graved files and files under graved studies are skipped unless admin is set.
func (r *HistoryRepository) ListVisitedFiles(ctx context.Context, userID string, admin bool, page, pageSize int) ([]models.File, int, error) {
	page, pageSize = normalizePage(page, pageSize, 10)
	from := fileJoins + `
JOIN (SELECT file_id, MAX(at) AS last_at FROM file_access WHERE user_id = $1 GROUP BY file_id) h ON h.file_id = f.id`
	if !admin {
		from += " WHERE fg.file_id IS NULL AND sg.study_id IS NULL"
	}

	query := fmt.Sprintf("SELECT %s%s ORDER BY h.last_at DESC, f.id ASC LIMIT %d OFFSET %d", fileColumns, from, pageSize, models.Offset(page, pageSize))
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, userID); err != nil {
		return nil, 0, fmt.Errorf("list visited files: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+from, userID); err != nil {
		return nil, 0, fmt.Errorf("count visited files: %w", err)
	}
	return files, total, nil
}
