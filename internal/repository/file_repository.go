package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/research-archive-api/internal/models"
)

const fileColumns = `f.id, f.study_id, f.name, f.summary, f.type, f.filename, f.pubyear, f.hashsum,
	f.access_count, f.preview_count, f.create_at,
	fg.reason AS grave_reason, fg.deleted AS grave_deleted,
	(sg.study_id IS NOT NULL) AS parent_graved`

const fileJoins = ` FROM files f
	LEFT JOIN file_graves fg ON fg.file_id = f.id
	LEFT JOIN study_graves sg ON sg.study_id = f.study_id`

// FileRepository provides database access for uploaded files.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository creates a new FileRepository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// FindByID returns a file with its own and its parent's grave state.
func (r *FileRepository) FindByID(ctx context.Context, id string) (*models.File, error) {
	query := "SELECT " + fileColumns + fileJoins + " WHERE f.id = $1"
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find file: %w", err)
	}
	return &file, nil
}

// ListByStudies returns the files of the given studies. When terms are present only files whose
// summary or content contains at least one of them are returned.
func (r *FileRepository) ListByStudies(ctx context.Context, studyIDs []string, terms []string) ([]models.File, error) {
	if len(studyIDs) == 0 {
		return []models.File{}, nil
	}
	args := []interface{}{pq.Array(studyIDs)}
	query := "SELECT " + fileColumns + fileJoins + " WHERE f.study_id = ANY($1)"
	if len(terms) > 0 {
		matches := make([]string, 0, len(terms))
		for _, term := range terms {
			args = append(args, containsPattern(term))
			matches = append(matches, fmt.Sprintf("f.summary ILIKE $%d OR f.content ILIKE $%d", len(args), len(args)))
		}
		query += " AND (" + strings.Join(matches, " OR ") + ")"
	}
	query += " ORDER BY f.study_id, f.create_at, f.id"

	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, fmt.Errorf("list files by studies: %w", err)
	}
	return files, nil
}

// ExistsByHash reports whether a file with the given SHA-256 digest was already uploaded.
func (r *FileRepository) ExistsByHash(ctx context.Context, hashsum string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM files WHERE hashsum = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, hashsum); err != nil {
		return false, fmt.Errorf("check file hash: %w", err)
	}
	return exists, nil
}

// Create inserts a file and bumps the parent study update_at in one transaction.
func (r *FileRepository) Create(ctx context.Context, file *models.File) (err error) {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.CreateAt.IsZero() {
		file.CreateAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO files (id, study_id, name, summary, content, type, filename, pubyear, hashsum, access_count, preview_count, create_at)
VALUES (:id, :study_id, :name, :summary, :content, :type, :filename, :pubyear, :hashsum, 0, 0, :create_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, file); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create file: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE studies SET update_at = $2 WHERE id = $1`, file.StudyID, file.CreateAt); err != nil {
		return fmt.Errorf("touch study: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create file: %w", err)
	}
	return nil
}

// Update stores editable file metadata and bumps the parent study update_at.
func (r *FileRepository) Update(ctx context.Context, file *models.File, at time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateQuery = `UPDATE files SET summary = :summary, type = :type, pubyear = :pubyear WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, updateQuery, file)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE studies SET update_at = $2 WHERE id = $1`, file.StudyID, at); err != nil {
		return fmt.Errorf("touch study: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update file: %w", err)
	}
	return nil
}

// IncrementAccess adds one to the file access counter.
func (r *FileRepository) IncrementAccess(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE files SET access_count = access_count + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("increment access count: %w", err)
	}
	return nil
}

// IncrementPreview adds one to the file preview counter.
func (r *FileRepository) IncrementPreview(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE files SET preview_count = preview_count + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("increment preview count: %w", err)
	}
	return nil
}
