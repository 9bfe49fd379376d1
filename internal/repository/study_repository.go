package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/research-archive-api/internal/models"
)

const studyGraveJoin = ` FROM studies s LEFT JOIN study_graves sg ON sg.study_id = s.id`

// StudyRepository provides database access for studies and their authors and tags.
type StudyRepository struct {
	db *sqlx.DB
}

// NewStudyRepository creates a new StudyRepository.
func NewStudyRepository(db *sqlx.DB) *StudyRepository {
	return &StudyRepository{db: db}
}

// FindByID returns a study with its grave state and aggregate counters.
func (r *StudyRepository) FindByID(ctx context.Context, id string) (*models.StudyRecord, error) {
	query := "SELECT " + studyRecordColumns + studyGraveJoin + " WHERE s.id = $1"
	var study models.StudyRecord
	if err := r.db.GetContext(ctx, &study, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find study: %w", err)
	}
	return &study, nil
}

// ExistsByName reports whether another study already uses name. excludeID skips the study being renamed.
func (r *StudyRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM studies WHERE name = $1 AND id <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check study name: %w", err)
	}
	return exists, nil
}

// Create inserts the study, links the author and tags, then runs prepare before committing.
// A failing prepare rolls the whole insert back.
func (r *StudyRepository) Create(ctx context.Context, study *models.Study, authorID string, tagIDs []string, prepare func() error) (err error) {
	if study.ID == "" {
		study.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if study.CreateAt.IsZero() {
		study.CreateAt = now
	}
	study.UpdateAt = study.CreateAt

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create study: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO studies (id, name, summary, raw_markdown, field, create_at, update_at)
VALUES (:id, :name, :summary, :raw_markdown, :field, :create_at, :update_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, study); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create study: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO study_authors (study_id, user_id) VALUES ($1, $2)`, study.ID, authorID); err != nil {
		return fmt.Errorf("add study author: %w", err)
	}
	if err = replaceStudyTags(ctx, tx, study.ID, tagIDs); err != nil {
		return err
	}
	if prepare != nil {
		if err = prepare(); err != nil {
			return fmt.Errorf("prepare study storage: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create study: %w", err)
	}
	return nil
}

// Update stores the editable study fields, replaces its tags and bumps update_at.
func (r *StudyRepository) Update(ctx context.Context, study *models.Study, tagIDs []string) (err error) {
	study.UpdateAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update study: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateQuery = `UPDATE studies SET name = :name, summary = :summary, raw_markdown = :raw_markdown, field = :field, update_at = :update_at WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, updateQuery, study)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return err
		}
		return fmt.Errorf("update study: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if err = replaceStudyTags(ctx, tx, study.ID, tagIDs); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update study: %w", err)
	}
	return nil
}

func replaceStudyTags(ctx context.Context, tx *sqlx.Tx, studyID string, tagIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM study_tags WHERE study_id = $1`, studyID); err != nil {
		return fmt.Errorf("clear study tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO study_tags (study_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, studyID, tagID); err != nil {
			return fmt.Errorf("add study tag: %w", err)
		}
	}
	return nil
}

// Touch bumps update_at.
func (r *StudyRepository) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE studies SET update_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("touch study: %w", err)
	}
	return nil
}

// ListAuthors returns the users credited on a study ordered by name.
func (r *StudyRepository) ListAuthors(ctx context.Context, studyID string) ([]models.User, error) {
	const query = `SELECT u.id, u.name, u.display_name, u.create_at FROM users u
JOIN study_authors sa ON sa.user_id = u.id
WHERE sa.study_id = $1 ORDER BY u.name`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, studyID); err != nil {
		return nil, fmt.Errorf("list study authors: %w", err)
	}
	return users, nil
}

// IsAuthor reports whether userID is credited on studyID.
func (r *StudyRepository) IsAuthor(ctx context.Context, studyID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM study_authors WHERE study_id = $1 AND user_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, studyID, userID); err != nil {
		return false, fmt.Errorf("check study author: %w", err)
	}
	return ok, nil
}

// AddAuthor credits a user on a study. Adding an existing author is a no-op.
func (r *StudyRepository) AddAuthor(ctx context.Context, studyID, userID string) error {
	const query = `INSERT INTO study_authors (study_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, studyID, userID); err != nil {
		return fmt.Errorf("add study author: %w", err)
	}
	return nil
}

// RemoveAuthor removes a user from a study's authors.
func (r *StudyRepository) RemoveAuthor(ctx context.Context, studyID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM study_authors WHERE study_id = $1 AND user_id = $2`, studyID, userID)
	if err != nil {
		return fmt.Errorf("remove study author: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListTags returns the tags of a study ordered by name.
func (r *StudyRepository) ListTags(ctx context.Context, studyID string) ([]models.Tag, error) {
	const query = `SELECT t.id, t.name, t.tips, t.create_at FROM tags t
JOIN study_tags st ON st.tag_id = t.id
WHERE st.study_id = $1 ORDER BY t.name`
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, query, studyID); err != nil {
		return nil, fmt.Errorf("list study tags: %w", err)
	}
	return tags, nil
}

// ListByAuthor returns a page of the studies a user is credited on, newest first.
// Graved studies are included only when admin is set.
func (r *StudyRepository) ListByAuthor(ctx context.Context, userID string, admin bool, page, pageSize int) ([]models.StudyRecord, int, error) {
	filter := " WHERE EXISTS (SELECT 1 FROM study_authors sa WHERE sa.study_id = s.id AND sa.user_id = $1)"
	return r.listPage(ctx, filter, admin, page, pageSize, "list studies by author", userID)
}

// ListHelpfulByUser returns a page of the studies a user voted helpful.
func (r *StudyRepository) ListHelpfulByUser(ctx context.Context, userID string, admin bool, page, pageSize int) ([]models.StudyRecord, int, error) {
	filter := " WHERE EXISTS (SELECT 1 FROM votes v WHERE v.study_id = s.id AND v.user_id = $1 AND v.helpful)"
	return r.listPage(ctx, filter, admin, page, pageSize, "list helpful studies", userID)
}

// ListByTag returns a page of the studies labelled with a tag.
func (r *StudyRepository) ListByTag(ctx context.Context, tagID string, admin bool, page, pageSize int) ([]models.StudyRecord, int, error) {
	filter := " WHERE EXISTS (SELECT 1 FROM study_tags st WHERE st.study_id = s.id AND st.tag_id = $1)"
	return r.listPage(ctx, filter, admin, page, pageSize, "list studies by tag", tagID)
}

func (r *StudyRepository) listPage(ctx context.Context, filter string, admin bool, page, pageSize int, op string, args ...interface{}) ([]models.StudyRecord, int, error) {
	page, pageSize = normalizePage(page, pageSize, 10)
	if !admin {
		filter += " AND sg.study_id IS NULL"
	}

	listQuery := fmt.Sprintf("SELECT %s%s%s ORDER BY s.update_at DESC, s.id ASC LIMIT %d OFFSET %d",
		studyRecordColumns, studyGraveJoin, filter, pageSize, models.Offset(page, pageSize))
	var studies []models.StudyRecord
	if err := r.db.SelectContext(ctx, &studies, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+studyGraveJoin+filter, args...); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", op, err)
	}
	return studies, total, nil
}
