package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/research-archive-api/internal/models"
)

// TagRepository provides database access for tags.
type TagRepository struct {
	db *sqlx.DB
}

// NewTagRepository creates a new TagRepository.
func NewTagRepository(db *sqlx.DB) *TagRepository {
	return &TagRepository{db: db}
}

// List returns every tag ordered by name.
func (r *TagRepository) List(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, `SELECT id, name, tips, create_at FROM tags ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// Search returns the tags whose name or tips contain query.
func (r *TagRepository) Search(ctx context.Context, query string) ([]models.Tag, error) {
	const q = `SELECT id, name, tips, create_at FROM tags WHERE name ILIKE $1 OR tips ILIKE $1 ORDER BY name`
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, q, containsPattern(query)); err != nil {
		return nil, fmt.Errorf("search tags: %w", err)
	}
	return tags, nil
}

// FindByID returns a tag by identifier.
func (r *TagRepository) FindByID(ctx context.Context, id string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.GetContext(ctx, &tag, `SELECT id, name, tips, create_at FROM tags WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tag: %w", err)
	}
	return &tag, nil
}

// FindByNames returns the existing tags among names.
func (r *TagRepository) FindByNames(ctx context.Context, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return []models.Tag{}, nil
	}
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, `SELECT id, name, tips, create_at FROM tags WHERE name = ANY($1)`, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("find tags by name: %w", err)
	}
	return tags, nil
}

// Create inserts a tag. A concurrent insert of the same name is ignored and the stored row is returned.
func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	if tag.CreateAt.IsZero() {
		tag.CreateAt = time.Now().UTC()
	}
	const query = `INSERT INTO tags (id, name, tips, create_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name, tips, create_at`
	if err := r.db.GetContext(ctx, tag, query, tag.ID, tag.Name, tag.Tips, tag.CreateAt); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// Update stores a tag's name and tips.
func (r *TagRepository) Update(ctx context.Context, tag *models.Tag) error {
	res, err := r.db.NamedExecContext(ctx, `UPDATE tags SET name = :name, tips = :tips WHERE id = :id`, tag)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update tag: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a tag and its study links.
func (r *TagRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tag: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM study_tags WHERE tag_id = $1`, id); err != nil {
		return fmt.Errorf("unlink tag: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tag: %w", err)
	}
	return nil
}
