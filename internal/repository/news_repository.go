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

const newsColumns = `id, name, raw_markdown, content, author_id, create_at`

// NewsRepository provides database access for announcements.
type NewsRepository struct {
	db *sqlx.DB
}

// NewNewsRepository creates a new NewsRepository.
func NewNewsRepository(db *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// List returns a page of news, newest first, with the total count.
func (r *NewsRepository) List(ctx context.Context, page, pageSize int) ([]models.News, int, error) {
	page, pageSize = normalizePage(page, pageSize, 10)
	query := fmt.Sprintf("SELECT %s FROM news ORDER BY create_at DESC, id ASC LIMIT %d OFFSET %d", newsColumns, pageSize, models.Offset(page, pageSize))
	var items []models.News
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, 0, fmt.Errorf("list news: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM news`); err != nil {
		return nil, 0, fmt.Errorf("count news: %w", err)
	}
	return items, total, nil
}

// Recent returns the newest limit announcements.
func (r *NewsRepository) Recent(ctx context.Context, limit int) ([]models.News, error) {
	var items []models.News
	if err := r.db.SelectContext(ctx, &items, "SELECT "+newsColumns+" FROM news ORDER BY create_at DESC, id ASC LIMIT $1", limit); err != nil {
		return nil, fmt.Errorf("recent news: %w", err)
	}
	return items, nil
}

// FindByID returns an announcement by identifier.
func (r *NewsRepository) FindByID(ctx context.Context, id string) (*models.News, error) {
	var item models.News
	if err := r.db.GetContext(ctx, &item, "SELECT "+newsColumns+" FROM news WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find news: %w", err)
	}
	return &item, nil
}

// Create inserts an announcement.
func (r *NewsRepository) Create(ctx context.Context, item *models.News) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreateAt.IsZero() {
		item.CreateAt = time.Now().UTC()
	}
	const query = `INSERT INTO news (id, name, raw_markdown, content, author_id, create_at)
VALUES (:id, :name, :raw_markdown, :content, :author_id, :create_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create news: %w", err)
	}
	return nil
}

// Delete removes an announcement.
func (r *NewsRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete news: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
