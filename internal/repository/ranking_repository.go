package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/research-archive-api/internal/models"
)

const rankedColumns = `s.id, s.name, s.summary, s.field, s.create_at, s.update_at`

const notGraved = `NOT EXISTS (SELECT 1 FROM study_graves sg WHERE sg.study_id = s.id)`

// RankingRepository computes the home page ranking widgets over raw counters.
type RankingRepository struct {
	db *sqlx.DB
}

// NewRankingRepository creates a new RankingRepository.
func NewRankingRepository(db *sqlx.DB) *RankingRepository {
	return &RankingRepository{db: db}
}

// TopByAccess ranks non-graved studies by the sum of their files' access counts.
func (r *RankingRepository) TopByAccess(ctx context.Context, limit int) ([]models.RankedStudy, error) {
	return r.topByFileCounter(ctx, "access_count", limit)
}

// TopByPreview ranks non-graved studies by the sum of their files' preview counts.
func (r *RankingRepository) TopByPreview(ctx context.Context, limit int) ([]models.RankedStudy, error) {
	return r.topByFileCounter(ctx, "preview_count", limit)
}

func (r *RankingRepository) topByFileCounter(ctx context.Context, column string, limit int) ([]models.RankedStudy, error) {
	query := fmt.Sprintf(`SELECT %s, SUM(f.%s) AS score, 0 AS votes
FROM studies s JOIN files f ON f.study_id = s.id
WHERE %s
GROUP BY s.id ORDER BY score DESC, s.id ASC LIMIT $1`, rankedColumns, column, notGraved)

	var ranked []models.RankedStudy
	if err := r.db.SelectContext(ctx, &ranked, query, limit); err != nil {
		return nil, fmt.Errorf("rank studies by %s: %w", column, err)
	}
	return ranked, nil
}

// TopByHelpful ranks non-graved studies by helpful minus unhelpful votes. Studies without votes score 0.
func (r *RankingRepository) TopByHelpful(ctx context.Context, limit int) ([]models.RankedStudy, error) {
	query := fmt.Sprintf(`SELECT %s,
	COALESCE(SUM(CASE WHEN v.helpful THEN 1 WHEN NOT v.helpful THEN -1 ELSE 0 END), 0) AS score,
	COUNT(v.study_id) AS votes
FROM studies s LEFT JOIN votes v ON v.study_id = s.id
WHERE %s
GROUP BY s.id ORDER BY score DESC, s.id ASC LIMIT $1`, rankedColumns, notGraved)

	var ranked []models.RankedStudy
	if err := r.db.SelectContext(ctx, &ranked, query, limit); err != nil {
		return nil, fmt.Errorf("rank studies by votes: %w", err)
	}
	return ranked, nil
}
