package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/research-archive-api/internal/models"
)

const voteReplaceAttempts = 3

// VoteRepository stores helpful/unhelpful votes.
type VoteRepository struct {
	db *sqlx.DB
}

// NewVoteRepository creates a new VoteRepository.
func NewVoteRepository(db *sqlx.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Replace removes any vote of the user on the study and stores the new one atomically, then
// returns the refreshed counts. Two concurrent replaces for the same pair race on the unique
// (user_id, study_id) index; the loser is retried.
func (r *VoteRepository) Replace(ctx context.Context, userID, studyID string, helpful bool) (models.VoteCounts, error) {
	var err error
	for attempt := 0; attempt < voteReplaceAttempts; attempt++ {
		var counts models.VoteCounts
		counts, err = r.replaceOnce(ctx, userID, studyID, helpful)
		if !errors.Is(err, ErrDuplicate) {
			return counts, err
		}
	}
	return models.VoteCounts{}, err
}

func (r *VoteRepository) replaceOnce(ctx context.Context, userID, studyID string, helpful bool) (counts models.VoteCounts, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin vote transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM votes WHERE user_id = $1 AND study_id = $2`, userID, studyID); err != nil {
		return counts, fmt.Errorf("delete vote: %w", err)
	}
	const insertQuery = `INSERT INTO votes (id, user_id, study_id, helpful, create_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.ExecContext(ctx, insertQuery, uuid.NewString(), userID, studyID, helpful, time.Now().UTC()); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return counts, err
		}
		return counts, fmt.Errorf("insert vote: %w", err)
	}
	if err = tx.GetContext(ctx, &counts, countVotesQuery, studyID); err != nil {
		return counts, fmt.Errorf("count votes: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return counts, fmt.Errorf("commit vote: %w", err)
	}
	return counts, nil
}

const countVotesQuery = `SELECT COUNT(*) FILTER (WHERE helpful) AS helpful, COUNT(*) FILTER (WHERE NOT helpful) AS unhelpful
FROM votes WHERE study_id = $1`

// Counts returns the helpful and unhelpful totals of a study.
func (r *VoteRepository) Counts(ctx context.Context, studyID string) (models.VoteCounts, error) {
	var counts models.VoteCounts
	if err := r.db.GetContext(ctx, &counts, countVotesQuery, studyID); err != nil {
		return counts, fmt.Errorf("count votes: %w", err)
	}
	return counts, nil
}

// FindUserVote returns the user's current vote on the study, or nil when there is none.
func (r *VoteRepository) FindUserVote(ctx context.Context, userID, studyID string) (*bool, error) {
	var helpful bool
	err := r.db.GetContext(ctx, &helpful, `SELECT helpful FROM votes WHERE user_id = $1 AND study_id = $2`, userID, studyID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find user vote: %w", err)
	}
	return &helpful, nil
}
