package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectVoteReplace(mock sqlmock.Sqlmock, helpful bool, counts *sqlmock.Rows) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM votes WHERE user_id = $1 AND study_id = $2")).
		WithArgs("u1", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO votes (id, user_id, study_id, helpful, create_at)")).
		WithArgs(sqlmock.AnyArg(), "u1", "s1", helpful, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE helpful)")).
		WithArgs("s1").
		WillReturnRows(counts)
	mock.ExpectCommit()
}

func TestVoteReplaceLastVoteWins(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	expectVoteReplace(mock, true, sqlmock.NewRows([]string{"helpful", "unhelpful"}).AddRow(1, 0))
	expectVoteReplace(mock, false, sqlmock.NewRows([]string{"helpful", "unhelpful"}).AddRow(0, 1))
	expectVoteReplace(mock, true, sqlmock.NewRows([]string{"helpful", "unhelpful"}).AddRow(1, 0))

	ctx := context.Background()
	_, err := repo.Replace(ctx, "u1", "s1", true)
	require.NoError(t, err)
	_, err = repo.Replace(ctx, "u1", "s1", false)
	require.NoError(t, err)
	counts, err := repo.Replace(ctx, "u1", "s1", true)
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Helpful)
	assert.Equal(t, 0, counts.Unhelpful)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteReplaceRetriesOnUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM votes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO votes").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()
	expectVoteReplace(mock, true, sqlmock.NewRows([]string{"helpful", "unhelpful"}).AddRow(3, 1))

	counts, err := repo.Replace(context.Background(), "u1", "s1", true)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Helpful)
	assert.Equal(t, 2, counts.Score())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserVoteNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	mock.ExpectQuery("SELECT helpful FROM votes").WithArgs("u1", "s1").WillReturnError(sql.ErrNoRows)

	vote, err := repo.FindUserVote(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Nil(t, vote)
}
