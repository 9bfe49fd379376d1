package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/research-archive-api/internal/models"
)

func newGraveRepo(t *testing.T) (*GraveRepository, sqlmock.Sqlmock, func()) {
	db, mock, cleanup := newMock(t)
	repo := NewGraveRepository(db)
	repo.now = func() time.Time { return time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC) }
	return repo, mock, cleanup
}

func expectLockedStudy(mock sqlmock.Sqlmock, id string) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM studies WHERE id = $1 FOR UPDATE")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
}

func graveRows(reason string, deleted bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"reason", "deleted", "create_at"}).AddRow(reason, deleted, time.Now())
}

func TestGraveApplyUnpublishesFreshStudy(t *testing.T) {
	repo, mock, cleanup := newGraveRepo(t)
	defer cleanup()

	expectLockedStudy(mock, "s1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT reason, deleted, create_at FROM study_graves WHERE study_id = $1 FOR UPDATE")).
		WithArgs("s1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO study_graves (study_id, reason, deleted, create_at)")).
		WithArgs("s1", "spam", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	purged := false
	grave, err := repo.Apply(context.Background(), models.GraveTargetStudy, "s1", "spam", false, func() error {
		purged = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, grave.Deleted)
	assert.False(t, purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraveApplyRejectsSecondUnpublish(t *testing.T) {
	repo, mock, cleanup := newGraveRepo(t)
	defer cleanup()

	expectLockedStudy(mock, "s1")
	mock.ExpectQuery("FROM study_graves").WithArgs("s1").WillReturnRows(graveRows("spam", false))
	mock.ExpectRollback()

	_, err := repo.Apply(context.Background(), models.GraveTargetStudy, "s1", "again", false, nil)
	assert.ErrorIs(t, err, models.ErrGraveUnpublished)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraveApplyDeletesUnpublishedAndPurges(t *testing.T) {
	repo, mock, cleanup := newGraveRepo(t)
	defer cleanup()

	expectLockedStudy(mock, "s1")
	mock.ExpectQuery("FROM study_graves").WithArgs("s1").WillReturnRows(graveRows("spam", false))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE study_graves SET reason = $2, deleted = $3 WHERE study_id = $1")).
		WithArgs("s1", "gone", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	purged := false
	grave, err := repo.Apply(context.Background(), models.GraveTargetStudy, "s1", "gone", true, func() error {
		purged = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, grave.Deleted)
	assert.True(t, purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraveApplyDeletedIsTerminal(t *testing.T) {
	repo, mock, cleanup := newGraveRepo(t)
	defer cleanup()

	expectLockedStudy(mock, "s1")
	mock.ExpectQuery("FROM study_graves").WithArgs("s1").WillReturnRows(graveRows("gone", true))
	mock.ExpectRollback()

	_, err := repo.Apply(context.Background(), models.GraveTargetStudy, "s1", "x", true, nil)
	assert.ErrorIs(t, err, models.ErrGraveDeleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraveApplyRollsBackWhenPurgeFails(t *testing.T) {
	repo, mock, cleanup := newGraveRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM files WHERE id = $1 FOR UPDATE")).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("f1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM file_graves WHERE file_id = $1 FOR UPDATE")).
		WithArgs("f1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO file_graves")).
		WithArgs("f1", "copyright", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	diskErr := errors.New("permission denied")
	_, err := repo.Apply(context.Background(), models.GraveTargetFile, "f1", "copyright", true, func() error {
		return diskErr
	})
	assert.ErrorIs(t, err, diskErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraveApplyUnknownRecord(t *testing.T) {
	repo, mock, cleanup := newGraveRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM studies").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Apply(context.Background(), models.GraveTargetStudy, "missing", "x", false, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
