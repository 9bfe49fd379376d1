package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/research-archive-api/internal/models"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
)

func TestTagCreateReturnsStoredRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTagRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tags (id, name, tips, create_at)")).
		WithArgs(sqlmock.AnyArg(), "robotics", models.DefaultTagTips, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tips", "create_at"}).AddRow("t-existing", "robotics", "older tips", now))

	tag := &models.Tag{Name: "robotics", Tips: models.DefaultTagTips}
	require.NoError(t, repo.Create(context.Background(), tag))
	assert.Equal(t, "t-existing", tag.ID)
	assert.Equal(t, "older tips", tag.Tips)
}

func TestTagDeleteUnknown(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTagRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM study_tags").WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tags WHERE id = $1")).WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "t1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagSearchEscapesQuery(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTagRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE name ILIKE $1 OR tips ILIKE $1")).
		WithArgs(`%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tips", "create_at"}))

	tags, err := repo.Search(context.Background(), "50%")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestNewsListPaginates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNewsRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM news ORDER BY create_at DESC, id ASC LIMIT 10 OFFSET 10")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "raw_markdown", "content", "author_id", "create_at"}).
			AddRow("n1", "Hello", "# hi", "<h1>hi</h1>", nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM news")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].AuthorID)
	assert.Equal(t, 11, total)
}

func TestNewsDeleteUnknown(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNewsRepository(db)

	mock.ExpectExec("DELETE FROM news").WithArgs("n1").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "n1"), sql.ErrNoRows)
}

func TestHistoryRecordInsertsEachFile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHistoryRepository(db)

	at := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO file_preview (id, user_id, file_id, at)")).
		WithArgs(sqlmock.AnyArg(), "u1", "f1", at).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO file_preview (id, user_id, file_id, at)")).
		WithArgs(sqlmock.AnyArg(), "u1", "f2", at).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Record(context.Background(), HistoryPreview, "u1", []string{"f1", "f2"}, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryVisitedHidesGravedForPublic(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHistoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE fg.file_id IS NULL AND sg.study_id IS NULL ORDER BY h.last_at DESC")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(fileRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	files, total, err := repo.ListVisitedFiles(context.Background(), "u1", false, 1, 5)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCounterWithoutRedis(t *testing.T) {
	repo := NewSessionCounterRepository(nil, time.Hour)
	ctx := context.Background()

	first, err := repo.Mark(ctx, "sess", HistoryAccess, "f1")
	require.NoError(t, err)
	second, err := repo.Mark(ctx, "sess", HistoryAccess, "f1")
	require.NoError(t, err)
	other, err := repo.Mark(ctx, "sess", HistoryPreview, "f1")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.True(t, other)

	ids, err := repo.Members(ctx, "sess", HistoryAccess)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, ids)
}

func TestSessionCounterWithoutRedisExpires(t *testing.T) {
	repo := NewSessionCounterRepository(nil, 10*time.Millisecond)
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }
	ctx := context.Background()

	first, err := repo.Mark(ctx, "sess", HistoryAccess, "f1")
	require.NoError(t, err)
	require.True(t, first)
	_, err = repo.Mark(ctx, "other", HistoryAccess, "f9")
	require.NoError(t, err)

	clock = clock.Add(5 * time.Millisecond)
	again, err := repo.Mark(ctx, "sess", HistoryAccess, "f1")
	require.NoError(t, err)
	assert.False(t, again)

	clock = clock.Add(30 * time.Millisecond)
	ids, err := repo.Members(ctx, "sess", HistoryAccess)
	require.NoError(t, err)
	assert.Empty(t, ids)

	fresh, err := repo.Mark(ctx, "sess", HistoryAccess, "f1")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Len(t, repo.local, 1)
}

func TestCacheWithoutRedisAlwaysMisses(t *testing.T) {
	repo := NewCacheRepository(nil, "archive:", nil)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "home", map[string]int{"a": 1}, time.Minute))
	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "home", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Delete(ctx, "home"))
	assert.NoError(t, repo.Close())
}
