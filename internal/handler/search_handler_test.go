package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/research-archive-api/internal/middleware"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/internal/service"
)

type fakeSearchSrv struct {
	last   models.SearchParams
	result *models.SearchResult
	err    error
}

func (f *fakeSearchSrv) Search(_ context.Context, params models.SearchParams) (*models.SearchResult, error) {
	f.last = params
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeExporter struct {
	format string
}

func (f *fakeExporter) ExportSearch(_ context.Context, _ models.SearchParams, format string) (*service.ExportResult, error) {
	f.format = format
	return &service.ExportResult{Filename: "search.csv", ContentType: "text/csv", Data: []byte("name\nalpha\n")}, nil
}

func newSearchContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, rec
}

func TestSearchHandlerParsesQuery(t *testing.T) {
	srv := &fakeSearchSrv{result: &models.SearchResult{
		Title:      "Results for: alpha",
		Studies:    []models.StudyWithFiles{{StudyRecord: models.StudyRecord{Study: models.Study{ID: "s1", Name: "Alpha"}}}},
		Pagination: &models.Pagination{Page: 2, PageSize: 5, TotalCount: 6, TotalPages: 2},
	}}
	handler := NewSearchHandler(srv, &fakeExporter{})

	c, rec := newSearchContext("/search?query=alpha&field=2&ascending=false&sort_column=create_at&page=2&pp=5&create_date_start=2024-01-10")
	handler.Search(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alpha", srv.last.Query)
	assert.Equal(t, 2, srv.last.Field)
	assert.False(t, srv.last.Ascending)
	assert.Equal(t, models.SortCreateAt, srv.last.SortColumn)
	assert.Equal(t, 2, srv.last.Page)
	assert.Equal(t, 5, srv.last.PerPage)
	assert.False(t, srv.last.Admin)
	assert.Nil(t, srv.last.UpdateAtRange)
	require.NotNil(t, srv.last.CreateAtRange)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), srv.last.CreateAtRange.Start)
	assert.Equal(t, 9999, srv.last.CreateAtRange.End.Year())

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "Results for: alpha", envelope.Data["title"])
	assert.Len(t, envelope.Data["studies"], 1)
}

func TestSearchHandlerDefaults(t *testing.T) {
	srv := &fakeSearchSrv{result: &models.SearchResult{Pagination: &models.Pagination{Page: 1}}}
	handler := NewSearchHandler(srv, &fakeExporter{})

	c, rec := newSearchContext("/search?update_date_end=2024-02-01")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Roles: []models.RoleName{models.RoleAdmin}})
	handler.Search(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, srv.last.Ascending)
	assert.True(t, srv.last.Admin)
	assert.Equal(t, 1, srv.last.Page)
	require.NotNil(t, srv.last.UpdateAtRange)
	assert.Equal(t, 1, srv.last.UpdateAtRange.Start.Year())
	assert.Equal(t, time.Date(2024, 2, 1, 23, 59, 59, 999999000, time.UTC), srv.last.UpdateAtRange.End)
	assert.Equal(t, srv.last.UpdateAtRange.End, srv.last.UpdateAtRange.End.Truncate(time.Microsecond))
}

func TestSearchHandlerClampsHugePage(t *testing.T) {
	cases := map[string]int{
		"/search?page=9223372036854775807":  models.MaxPage,
		"/search?page=99999999999999999999": 1,
		"/search?page=-3":                   1,
	}
	for target, want := range cases {
		srv := &fakeSearchSrv{result: &models.SearchResult{Pagination: &models.Pagination{Page: 1}}}
		c, rec := newSearchContext(target)
		NewSearchHandler(srv, &fakeExporter{}).Search(c)

		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, want, srv.last.Page, target)
	}
}

func TestSearchHandlerRejectsBadParams(t *testing.T) {
	cases := []string{
		"/search?field=4",
		"/search?field=x",
		"/search?ascending=maybe",
		"/search?pp=ten",
		"/search?create_date_start=2024/01/01",
	}
	for _, target := range cases {
		srv := &fakeSearchSrv{}
		handler := NewSearchHandler(srv, &fakeExporter{})
		c, rec := newSearchContext(target)
		handler.Search(c)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSearchHandlerExport(t *testing.T) {
	exporter := &fakeExporter{}
	handler := NewSearchHandler(&fakeSearchSrv{}, exporter)

	c, rec := newSearchContext("/search/export?format=csv&query=alpha")
	handler.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, `attachment; filename="search.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "alpha")
}
