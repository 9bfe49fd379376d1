package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/middleware"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/internal/service"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
)

type fakeFileSrv struct {
	meta      dto.FileUploadRequest
	filename  string
	body      []byte
	sessionID string
	token     string
	download  *service.FileDownload
}

func (f *fakeFileSrv) Upload(_ context.Context, studyID string, meta dto.FileUploadRequest, upload service.FileUpload, _ *models.JWTClaims) (*dto.FileView, error) {
	f.meta = meta
	f.filename = upload.Filename
	body, err := io.ReadAll(upload.Content)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &dto.FileView{ID: "f1", StudyID: studyID, Name: upload.Filename}, nil
}

func (f *fakeFileSrv) Update(_ context.Context, id string, req dto.FileEditRequest, _ *models.JWTClaims) (*dto.FileView, error) {
	return &dto.FileView{ID: id, Summary: req.Summary}, nil
}

func (f *fakeFileSrv) Get(_ context.Context, id string, _ *models.JWTClaims, sessionID string) (*dto.FileDetail, error) {
	f.sessionID = sessionID
	return &dto.FileDetail{FileView: dto.FileView{ID: id}, PreviewURL: "/api/v1/files/" + id + "/preview?token=t"}, nil
}

func (f *fakeFileSrv) Preview(_ context.Context, _ string, token string, _ *models.JWTClaims, _ string) (*service.FileDownload, error) {
	f.token = token
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid preview token")
	}
	return f.download, nil
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/studies/s1/files", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestFileHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeFileSrv{}
	handler := NewFileHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = multipartRequest(t, map[string]string{"summary": "poster", "type": "1", "pubyear": "2023"}, "poster.pdf", []byte("%PDF-1.4"))
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	c.Set(middleware.ContextUserKey, studentClaims())

	handler.Upload(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "poster.pdf", srv.filename)
	assert.Equal(t, []byte("%PDF-1.4"), srv.body)
	assert.Equal(t, "poster", srv.meta.Summary)
	assert.Equal(t, 1, srv.meta.Type)
	require.NotNil(t, srv.meta.PubYear)
	assert.Equal(t, 2023, *srv.meta.PubYear)
}

func TestFileHandlerUploadRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewFileHandler(&fakeFileSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = multipartRequest(t, map[string]string{"summary": "poster"}, "", nil)
	c.Set(middleware.ContextUserKey, studentClaims())

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileHandlerGetPassesSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeFileSrv{}
	handler := NewFileHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/f1", nil)
	c.Params = gin.Params{{Key: "id", Value: "f1"}}
	c.Set(middleware.ContextSessionKey, "sess-9")

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-9", srv.sessionID)
}

func TestFileHandlerPreview(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "poster.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 body"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	srv := &fakeFileSrv{download: &service.FileDownload{File: file, Filename: "poster.pdf", MimeType: "application/pdf", SizeBytes: 13}}
	handler := NewFileHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/f1/preview?token=good", nil)
	c.Params = gin.Params{{Key: "id", Value: "f1"}}
	handler.Preview(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="poster.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4 body", rec.Body.String())

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/f1/preview?token=bad", nil)
	handler.Preview(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
