package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/middleware"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/internal/service"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
	"github.com/noah-isme/research-archive-api/pkg/response"
)

type fileService interface {
	Upload(ctx context.Context, studyID string, meta dto.FileUploadRequest, upload service.FileUpload, actor *models.JWTClaims) (*dto.FileView, error)
	Update(ctx context.Context, id string, req dto.FileEditRequest, actor *models.JWTClaims) (*dto.FileView, error)
	Get(ctx context.Context, id string, viewer *models.JWTClaims, sessionID string) (*dto.FileDetail, error)
	Preview(ctx context.Context, id, token string, viewer *models.JWTClaims, sessionID string) (*service.FileDownload, error)
}

// FileHandler serves uploads, file pages and signed previews.
type FileHandler struct {
	service fileService
}

// NewFileHandler constructs the handler.
func NewFileHandler(service fileService) *FileHandler {
	return &FileHandler{service: service}
}

// Upload godoc
// @Summary Upload a file to a study
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Study ID"
// @Param file formData file true "PDF, MP4 or PNG"
// @Param summary formData string false "Summary"
// @Param type formData int false "1 poster, 2 presentation, 3 report, 4 abstract"
// @Param pubyear formData int false "Publication year"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /studies/{id}/files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var meta dto.FileUploadRequest
	if err := c.ShouldBind(&meta); err != nil {
		response.Error(c, bindError(err, "invalid file payload"))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Validation("file", "file is required"))
		return
	}
	content, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer content.Close() //nolint:errcheck

	view, err := h.service.Upload(c.Request.Context(), c.Param("id"), meta, service.FileUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  content,
	}, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Get godoc
// @Summary File detail
// @Description Counts one access per session and returns a signed preview link
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c), middleware.SessionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Edit file metadata
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.FileEditRequest true "File metadata"
// @Success 200 {object} response.Envelope
// @Router /files/{id} [put]
func (h *FileHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.FileEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid file payload"))
		return
	}
	view, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Preview godoc
// @Summary Stream a stored file
// @Tags Files
// @Produce application/pdf
// @Produce video/mp4
// @Produce image/png
// @Param id path string true "File ID"
// @Param token query string true "Signed preview token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /files/{id}/preview [get]
func (h *FileHandler) Preview(c *gin.Context) {
	download, err := h.service.Preview(c.Request.Context(), c.Param("id"), c.Query("token"), claimsFromContext(c), middleware.SessionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	c.DataFromReader(http.StatusOK, download.SizeBytes, download.MimeType, download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf(`inline; filename="%s"`, download.Filename),
		"Cache-Control":       "private, max-age=0",
	})
}
