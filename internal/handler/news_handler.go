package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
	"github.com/noah-isme/research-archive-api/pkg/response"
)

type newsService interface {
	List(ctx context.Context, page int) ([]dto.NewsView, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.NewsView, error)
	Create(ctx context.Context, req dto.NewsRequest, actor *models.JWTClaims) (*dto.NewsView, error)
}

type markdownConverter interface {
	Render(source string) (string, error)
}

// NewsHandler serves announcements and the markdown preview endpoint.
type NewsHandler struct {
	service  newsService
	markdown markdownConverter
}

// NewNewsHandler constructs the handler.
func NewNewsHandler(service newsService, markdown markdownConverter) *NewsHandler {
	return &NewsHandler{service: service, markdown: markdown}
}

// List godoc
// @Summary List news
// @Tags News
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /news [get]
func (h *NewsHandler) List(c *gin.Context) {
	items, pagination, err := h.service.List(c.Request.Context(), pageQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary News detail
// @Tags News
// @Produce json
// @Param id path string true "News ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /news/{id} [get]
func (h *NewsHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Publish news
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.NewsRequest true "News"
// @Success 201 {object} response.Envelope
// @Router /admin/news [post]
func (h *NewsHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.NewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid news payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Convert godoc
// @Summary Render markdown
// @Description Returns sanitized HTML without storing anything
// @Tags Markdown
// @Accept json
// @Produce json
// @Param payload body dto.ConvertRequest true "Markdown"
// @Success 200 {object} response.Envelope
// @Router /convert [post]
func (h *NewsHandler) Convert(c *gin.Context) {
	var req dto.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid markdown payload"))
		return
	}
	html, err := h.markdown.Render(req.Markdown)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render markdown"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"html": html}, nil)
}
