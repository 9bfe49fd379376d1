package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/pkg/response"
)

type tagService interface {
	List(ctx context.Context) ([]models.Tag, error)
	Search(ctx context.Context, query string) ([]models.Tag, error)
	Get(ctx context.Context, id string, page int, viewer *models.JWTClaims) (*dto.TagDetail, *models.Pagination, error)
	Update(ctx context.Context, id string, req dto.TagUpdateRequest, actor *models.JWTClaims) (*models.Tag, error)
}

// TagHandler serves tag listings and admin edits.
type TagHandler struct {
	service tagService
}

// NewTagHandler constructs the handler.
func NewTagHandler(service tagService) *TagHandler {
	return &TagHandler{service: service}
}

// List godoc
// @Summary List tags
// @Tags Tags
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tags [get]
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tags, nil)
}

// Search godoc
// @Summary Search tags
// @Tags Tags
// @Produce json
// @Param query query string false "Matches name or tips"
// @Success 200 {object} response.Envelope
// @Router /tags/search [get]
func (h *TagHandler) Search(c *gin.Context) {
	tags, err := h.service.Search(c.Request.Context(), c.Query("query"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tags, nil)
}

// Get godoc
// @Summary Tag detail
// @Tags Tags
// @Produce json
// @Param id path string true "Tag ID"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tags/{id} [get]
func (h *TagHandler) Get(c *gin.Context) {
	detail, pagination, err := h.service.Get(c.Request.Context(), c.Param("id"), pageQuery(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, pagination)
}

// Update godoc
// @Summary Edit a tag
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Tag ID"
// @Param payload body dto.TagUpdateRequest true "Tag"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/tags/{id} [put]
func (h *TagHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.TagUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid tag payload"))
		return
	}
	tag, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tag, nil)
}
