package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/pkg/response"
)

type moderationService interface {
	Moderate(ctx context.Context, req dto.ModerationRequest, actor *models.JWTClaims) (*dto.ModerationResult, error)
}

// ModerationHandler exposes the unpublish/delete action.
type ModerationHandler struct {
	service moderationService
}

// NewModerationHandler constructs the handler.
func NewModerationHandler(service moderationService) *ModerationHandler {
	return &ModerationHandler{service: service}
}

// Moderate godoc
// @Summary Unpublish or delete a record
// @Description STUDY and FILE get a grave (unpublished, then deleted); NEWS and TAG are removed
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.ModerationRequest true "Moderation"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/moderation [post]
func (h *ModerationHandler) Moderate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid moderation payload"))
		return
	}
	result, err := h.service.Moderate(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
