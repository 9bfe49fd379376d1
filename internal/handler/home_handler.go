package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/middleware"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
	"github.com/noah-isme/research-archive-api/pkg/response"
)

type homeService interface {
	Home(ctx context.Context) (*dto.HomeView, bool, error)
}

// HomeHandler serves the landing page widgets.
type HomeHandler struct {
	service homeService
}

// NewHomeHandler constructs the handler.
func NewHomeHandler(service homeService) *HomeHandler {
	return &HomeHandler{service: service}
}

// Home godoc
// @Summary Home page
// @Description Access, preview and helpful rankings plus recent news
// @Tags Home
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /home [get]
func (h *HomeHandler) Home(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	view, cacheHit, err := h.service.Home(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}
