package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/internal/service"
	"github.com/noah-isme/research-archive-api/pkg/response"
)

type userService interface {
	Create(ctx context.Context, req service.CreateUserRequest, actor *models.JWTClaims) (*models.User, error)
	MyPage(ctx context.Context, actor *models.JWTClaims) (*dto.MyPage, error)
	MyStudies(ctx context.Context, actor *models.JWTClaims, page int) ([]dto.StudySummary, *models.Pagination, error)
	HelpfulStudies(ctx context.Context, actor *models.JWTClaims, page int) ([]dto.StudySummary, *models.Pagination, error)
	VisitedFiles(ctx context.Context, actor *models.JWTClaims, page int) ([]dto.FileView, *models.Pagination, error)
}

// UserHandler serves the signed-in user's pages and admin account creation.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// MyPage godoc
// @Summary My page
// @Description First entries of my studies, visited files and helpful studies
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me [get]
func (h *UserHandler) MyPage(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	page, err := h.service.MyPage(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page, nil)
}

// MyStudies godoc
// @Summary Studies I am credited on
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /me/studies [get]
func (h *UserHandler) MyStudies(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	studies, pagination, err := h.service.MyStudies(c.Request.Context(), claims, pageQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, studies, pagination)
}

// HelpfulStudies godoc
// @Summary Studies I voted helpful
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /me/helpful [get]
func (h *UserHandler) HelpfulStudies(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	studies, pagination, err := h.service.HelpfulStudies(c.Request.Context(), claims, pageQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, studies, pagination)
}

// VisitedFiles godoc
// @Summary Files I opened
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /me/visited [get]
func (h *UserHandler) VisitedFiles(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	files, pagination, err := h.service.VisitedFiles(c.Request.Context(), claims, pageQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, files, pagination)
}

// Create godoc
// @Summary Create user
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid user payload"))
		return
	}
	user, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}
