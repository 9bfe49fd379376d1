package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/pkg/response"
)

type studyService interface {
	Get(ctx context.Context, id string, viewer *models.JWTClaims) (*dto.StudyDetail, error)
	Create(ctx context.Context, req dto.StudyRequest, actor *models.JWTClaims) (*dto.StudyDetail, error)
	Update(ctx context.Context, id string, req dto.StudyRequest, actor *models.JWTClaims) (*dto.StudyDetail, error)
	AddAuthor(ctx context.Context, studyID, userID string, actor *models.JWTClaims) error
	RemoveAuthor(ctx context.Context, studyID, userID string, actor *models.JWTClaims) error
}

type voteService interface {
	Cast(ctx context.Context, studyID string, helpful bool, actor *models.JWTClaims) (*dto.VoteResult, error)
}

// StudyHandler exposes study pages, editing, authorship and votes.
type StudyHandler struct {
	studies studyService
	votes   voteService
}

// NewStudyHandler constructs the handler.
func NewStudyHandler(studies studyService, votes voteService) *StudyHandler {
	return &StudyHandler{studies: studies, votes: votes}
}

// Get godoc
// @Summary Study detail
// @Tags Studies
// @Produce json
// @Param id path string true "Study ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /studies/{id} [get]
func (h *StudyHandler) Get(c *gin.Context) {
	detail, err := h.studies.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create study
// @Tags Studies
// @Accept json
// @Produce json
// @Param payload body dto.StudyRequest true "Study payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /studies [post]
func (h *StudyHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.StudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid study payload"))
		return
	}
	detail, err := h.studies.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Update study
// @Tags Studies
// @Accept json
// @Produce json
// @Param id path string true "Study ID"
// @Param payload body dto.StudyRequest true "Study payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /studies/{id} [put]
func (h *StudyHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.StudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid study payload"))
		return
	}
	detail, err := h.studies.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// AddAuthor godoc
// @Summary Credit an author
// @Tags Studies
// @Accept json
// @Param id path string true "Study ID"
// @Param payload body dto.AuthorRequest true "Author"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /studies/{id}/authors [post]
func (h *StudyHandler) AddAuthor(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.AuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid author payload"))
		return
	}
	if err := h.studies.AddAuthor(c.Request.Context(), c.Param("id"), req.UserID, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveAuthor godoc
// @Summary Withdraw an author
// @Tags Studies
// @Param id path string true "Study ID"
// @Param userId path string true "User ID"
// @Success 204
// @Router /studies/{id}/authors/{userId} [delete]
func (h *StudyHandler) RemoveAuthor(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.studies.RemoveAuthor(c.Request.Context(), c.Param("id"), c.Param("userId"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Vote godoc
// @Summary Vote on a study
// @Description Replaces the caller's previous vote
// @Tags Studies
// @Accept json
// @Produce json
// @Param id path string true "Study ID"
// @Param payload body dto.VoteRequest true "Vote"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /studies/{id}/votes [post]
func (h *StudyHandler) Vote(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Helpful == nil {
		response.Error(c, bindError(err, "helpful is required"))
		return
	}
	result, err := h.votes.Cast(c.Request.Context(), c.Param("id"), *req.Helpful, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
