package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-archive-api/internal/middleware"
	"github.com/noah-isme/research-archive-api/internal/models"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
	"github.com/noah-isme/research-archive-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims writes 401 and returns nil when the request is anonymous.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return claims
}

func pageQuery(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	if page > models.MaxPage {
		return models.MaxPage
	}
	return page
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
