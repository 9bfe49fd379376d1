package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/research-archive-api/api/swagger"
	"github.com/noah-isme/research-archive-api/internal/handler"
	"github.com/noah-isme/research-archive-api/internal/middleware"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/internal/service"
	"github.com/noah-isme/research-archive-api/pkg/config"
	"github.com/noah-isme/research-archive-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/research-archive-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/research-archive-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	auth       *handler.AuthHandler
	users      *handler.UserHandler
	home       *handler.HomeHandler
	search     *handler.SearchHandler
	studies    *handler.StudyHandler
	files      *handler.FileHandler
	tags       *handler.TagHandler
	news       *handler.NewsHandler
	moderation *handler.ModerationHandler
	metrics    *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, authSvc *service.AuthService, h routeHandlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.Use(middleware.Session(cfg.Session.CookieName, cfg.Session.TTL))
	api.Use(middleware.OptionalJWT(authSvc))

	api.POST("/auth/login", h.auth.Login)
	api.POST("/convert", h.news.Convert)

	api.GET("/home", h.home.Home)
	api.GET("/search", h.search.Search)
	api.GET("/search/export", h.search.Export)

	api.GET("/studies/:id", h.studies.Get)
	api.GET("/files/:id", h.files.Get)
	api.GET("/files/:id/preview", h.files.Preview)
	api.GET("/tags", h.tags.List)
	api.GET("/tags/search", h.tags.Search)
	api.GET("/tags/:id", h.tags.Get)
	api.GET("/news", h.news.List)
	api.GET("/news/:id", h.news.Get)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	secured.POST("/auth/password", h.auth.ChangePassword)

	secured.POST("/studies", h.studies.Create)
	secured.PUT("/studies/:id", h.studies.Update)
	secured.POST("/studies/:id/authors", h.studies.AddAuthor)
	secured.DELETE("/studies/:id/authors/:userId", h.studies.RemoveAuthor)
	secured.POST("/studies/:id/files", h.files.Upload)
	secured.POST("/studies/:id/votes", h.studies.Vote)
	secured.PUT("/files/:id", h.files.Update)

	secured.GET("/me", h.users.MyPage)
	secured.GET("/me/studies", h.users.MyStudies)
	secured.GET("/me/visited", h.users.VisitedFiles)
	secured.GET("/me/helpful", h.users.HelpfulStudies)

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/users", h.users.Create)
	admin.POST("/news", h.news.Create)
	admin.PUT("/tags/:id", h.tags.Update)
	admin.POST("/moderation", h.moderation.Moderate)
	admin.GET("/stats", h.metrics.Stats)

	return r
}
