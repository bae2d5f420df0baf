package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GKaszewski/k-notes/internal/auth"
	"github.com/GKaszewski/k-notes/internal/config"
	"github.com/GKaszewski/k-notes/internal/session"
)

// NewRouter configura el router de Gin con middlewares y rutas. dbPing puede
// ser nil cuando no hay base que chequear (tests).
func NewRouter(
	logger *zap.Logger,
	cfg *config.Config,
	cookieCodec *session.CookieCodec,
	resolver *auth.Resolver,
	dbPing func(context.Context) error,
	authH *AuthHandler,
	noteH *NoteHandler,
	tagH *TagHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	v1 := r.Group("/api/v1")

	v1.GET("/health", func(c *gin.Context) {
		if dbPing != nil {
			if err := dbPing(c.Request.Context()); err != nil {
				logger.Error("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1.Use(sessionMiddleware(cookieCodec, cfg.SecureCookie))

	// Descubrimiento de capacidades para el frontend.
	v1.GET("/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"auth_mode":          string(cfg.AuthMode()),
			"oidc_enabled":       cfg.OIDCEnabled(),
			"allow_registration": cfg.AllowRegistration,
		})
	})

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authH.Register)
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/logout", authH.Logout)
	authGroup.GET("/me", RequireUser(resolver, logger), authH.Me)
	authGroup.GET("/oidc/login", authH.OIDCLogin)
	authGroup.GET("/oidc/callback", authH.OIDCCallback)

	protected := v1.Group("", RequireUser(resolver, logger))
	protected.GET("/notes", noteH.ListNotes)
	protected.POST("/notes", noteH.CreateNote)
	protected.GET("/notes/:id", noteH.GetNote)
	protected.PATCH("/notes/:id", noteH.UpdateNote)
	protected.DELETE("/notes/:id", noteH.DeleteNote)
	protected.GET("/notes/:id/versions", noteH.ListNoteVersions)
	protected.GET("/search", noteH.SearchNotes)
	protected.GET("/export", noteH.ExportData)
	protected.POST("/import", noteH.ImportData)
	protected.GET("/tags", tagH.ListTags)
	protected.POST("/tags", tagH.CreateTag)
	protected.PATCH("/tags/:id", tagH.RenameTag)
	protected.DELETE("/tags/:id", tagH.DeleteTag)

	return r
}
