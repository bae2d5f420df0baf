package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GKaszewski/k-notes/internal/auth"
	"github.com/GKaszewski/k-notes/internal/domain"
	"github.com/GKaszewski/k-notes/internal/session"
)

const (
	sessionIDKey   = "session_id"
	currentUserKey = "current_user"
)

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

// sessionMiddleware resuelve el id de sesión del cookie de transporte,
// emitiendo uno nuevo cuando falta o la firma no valida.
func sessionMiddleware(codec *session.CookieCodec, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(session.CookieName); err == nil {
			if sid, ok := codec.Decode(raw); ok {
				c.Set(sessionIDKey, sid)
				c.Next()
				return
			}
		}

		sid, err := session.NewID()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			c.Abort()
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(session.CookieName, codec.Encode(sid),
			int(session.DefaultTTL.Seconds()), "/", "", secure, true)
		c.Set(sessionIDKey, sid)
		c.Next()
	}
}

// SessionID devuelve el id de sesión puesto por el middleware.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// RequireUser resuelve la identidad del request con el resolver configurado y
// la deja en el contexto. Todo rechazo de autenticación responde el mismo
// cuerpo genérico.
func RequireUser(resolver *auth.Resolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolver.Resolve(c.Request.Context(), auth.Request{
			AuthorizationHeader: c.GetHeader("Authorization"),
			SessionID:           SessionID(c),
		})
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			} else {
				logger.Error("identity resolution failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			c.Abort()
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// GetCurrentUser obtiene el usuario resuelto desde el contexto.
func GetCurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}
