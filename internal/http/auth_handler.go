package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GKaszewski/k-notes/internal/auth"
	"github.com/GKaszewski/k-notes/internal/config"
	"github.com/GKaszewski/k-notes/internal/domain"
	"github.com/GKaszewski/k-notes/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de autenticación.
type AuthHandler struct {
	logger            *zap.Logger
	mode              config.AuthMode
	allowRegistration bool
	frontendURL       string
	userServ          *service.UserService
	jwtCodec          *auth.JWTCodec
	sessions          *auth.SessionAuth
	oidc              *auth.RelyingParty
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
// jwtCodec y oidc pueden ser nil cuando la capacidad no está configurada.
func NewAuthHandler(
	logger *zap.Logger,
	cfg *config.Config,
	userServ *service.UserService,
	jwtCodec *auth.JWTCodec,
	sessions *auth.SessionAuth,
	oidc *auth.RelyingParty,
) *AuthHandler {
	return &AuthHandler{
		logger:            logger,
		mode:              cfg.AuthMode(),
		allowRegistration: cfg.AllowRegistration,
		frontendURL:       cfg.FrontendURL,
		userServ:          userServ,
		jwtCodec:          jwtCodec,
		sessions:          sessions,
		oidc:              oidc,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	if !h.allowRegistration {
		c.JSON(http.StatusForbidden, gin.H{"error": "registration is disabled"})
		return
	}

	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.userServ.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		default:
			h.logger.Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
		}
		return
	}

	h.loginResponse(c, http.StatusCreated, user)
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), domain.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		return
	}

	h.loginResponse(c, http.StatusOK, user)
}

// Logout maneja POST /auth/logout. Idempotente.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), SessionID(c)); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not logout"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Me maneja GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// OIDCLogin maneja GET /auth/oidc/login: fase de inicio del flujo.
func (h *AuthHandler) OIDCLogin(c *gin.Context) {
	if h.oidc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "oidc not enabled"})
		return
	}

	req, err := h.oidc.BeginAuthorization()
	if err != nil {
		h.logger.Error("begin oidc authorization failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start login"})
		return
	}

	if err := h.sessions.PutFlowState(c.Request.Context(), SessionID(c), req.FlowState); err != nil {
		h.logger.Error("persist oidc flow state failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start login"})
		return
	}

	c.Header("Cache-Control", "no-store, no-cache")
	c.Header("Pragma", "no-cache")
	c.Redirect(http.StatusFound, req.URL)
}

// OIDCCallback maneja GET /auth/oidc/callback. Los valores de flujo se sacan
// de la sesión antes de resolver y no se reponen nunca: un replay del
// callback se encuentra con la sesión vacía y muere en el chequeo de state.
func (h *AuthHandler) OIDCCallback(c *gin.Context) {
	if h.oidc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "oidc not enabled"})
		return
	}

	ctx := c.Request.Context()
	stored, err := h.sessions.PopFlowState(ctx, SessionID(c))
	if err != nil {
		h.logger.Error("read oidc flow state failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	oidcUser, err := h.oidc.ResolveCallback(ctx, c.Query("code"), c.Query("state"), stored)
	if err != nil {
		// El detalle (state, nonce, at_hash, intercambio) no distingue la
		// respuesta: todos son el mismo rechazo.
		h.logger.Debug("oidc callback rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	user, err := h.userServ.ResolveExternal(ctx, oidcUser.Subject, oidcUser.Email)
	if err != nil {
		h.logger.Error("resolve external identity failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete login"})
		return
	}

	if h.mode.UsesSession() {
		if err := h.sessions.Login(ctx, SessionID(c), user); err != nil {
			h.logger.Error("session login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete login"})
			return
		}
	}

	redirect := h.frontendURL
	if h.mode.UsesJWT() && h.jwtCodec != nil {
		token, err := h.jwtCodec.Mint(user)
		if err != nil {
			h.logger.Error("mint jwt failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete login"})
			return
		}
		// El token viaja en el fragment, nunca como query: los fragments no
		// llegan a logs de servidores ni a headers Referer.
		redirect += "#access_token=" + token
	}

	c.Redirect(http.StatusFound, redirect)
}

// loginResponse arma la respuesta de login según el modo configurado. En modo
// both se emite un JWT además del cookie; ese token no tiene camino de
// revocación y sigue siendo válido aunque la sesión se cierre después,
// limitación conocida de los tokens sin estado.
func (h *AuthHandler) loginResponse(c *gin.Context, status int, user domain.User) {
	body := gin.H{}

	if h.mode.UsesSession() {
		if err := h.sessions.Login(c.Request.Context(), SessionID(c), user); err != nil {
			h.logger.Error("session login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
			return
		}
		body["user"] = user
	}

	if h.mode.UsesJWT() {
		if h.jwtCodec == nil {
			h.logger.Error("jwt mode selected but codec not configured")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
			return
		}
		token, err := h.jwtCodec.Mint(user)
		if err != nil {
			h.logger.Error("mint jwt failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
			return
		}
		body["access_token"] = token
		body["token_type"] = "Bearer"
		body["expires_in"] = h.jwtCodec.ExpirySeconds()
	}

	c.JSON(status, body)
}
