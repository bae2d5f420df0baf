package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/GKaszewski/k-notes/internal/auth"
	"github.com/GKaszewski/k-notes/internal/config"
	"github.com/GKaszewski/k-notes/internal/db"
	apihttp "github.com/GKaszewski/k-notes/internal/http"
	"github.com/GKaszewski/k-notes/internal/repository"
	"github.com/GKaszewski/k-notes/internal/service"
	"github.com/GKaszewski/k-notes/internal/session"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Secreto de último recurso para desarrollo local. Nunca pasa la política de
// secretos en producción.
const devFallbackSecret = "k-notes-dev-only-secret"

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.ApplySchema(ctx, pool); err != nil {
		logger.Fatal("apply schema", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	noteRepo := repository.NewPgNoteRepository(pool)
	tagRepo := repository.NewPgTagRepository(pool)

	sessionSecret := requireSecret(logger, cfg, "session", cfg.SessionSecret)

	var sessionStore session.Store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := redisClient.Ping(ctxPing).Err()
		cancel()
		if err != nil {
			logger.Fatal("redis ping failed", zap.Error(err))
		}
		sessionStore = session.NewRedisStore(redisClient, time.Duration(cfg.SessionTTLMin)*time.Minute)
	} else {
		if cfg.IsProduction() {
			logger.Fatal("REDIS_ADDR is required in production, in-memory sessions do not survive restarts")
		}
		logger.Warn("no redis configured, using in-memory session store")
		sessionStore = session.NewMemoryStore(time.Duration(cfg.SessionTTLMin) * time.Minute)
	}

	mode := cfg.AuthMode()

	var jwtCodec *auth.JWTCodec
	if mode.UsesJWT() {
		jwtSecret := requireSecret(logger, cfg, "jwt", cfg.JWTSecret)
		jwtCodec, err = auth.NewJWTCodec(auth.JWTConfig{
			Secret:      jwtSecret,
			Issuer:      cfg.JWTIssuer,
			Audience:    cfg.JWTAudience,
			ExpiryHours: cfg.JWTExpiryHours,
			Production:  cfg.IsProduction(),
		}, logger)
		if err != nil {
			logger.Fatal("jwt codec", zap.Error(err))
		}
	}

	var relyingParty *auth.RelyingParty
	if cfg.OIDCEnabled() {
		ctxDiscovery, cancel := context.WithTimeout(ctx, 15*time.Second)
		relyingParty, err = auth.NewRelyingParty(ctxDiscovery, auth.OIDCConfig{
			Issuer:       cfg.OIDCIssuer,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
			ResourceID:   cfg.OIDCResourceID,
		}, logger)
		cancel()
		if err != nil {
			logger.Fatal("oidc discovery", zap.Error(err))
		}
	}

	sessionAuth := auth.NewSessionAuth(sessionStore, userRepo)
	resolver := auth.NewResolver(mode, jwtCodec, userRepo, sessionAuth, logger)

	userSvc := service.NewUserService(logger, userRepo)
	noteSvc := service.NewNoteService(noteRepo, tagRepo)
	tagSvc := service.NewTagService(tagRepo)

	cookieCodec := session.NewCookieCodec(sessionSecret)
	authHandler := apihttp.NewAuthHandler(logger, cfg, userSvc, jwtCodec, sessionAuth, relyingParty)
	noteHandler := apihttp.NewNoteHandler(logger, noteSvc)
	tagHandler := apihttp.NewTagHandler(logger, tagSvc)
	dbPing := func(ctx context.Context) error { return db.Ping(ctx, pool) }
	router := apihttp.NewRouter(logger, cfg, cookieCodec, resolver, dbPing, authHandler, noteHandler, tagHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("auth_mode", string(mode)),
		zap.Bool("oidc_enabled", relyingParty != nil),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}

// requireSecret aplica la política de secretos al arrancar: débil en
// producción es fatal, fuera de producción se acepta con advertencia y un
// fallback de desarrollo cuando falta.
func requireSecret(logger *zap.Logger, cfg *config.Config, name, secret string) string {
	if secret == "" && !cfg.IsProduction() {
		logger.Warn("secret not configured, using insecure development fallback",
			zap.String("secret", name))
		secret = devFallbackSecret
	}
	if err := auth.ValidateSecret(secret, cfg.IsProduction()); err != nil {
		logger.Fatal("secret rejected by policy", zap.String("secret", name), zap.Error(err))
	}
	if len(secret) < auth.MinSecretLength {
		logger.Warn("secret shorter than recommended minimum, allowed outside production",
			zap.String("secret", name), zap.Int("min_bytes", auth.MinSecretLength))
	}
	return secret
}
