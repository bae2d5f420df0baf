package config

import (
	"strings"

	"github.com/caarlos0/env/v10"
)

// AuthMode determina qué mecanismos de autenticación acepta la API.
type AuthMode string

const (
	AuthModeSession AuthMode = "session"
	AuthModeJWT     AuthMode = "jwt"
	AuthModeBoth    AuthMode = "both"
)

// ParseAuthMode interpreta el valor configurado; valores desconocidos caen en session.
func ParseAuthMode(s string) AuthMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jwt":
		return AuthModeJWT
	case "both":
		return AuthModeBoth
	default:
		return AuthModeSession
	}
}

// UsesJWT indica si el modo intenta resolver tokens Bearer.
func (m AuthMode) UsesJWT() bool {
	return m == AuthModeJWT || m == AuthModeBoth
}

// UsesSession indica si el modo intenta resolver la sesión de navegador.
func (m AuthMode) UsesSession() bool {
	return m == AuthModeSession || m == AuthModeBoth
}

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	AllowRegistration bool `env:"ALLOW_REGISTRATION" envDefault:"true"`

	AuthModeRaw   string `env:"AUTH_MODE" envDefault:"session"`
	SessionSecret string `env:"SESSION_SECRET"`
	SessionTTLMin int    `env:"SESSION_TTL_MINUTES" envDefault:"10080"`
	SecureCookie  bool   `env:"SECURE_COOKIE" envDefault:"false"`

	JWTSecret      string `env:"JWT_SECRET"`
	JWTIssuer      string `env:"JWT_ISSUER"`
	JWTAudience    string `env:"JWT_AUDIENCE"`
	JWTExpiryHours int    `env:"JWT_EXPIRY_HOURS" envDefault:"24"`

	OIDCIssuer       string `env:"OIDC_ISSUER"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `env:"OIDC_REDIRECT_URL"`
	OIDCResourceID   string `env:"OIDC_RESOURCE_ID"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AuthMode devuelve el modo de autenticación ya parseado.
func (c *Config) AuthMode() AuthMode {
	return ParseAuthMode(c.AuthModeRaw)
}

// IsProduction indica si el proceso corre en modo producción.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// OIDCEnabled indica si hay un proveedor OIDC configurado.
func (c *Config) OIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != "" && c.OIDCRedirectURL != ""
}
