package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/GKaszewski/k-notes/internal/domain"
)

// JWTCodec emite y valida bearer tokens HS256 sin estado. No existe lista de
// revocación: un token emitido vale hasta su expiración natural.
type JWTCodec struct {
	secret   []byte
	issuer   string
	audience string
	expiry   time.Duration
}

type JWTConfig struct {
	Secret      string
	Issuer      string
	Audience    string
	ExpiryHours int
	Production  bool
}

// Claims son los claims de identidad que viajan en el token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("token invalid")
)

// NewJWTCodec construye el codec aplicando la política de secretos. En
// producción un secreto débil es un error fatal de configuración; en
// desarrollo se acepta con advertencia.
func NewJWTCodec(cfg JWTConfig, logger *zap.Logger) (*JWTCodec, error) {
	if err := ValidateSecret(cfg.Secret, cfg.Production); err != nil {
		return nil, err
	}
	if !cfg.Production && len(cfg.Secret) < MinSecretLength && logger != nil {
		logger.Warn("jwt secret shorter than recommended minimum, allowed outside production",
			zap.Int("min_bytes", MinSecretLength))
	}

	expiryHours := cfg.ExpiryHours
	if expiryHours <= 0 {
		expiryHours = 24
	}

	return &JWTCodec{
		secret:   []byte(cfg.Secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		expiry:   time.Duration(expiryHours) * time.Hour,
	}, nil
}

// Mint firma un token para el usuario. Función pura de usuario, config y
// reloj; no tiene efectos secundarios.
func (c *JWTCodec) Mint(user domain.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.expiry)),
		},
	}
	if c.issuer != "" {
		claims.Issuer = c.issuer
	}
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Validate verifica firma, expiración y, si están configurados, issuer y
// audience. Distingue expirado, malformado y cualquier otra falla de
// validación para que el resolver decida si reintenta otro mecanismo.
func (c *JWTCodec) Validate(tokenString string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	var claims Claims
	parser := jwt.NewParser(opts...)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrTokenMalformed
		default:
			return Claims{}, ErrTokenInvalid
		}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

// ExpirySeconds expone la vida del token para el campo expires_in.
func (c *JWTCodec) ExpirySeconds() int64 {
	return int64(c.expiry.Seconds())
}
