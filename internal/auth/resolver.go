package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GKaszewski/k-notes/internal/config"
	"github.com/GKaszewski/k-notes/internal/domain"
	"github.com/GKaszewski/k-notes/internal/repository"
)

// Request es la vista mínima de un request entrante que necesita el resolver:
// el header Authorization y el id de sesión extraído por el middleware.
type Request struct {
	AuthorizationHeader string
	SessionID           string
}

var (
	// ErrUnauthenticated cubre todo rechazo por credenciales ausentes o
	// inválidas. El detalle se loguea a debug y nunca viaja en la respuesta.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrMalformedAuthHeader rechaza un Authorization presente pero sin
	// esquema Bearer, sin importar el modo configurado.
	ErrMalformedAuthHeader = fmt.Errorf("malformed authorization header: %w", ErrUnauthenticated)

	// errNoCredential indica que el provider no encontró una credencial
	// utilizable y el resolver puede intentar el siguiente mecanismo.
	errNoCredential = errors.New("no usable credential")
)

// Provider es un mecanismo de autenticación que intenta resolver la identidad
// del request. La lista de providers habilitados se compone una vez al
// arrancar según el AuthMode configurado.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, req Request) (domain.User, error)
}

// Resolver produce el usuario del request probando los mecanismos habilitados
// en orden fijo: JWT primero, sesión después. En modo both un token inválido
// no condena el request: la sesión todavía puede rescatarlo. El orden inverso
// nunca ocurre.
type Resolver struct {
	providers []Provider
	logger    *zap.Logger
}

// NewResolver compone la lista ordenada de providers para el modo dado.
func NewResolver(
	mode config.AuthMode,
	codec *JWTCodec,
	users repository.UserRepository,
	sessions *SessionAuth,
	logger *zap.Logger,
) *Resolver {
	var providers []Provider
	if mode.UsesJWT() {
		providers = append(providers, &jwtProvider{codec: codec, users: users})
	}
	if mode.UsesSession() {
		providers = append(providers, &sessionProvider{sessions: sessions})
	}
	return &Resolver{providers: providers, logger: logger}
}

// Resolve corta en el primer provider que entrega un usuario. Errores
// terminales (header malformado, usuario del token desaparecido, fallas de
// infraestructura) no caen al siguiente mecanismo.
func (r *Resolver) Resolve(ctx context.Context, req Request) (domain.User, error) {
	for _, p := range r.providers {
		user, err := p.Resolve(ctx, req)
		if err == nil {
			return user, nil
		}
		if errors.Is(err, errNoCredential) {
			r.logger.Debug("auth provider did not resolve",
				zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		return domain.User{}, err
	}
	return domain.User{}, ErrUnauthenticated
}

type jwtProvider struct {
	codec *JWTCodec
	users repository.UserRepository
}

func (p *jwtProvider) Name() string { return "jwt" }

func (p *jwtProvider) Resolve(ctx context.Context, req Request) (domain.User, error) {
	header := strings.TrimSpace(req.AuthorizationHeader)
	if header == "" {
		return domain.User{}, fmt.Errorf("%w: missing bearer token", errNoCredential)
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return domain.User{}, ErrMalformedAuthHeader
	}
	if p.codec == nil {
		return domain.User{}, errors.New("jwt codec not configured")
	}

	claims, err := p.codec.Validate(strings.TrimSpace(token))
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", errNoCredential, err)
	}

	user, err := p.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Un token válido para un usuario inexistente es una inconsistencia,
			// no un request anónimo.
			return domain.User{}, fmt.Errorf("token subject %s no longer exists", claims.Subject)
		}
		return domain.User{}, fmt.Errorf("fetch token subject: %w", err)
	}
	return user, nil
}

type sessionProvider struct {
	sessions *SessionAuth
}

func (p *sessionProvider) Name() string { return "session" }

func (p *sessionProvider) Resolve(ctx context.Context, req Request) (domain.User, error) {
	if req.SessionID == "" {
		return domain.User{}, fmt.Errorf("%w: no session", errNoCredential)
	}
	user, ok, err := p.sessions.CurrentUser(ctx, req.SessionID)
	if err != nil {
		return domain.User{}, fmt.Errorf("read session identity: %w", err)
	}
	if !ok {
		return domain.User{}, fmt.Errorf("%w: session has no identity", errNoCredential)
	}
	return user, nil
}
