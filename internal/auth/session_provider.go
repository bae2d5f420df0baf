package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/GKaszewski/k-notes/internal/domain"
	"github.com/GKaszewski/k-notes/internal/repository"
	"github.com/GKaszewski/k-notes/internal/session"
)

// Claves dentro del registro de sesión.
const (
	sessionUserKey = "user_id"

	SessionOIDCStateKey    = "oidc_state"
	SessionOIDCNonceKey    = "oidc_nonce"
	SessionOIDCVerifierKey = "oidc_verifier"
)

// SessionAuth lee y escribe la identidad del llamador en el registro de
// sesión, independiente de cómo se transporte el cookie.
type SessionAuth struct {
	store session.Store
	users repository.UserRepository
}

func NewSessionAuth(store session.Store, users repository.UserRepository) *SessionAuth {
	return &SessionAuth{store: store, users: users}
}

// Login ata el usuario a la sesión actual.
func (s *SessionAuth) Login(ctx context.Context, sid string, user domain.User) error {
	return s.store.Set(ctx, sid, sessionUserKey, user.ID)
}

// Logout limpia el slot de identidad. Idempotente: cerrar una sesión sin
// usuario atado no es un error.
func (s *SessionAuth) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return s.store.Delete(ctx, sid, sessionUserKey)
}

// CurrentUser devuelve el usuario atado a la sesión, si existe. Un slot que
// apunta a un usuario ya borrado se limpia y cuenta como no autenticado.
func (s *SessionAuth) CurrentUser(ctx context.Context, sid string) (domain.User, bool, error) {
	if sid == "" {
		return domain.User{}, false, nil
	}
	userID, ok, err := s.store.Get(ctx, sid, sessionUserKey)
	if err != nil {
		return domain.User{}, false, err
	}
	if !ok || userID == "" {
		return domain.User{}, false, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = s.store.Delete(ctx, sid, sessionUserKey)
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return user, true, nil
}

// PutFlowState persiste la tripleta OIDC en la sesión antes del redirect.
func (s *SessionAuth) PutFlowState(ctx context.Context, sid string, fs FlowState) error {
	if err := s.store.Set(ctx, sid, SessionOIDCStateKey, fs.State); err != nil {
		return err
	}
	if err := s.store.Set(ctx, sid, SessionOIDCNonceKey, fs.Nonce); err != nil {
		return err
	}
	return s.store.Set(ctx, sid, SessionOIDCVerifierKey, fs.PKCEVerifier)
}

// PopFlowState lee y borra la tripleta OIDC en un solo paso. El borrado
// incondicional es lo que garantiza el uso único de state, nonce y verifier.
func (s *SessionAuth) PopFlowState(ctx context.Context, sid string) (FlowState, error) {
	var fs FlowState
	var firstErr error

	read := func(key string) string {
		val, _, err := s.store.Get(ctx, sid, key)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return val
	}
	fs.State = read(SessionOIDCStateKey)
	fs.Nonce = read(SessionOIDCNonceKey)
	fs.PKCEVerifier = read(SessionOIDCVerifierKey)

	if err := s.store.Delete(ctx, sid,
		SessionOIDCStateKey, SessionOIDCNonceKey, SessionOIDCVerifierKey,
	); err != nil && firstErr == nil {
		firstErr = err
	}
	return fs, firstErr
}
