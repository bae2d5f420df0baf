package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/GKaszewski/k-notes/internal/auth"
	"github.com/GKaszewski/k-notes/internal/domain"
	"github.com/GKaszewski/k-notes/internal/repository"
)

// UserService coordina registro, login por credenciales y la resolución de
// identidades federadas a usuarios persistidos.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
}

func NewUserService(logger *zap.Logger, users repository.UserRepository) *UserService {
	return &UserService{logger: logger, users: users}
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmailTaken         = errors.New("email already registered")
	ErrExternalInvalid    = errors.New("external identity invalid")
)

const pgUniqueViolation = "23505"

// Register crea una cuenta local. El subject de una cuenta local es su email
// normalizado; no hay interacción OIDC en este camino.
func (s *UserService) Register(ctx context.Context, emailAddr, password string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if !isValidEmail(emailAddr) {
		return domain.User{}, ErrInvalidEmail
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Subject:      emailAddr,
		Email:        emailAddr,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	return user, nil
}

// Authenticate verifica credenciales de login. Email inexistente, cuenta sin
// password y password incorrecto fallan con el mismo error genérico para no
// permitir enumeración de cuentas.
func (s *UserService) Authenticate(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	emailAddr := normalizeEmail(creds.Email)
	password := strings.TrimSpace(creds.Password)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ResolveExternal resuelve una identidad federada verificada (subject, email)
// a un usuario persistido. Subject conocido gana; un subject nuevo con email
// conocido re-vincula la cuenta existente en vez de duplicarla; sin match se
// crea el usuario. Una carrera en la creación se resuelve releyendo la fila
// que ganó el insert.
func (s *UserService) ResolveExternal(ctx context.Context, subject, emailAddr string) (domain.User, error) {
	subject = strings.TrimSpace(subject)
	emailAddr = normalizeEmail(emailAddr)
	if subject == "" || !isValidEmail(emailAddr) {
		return domain.User{}, ErrExternalInvalid
	}

	user, err := s.users.GetBySubject(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	existing, err := s.users.GetByEmail(ctx, emailAddr)
	if err == nil {
		// Otra fuente de identidad con el mismo email verificado: se
		// re-vincula el subject en lugar de crear una cuenta huérfana.
		if err := s.users.UpdateSubject(ctx, existing.ID, subject); err != nil {
			return domain.User{}, err
		}
		existing.Subject = subject
		s.logger.Info("linked external identity to existing account",
			zap.String("user_id", existing.ID))
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	user = domain.User{
		ID:        uuid.NewString(),
		Subject:   subject,
		Email:     emailAddr,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return s.users.GetBySubject(ctx, subject)
		}
		return domain.User{}, err
	}
	s.logger.Info("created user from external identity", zap.String("user_id", user.ID))
	return user, nil
}

// GetByID busca un usuario por id.
func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}
