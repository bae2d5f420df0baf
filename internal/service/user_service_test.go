package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/GKaszewski/k-notes/internal/auth"
	"github.com/GKaszewski/k-notes/internal/domain"
)

type memUserRepo struct {
	users map[string]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user domain.User) error {
	for _, u := range r.users {
		if u.Email == user.Email || u.Subject == user.Subject {
			return &pgconn.PgError{Code: pgUniqueViolation}
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *memUserRepo) GetBySubject(_ context.Context, subject string) (domain.User, error) {
	for _, u := range r.users {
		if u.Subject == subject {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *memUserRepo) UpdateSubject(_ context.Context, id, subject string) error {
	u, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Subject = subject
	r.users[id] = u
	return nil
}

func (r *memUserRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	u, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func newTestUserService() (*UserService, *memUserRepo) {
	repo := newMemUserRepo()
	return NewUserService(zap.NewNop(), repo), repo
}

func TestUserService_RegisterNormalizesAndHashes(t *testing.T) {
	serv, _ := newTestUserService()

	user, err := serv.Register(context.Background(), "  Alice@Example.COM ", "s3cret-password")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	// Una cuenta local usa su email como subject.
	if user.Subject != "alice@example.com" {
		t.Fatalf("unexpected subject %q", user.Subject)
	}
	if user.PasswordHash == "" || user.PasswordHash == "s3cret-password" {
		t.Fatalf("password not hashed")
	}
	if !user.IsLocal() {
		t.Fatalf("registered account should be local")
	}
}

func TestUserService_RegisterRejectsBadInput(t *testing.T) {
	serv, _ := newTestUserService()

	if _, err := serv.Register(context.Background(), "not-an-email", "password"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := serv.Register(context.Background(), "alice@example.com", "   "); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserService_RegisterDuplicateEmail(t *testing.T) {
	serv, _ := newTestUserService()

	if _, err := serv.Register(context.Background(), "alice@example.com", "password-1"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := serv.Register(context.Background(), "alice@example.com", "password-2")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserService_AuthenticateDoesNotLeakAccountExistence(t *testing.T) {
	serv, _ := newTestUserService()
	ctx := context.Background()

	if _, err := serv.Register(ctx, "alice@example.com", "correct-password"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, errWrong := serv.Authenticate(ctx, domain.Credentials{Email: "alice@example.com", Password: "wrong"})
	_, errUnknown := serv.Authenticate(ctx, domain.Credentials{Email: "nobody@example.com", Password: "wrong"})

	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", errWrong)
	}
	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", errUnknown)
	}
	if errWrong.Error() != errUnknown.Error() {
		t.Fatalf("error messages differ: %q vs %q", errWrong, errUnknown)
	}
}

func TestUserService_AuthenticateExternalAccountHasNoPassword(t *testing.T) {
	serv, repo := newTestUserService()
	ctx := context.Background()

	repo.users["ext"] = domain.User{
		ID:        "ext",
		Subject:   "idp-subject",
		Email:     "ext@example.com",
		CreatedAt: time.Now().UTC(),
	}

	_, err := serv.Authenticate(ctx, domain.Credentials{Email: "ext@example.com", Password: "anything"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for passwordless account, got %v", err)
	}
}

func TestUserService_AuthenticateSuccess(t *testing.T) {
	serv, _ := newTestUserService()
	ctx := context.Background()

	created, err := serv.Register(ctx, "alice@example.com", "correct-password")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := serv.Authenticate(ctx, domain.Credentials{
		Email:    "ALICE@example.com",
		Password: "correct-password",
	})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("expected %q, got %q", created.ID, user.ID)
	}
}

func TestUserService_ResolveExternalCreatesThenReuses(t *testing.T) {
	serv, _ := newTestUserService()
	ctx := context.Background()

	first, err := serv.ResolveExternal(ctx, "subj-1", "alice@example.com")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if first.IsLocal() {
		t.Fatalf("external account should not have a password hash")
	}

	second, err := serv.ResolveExternal(ctx, "subj-1", "alice@example.com")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("same subject resolved to different users: %q vs %q", first.ID, second.ID)
	}
}

func TestUserService_ResolveExternalRelinksBySameEmail(t *testing.T) {
	serv, repo := newTestUserService()
	ctx := context.Background()

	first, err := serv.ResolveExternal(ctx, "subj-a", "alice@example.com")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	// Mismo email verificado desde otra fuente: se re-vincula, no se duplica.
	relinked, err := serv.ResolveExternal(ctx, "subj-b", "alice@example.com")
	if err != nil {
		t.Fatalf("relink resolve: %v", err)
	}
	if relinked.ID != first.ID {
		t.Fatalf("expected relink to user %q, got %q", first.ID, relinked.ID)
	}
	if got := repo.users[first.ID].Subject; got != "subj-b" {
		t.Fatalf("subject not updated, got %q", got)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected a single user, got %d", len(repo.users))
	}
}

func TestUserService_ResolveExternalRejectsBadIdentity(t *testing.T) {
	serv, _ := newTestUserService()
	ctx := context.Background()

	if _, err := serv.ResolveExternal(ctx, "", "alice@example.com"); !errors.Is(err, ErrExternalInvalid) {
		t.Fatalf("expected ErrExternalInvalid for empty subject, got %v", err)
	}
	if _, err := serv.ResolveExternal(ctx, "subj-1", "no-at-sign"); !errors.Is(err, ErrExternalInvalid) {
		t.Fatalf("expected ErrExternalInvalid for bad email, got %v", err)
	}
}

func TestUserService_ResolveExternalCreationRaceRereads(t *testing.T) {
	ctx := context.Background()

	// El repo simula una carrera: el primer Create pierde contra otro insert
	// con el mismo subject, y la relectura devuelve la fila ganadora.
	winner := domain.User{ID: "winner", Subject: "subj-1", Email: "alice@example.com"}
	racing := &racingUserRepo{memUserRepo: newMemUserRepo(), winner: winner}

	serv := NewUserService(zap.NewNop(), racing)
	user, err := serv.ResolveExternal(ctx, "subj-1", "alice@example.com")
	if err != nil {
		t.Fatalf("resolve during race: %v", err)
	}
	if user.ID != "winner" {
		t.Fatalf("expected winning row, got %q", user.ID)
	}
}

// racingUserRepo falla el primer Create con unique violation y recién entonces
// hace visible la fila ganadora.
type racingUserRepo struct {
	*memUserRepo
	winner domain.User
}

func (r *racingUserRepo) Create(_ context.Context, _ domain.User) error {
	r.users[r.winner.ID] = r.winner
	return &pgconn.PgError{Code: pgUniqueViolation}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := auth.HashPassword("hunter2-but-longer")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !auth.VerifyPassword(hash, "hunter2-but-longer") {
		t.Fatalf("correct password rejected")
	}
	if auth.VerifyPassword(hash, "other") {
		t.Fatalf("wrong password accepted")
	}
	if auth.VerifyPassword("", "anything") {
		t.Fatalf("empty hash accepted")
	}
}
