package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GKaszewski/k-notes/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetBySubject(ctx context.Context, subject string) (domain.User, error)
	UpdateSubject(ctx context.Context, id, subject string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, subject, email, COALESCE(password_hash, ''), created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, subject, email, password_hash, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Subject,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
	)
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PgUserRepository) GetBySubject(ctx context.Context, subject string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE subject = $1`, subject)
}

func (r *PgUserRepository) UpdateSubject(ctx context.Context, id, subject string) error {
	const query = `UPDATE users SET subject = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, subject)
	return err
}

func (r *PgUserRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = NULLIF($2, '') WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, passwordHash)
	return err
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Subject,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
