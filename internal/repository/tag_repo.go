package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GKaszewski/k-notes/internal/domain"
)

// TagRepository define el contrato de persistencia para tags.
type TagRepository interface {
	// CreateOrGet inserta el tag y, ante una violación de unicidad por una
	// creación concurrente, relee y devuelve la fila existente.
	CreateOrGet(ctx context.Context, tag domain.Tag) (domain.Tag, error)
	GetByID(ctx context.Context, id string) (domain.Tag, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Tag, error)
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

// PgTagRepository implementa TagRepository usando pgxpool.
type PgTagRepository struct {
	pool *pgxpool.Pool
}

func NewPgTagRepository(pool *pgxpool.Pool) *PgTagRepository {
	return &PgTagRepository{pool: pool}
}

const uniqueViolation = "23505"

func (r *PgTagRepository) CreateOrGet(ctx context.Context, tag domain.Tag) (domain.Tag, error) {
	const insert = `INSERT INTO tags (id, user_id, name) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, insert, tag.ID, tag.UserID, tag.Name)
	if err == nil {
		return tag, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return r.getByName(ctx, tag.UserID, tag.Name)
	}
	return domain.Tag{}, err
}

func (r *PgTagRepository) GetByID(ctx context.Context, id string) (domain.Tag, error) {
	const query = `SELECT id, user_id, name FROM tags WHERE id = $1`
	var t domain.Tag
	err := r.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.UserID, &t.Name)
	if err != nil {
		return domain.Tag{}, err
	}
	return t, nil
}

func (r *PgTagRepository) getByName(ctx context.Context, userID, name string) (domain.Tag, error) {
	const query = `SELECT id, user_id, name FROM tags WHERE user_id = $1 AND name = $2`
	var t domain.Tag
	err := r.pool.QueryRow(ctx, query, userID, name).Scan(&t.ID, &t.UserID, &t.Name)
	if err != nil {
		return domain.Tag{}, err
	}
	return t, nil
}

func (r *PgTagRepository) ListByUser(ctx context.Context, userID string) ([]domain.Tag, error) {
	const query = `SELECT id, user_id, name FROM tags WHERE user_id = $1 ORDER BY name`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *PgTagRepository) Rename(ctx context.Context, id, name string) error {
	_, err := r.pool.Exec(ctx, `UPDATE tags SET name = $2 WHERE id = $1`, id, name)
	return err
}

func (r *PgTagRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	return err
}
