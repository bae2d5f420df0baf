package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GKaszewski/k-notes/internal/domain"
)

// NoteRepository define el contrato de persistencia para notas.
type NoteRepository interface {
	Create(ctx context.Context, note domain.Note) error
	GetByID(ctx context.Context, id string) (domain.Note, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Note, error)
	Search(ctx context.Context, userID, query string) ([]domain.Note, error)
	Update(ctx context.Context, note domain.Note) error
	Delete(ctx context.Context, id string) error
	SetTags(ctx context.Context, noteID string, tagIDs []string) error
	TagsFor(ctx context.Context, noteID string) ([]domain.Tag, error)
	SaveVersion(ctx context.Context, version domain.NoteVersion) error
	VersionsFor(ctx context.Context, noteID string) ([]domain.NoteVersion, error)
}

// PgNoteRepository implementa NoteRepository usando pgxpool.
type PgNoteRepository struct {
	pool *pgxpool.Pool
}

func NewPgNoteRepository(pool *pgxpool.Pool) *PgNoteRepository {
	return &PgNoteRepository{pool: pool}
}

const noteColumns = `id, user_id, title, content, pinned, created_at, updated_at`

func (r *PgNoteRepository) Create(ctx context.Context, note domain.Note) error {
	const query = `
		INSERT INTO notes (id, user_id, title, content, pinned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		note.ID,
		note.UserID,
		note.Title,
		note.Content,
		note.Pinned,
		note.CreatedAt,
		note.UpdatedAt,
	)
	return err
}

func (r *PgNoteRepository) GetByID(ctx context.Context, id string) (domain.Note, error) {
	const query = `SELECT ` + noteColumns + ` FROM notes WHERE id = $1`
	var n domain.Note
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.UserID, &n.Title, &n.Content, &n.Pinned, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return domain.Note{}, err
	}
	return n, nil
}

func (r *PgNoteRepository) ListByUser(ctx context.Context, userID string) ([]domain.Note, error) {
	const query = `
		SELECT ` + noteColumns + ` FROM notes
		WHERE user_id = $1
		ORDER BY pinned DESC, updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

func (r *PgNoteRepository) Search(ctx context.Context, userID, query string) ([]domain.Note, error) {
	const q = `
		SELECT ` + noteColumns + ` FROM notes
		WHERE user_id = $1 AND (title ILIKE '%' || $2 || '%' OR content ILIKE '%' || $2 || '%')
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, q, userID, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

func (r *PgNoteRepository) Update(ctx context.Context, note domain.Note) error {
	const query = `
		UPDATE notes SET title = $2, content = $3, pinned = $4, updated_at = $5
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, note.ID, note.Title, note.Content, note.Pinned, note.UpdatedAt)
	return err
}

func (r *PgNoteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	return err
}

func (r *PgNoteRepository) SetTags(ctx context.Context, noteID string, tagIDs []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM note_tags WHERE note_id = $1`, noteID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO note_tags (note_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			noteID, tagID,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PgNoteRepository) TagsFor(ctx context.Context, noteID string) ([]domain.Tag, error) {
	const query = `
		SELECT t.id, t.user_id, t.name
		FROM tags t JOIN note_tags nt ON nt.tag_id = t.id
		WHERE nt.note_id = $1
		ORDER BY t.name
	`
	rows, err := r.pool.Query(ctx, query, noteID)
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

func (r *PgNoteRepository) SaveVersion(ctx context.Context, version domain.NoteVersion) error {
	const query = `
		INSERT INTO note_versions (id, note_id, title, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		version.ID, version.NoteID, version.Title, version.Content, version.CreatedAt)
	return err
}

func (r *PgNoteRepository) VersionsFor(ctx context.Context, noteID string) ([]domain.NoteVersion, error) {
	const query = `
		SELECT id, note_id, title, content, created_at
		FROM note_versions
		WHERE note_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []domain.NoteVersion
	for rows.Next() {
		var v domain.NoteVersion
		if err := rows.Scan(&v.ID, &v.NoteID, &v.Title, &v.Content, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func scanNotes(rows pgx.Rows) ([]domain.Note, error) {
	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Pinned, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
