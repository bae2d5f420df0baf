package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/GKaszewski/k-notes/internal/domain"
	"github.com/GKaszewski/k-notes/internal/repository"
)

// NoteService coordina reglas de negocio para notas, siempre autorizadas
// contra el usuario resuelto.
type NoteService struct {
	notes repository.NoteRepository
	tags  repository.TagRepository
}

func NewNoteService(notes repository.NoteRepository, tags repository.TagRepository) *NoteService {
	return &NoteService{notes: notes, tags: tags}
}

var (
	ErrNoteNotFound = errors.New("note not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidNote  = errors.New("invalid note")
)

type NoteInput struct {
	Title   string
	Content string
	Pinned  bool
	Tags    []string
}

func (s *NoteService) Create(ctx context.Context, userID string, input NoteInput) (domain.Note, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return domain.Note{}, ErrInvalidNote
	}

	now := time.Now().UTC()
	note := domain.Note{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Content:   input.Content,
		Pinned:    input.Pinned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return domain.Note{}, err
	}
	if err := s.applyTags(ctx, &note, input.Tags); err != nil {
		return domain.Note{}, err
	}
	return note, nil
}

func (s *NoteService) Get(ctx context.Context, userID, noteID string) (domain.Note, error) {
	note, err := s.owned(ctx, userID, noteID)
	if err != nil {
		return domain.Note{}, err
	}
	tags, err := s.notes.TagsFor(ctx, noteID)
	if err != nil {
		return domain.Note{}, err
	}
	note.Tags = tags
	return note, nil
}

func (s *NoteService) List(ctx context.Context, userID string) ([]domain.Note, error) {
	return s.notes.ListByUser(ctx, userID)
}

func (s *NoteService) Search(ctx context.Context, userID, query string) ([]domain.Note, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return s.notes.Search(ctx, userID, query)
}

type NoteUpdate struct {
	Title   *string
	Content *string
	Pinned  *bool
	Tags    []string
}

func (s *NoteService) Update(ctx context.Context, userID, noteID string, update NoteUpdate) (domain.Note, error) {
	note, err := s.owned(ctx, userID, noteID)
	if err != nil {
		return domain.Note{}, err
	}
	previous := note

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return domain.Note{}, ErrInvalidNote
		}
		note.Title = title
	}
	if update.Content != nil {
		note.Content = *update.Content
	}
	if update.Pinned != nil {
		note.Pinned = *update.Pinned
	}
	note.UpdatedAt = time.Now().UTC()

	// El texto anterior se preserva como versión; cambios que no tocan el
	// texto (pinned, tags) no generan instantáneas.
	if note.Title != previous.Title || note.Content != previous.Content {
		version := domain.NoteVersion{
			ID:        uuid.NewString(),
			NoteID:    note.ID,
			Title:     previous.Title,
			Content:   previous.Content,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.notes.SaveVersion(ctx, version); err != nil {
			return domain.Note{}, err
		}
	}

	if err := s.notes.Update(ctx, note); err != nil {
		return domain.Note{}, err
	}
	if update.Tags != nil {
		if err := s.applyTags(ctx, &note, update.Tags); err != nil {
			return domain.Note{}, err
		}
	} else {
		tags, err := s.notes.TagsFor(ctx, noteID)
		if err != nil {
			return domain.Note{}, err
		}
		note.Tags = tags
	}
	return note, nil
}

// Versions lista las instantáneas de una nota, de la más reciente a la más
// vieja.
func (s *NoteService) Versions(ctx context.Context, userID, noteID string) ([]domain.NoteVersion, error) {
	if _, err := s.owned(ctx, userID, noteID); err != nil {
		return nil, err
	}
	return s.notes.VersionsFor(ctx, noteID)
}

func (s *NoteService) Delete(ctx context.Context, userID, noteID string) error {
	if _, err := s.owned(ctx, userID, noteID); err != nil {
		return err
	}
	return s.notes.Delete(ctx, noteID)
}

// Backup es el volcado completo de los datos de un usuario.
type Backup struct {
	Notes []domain.Note `json:"notes"`
	Tags  []domain.Tag  `json:"tags"`
}

// Export arma el volcado del usuario: sus notas con tags asociados y los tags
// sueltos, para que un tag sin notas también sobreviva el respaldo.
func (s *NoteService) Export(ctx context.Context, userID string) (Backup, error) {
	notes, err := s.notes.ListByUser(ctx, userID)
	if err != nil {
		return Backup{}, err
	}
	for i := range notes {
		tags, err := s.notes.TagsFor(ctx, notes[i].ID)
		if err != nil {
			return Backup{}, err
		}
		notes[i].Tags = tags
	}
	tags, err := s.tags.ListByUser(ctx, userID)
	if err != nil {
		return Backup{}, err
	}
	return Backup{Notes: notes, Tags: tags}, nil
}

// Import restaura un volcado dentro de la cuenta del usuario actual. Los ids
// del volcado no se confían: todo se recrea con ids nuevos y propiedad forzada
// al usuario, y los tags se reconcilian por nombre.
func (s *NoteService) Import(ctx context.Context, userID string, backup Backup) error {
	for _, tag := range backup.Tags {
		name := strings.ToLower(strings.TrimSpace(tag.Name))
		if name == "" {
			continue
		}
		if _, err := s.tags.CreateOrGet(ctx, domain.Tag{
			ID:     uuid.NewString(),
			UserID: userID,
			Name:   name,
		}); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	for _, note := range backup.Notes {
		title := strings.TrimSpace(note.Title)
		if title == "" {
			return ErrInvalidNote
		}
		created := note.CreatedAt
		if created.IsZero() {
			created = now
		}
		updated := note.UpdatedAt
		if updated.IsZero() {
			updated = created
		}
		restored := domain.Note{
			ID:        uuid.NewString(),
			UserID:    userID,
			Title:     title,
			Content:   note.Content,
			Pinned:    note.Pinned,
			CreatedAt: created,
			UpdatedAt: updated,
		}
		if err := s.notes.Create(ctx, restored); err != nil {
			return err
		}
		names := make([]string, 0, len(note.Tags))
		for _, t := range note.Tags {
			names = append(names, t.Name)
		}
		if err := s.applyTags(ctx, &restored, names); err != nil {
			return err
		}
	}
	return nil
}

func (s *NoteService) owned(ctx context.Context, userID, noteID string) (domain.Note, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Note{}, ErrNoteNotFound
		}
		return domain.Note{}, err
	}
	if note.UserID != userID {
		return domain.Note{}, ErrForbidden
	}
	return note, nil
}

func (s *NoteService) applyTags(ctx context.Context, note *domain.Note, names []string) error {
	var tagIDs []string
	var tags []domain.Tag
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		tag, err := s.tags.CreateOrGet(ctx, domain.Tag{
			ID:     uuid.NewString(),
			UserID: note.UserID,
			Name:   name,
		})
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, tag.ID)
		tags = append(tags, tag)
	}
	if err := s.notes.SetTags(ctx, note.ID, tagIDs); err != nil {
		return err
	}
	note.Tags = tags
	return nil
}
