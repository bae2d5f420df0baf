package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GKaszewski/k-notes/internal/service"
)

// NoteHandler mantiene dependencias para endpoints de notas.
type NoteHandler struct {
	logger   *zap.Logger
	noteServ *service.NoteService
}

func NewNoteHandler(logger *zap.Logger, noteServ *service.NoteService) *NoteHandler {
	return &NoteHandler{logger: logger, noteServ: noteServ}
}

// CreateNote maneja POST /notes.
func (h *NoteHandler) CreateNote(c *gin.Context) {
	user, _ := GetCurrentUser(c)

	var req struct {
		Title   string   `json:"title" binding:"required"`
		Content string   `json:"content"`
		Pinned  bool     `json:"pinned"`
		Tags    []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	note, err := h.noteServ.Create(c.Request.Context(), user.ID, service.NoteInput{
		Title:   req.Title,
		Content: req.Content,
		Pinned:  req.Pinned,
		Tags:    req.Tags,
	})
	if err != nil {
		h.respondError(c, err, "could not create note")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": note})
}

// GetNote maneja GET /notes/:id.
func (h *NoteHandler) GetNote(c *gin.Context) {
	user, _ := GetCurrentUser(c)
	note, err := h.noteServ.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "could not fetch note")
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note})
}

// ListNotes maneja GET /notes.
func (h *NoteHandler) ListNotes(c *gin.Context) {
	user, _ := GetCurrentUser(c)
	notes, err := h.noteServ.List(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err, "could not list notes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

// SearchNotes maneja GET /search.
func (h *NoteHandler) SearchNotes(c *gin.Context) {
	user, _ := GetCurrentUser(c)
	notes, err := h.noteServ.Search(c.Request.Context(), user.ID, c.Query("q"))
	if err != nil {
		h.respondError(c, err, "could not search notes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

// UpdateNote maneja PATCH /notes/:id.
func (h *NoteHandler) UpdateNote(c *gin.Context) {
	user, _ := GetCurrentUser(c)

	var req struct {
		Title   *string  `json:"title"`
		Content *string  `json:"content"`
		Pinned  *bool    `json:"pinned"`
		Tags    []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	note, err := h.noteServ.Update(c.Request.Context(), user.ID, c.Param("id"), service.NoteUpdate{
		Title:   req.Title,
		Content: req.Content,
		Pinned:  req.Pinned,
		Tags:    req.Tags,
	})
	if err != nil {
		h.respondError(c, err, "could not update note")
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note})
}

// ListNoteVersions maneja GET /notes/:id/versions.
func (h *NoteHandler) ListNoteVersions(c *gin.Context) {
	user, _ := GetCurrentUser(c)
	versions, err := h.noteServ.Versions(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "could not list note versions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// ExportData maneja GET /export: el volcado completo del usuario.
func (h *NoteHandler) ExportData(c *gin.Context) {
	user, _ := GetCurrentUser(c)
	backup, err := h.noteServ.Export(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err, "could not export data")
		return
	}
	c.JSON(http.StatusOK, backup)
}

// ImportData maneja POST /import: restaura un volcado en la cuenta actual.
func (h *NoteHandler) ImportData(c *gin.Context) {
	user, _ := GetCurrentUser(c)

	var backup service.Backup
	if err := c.ShouldBindJSON(&backup); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.noteServ.Import(c.Request.Context(), user.ID, backup); err != nil {
		h.respondError(c, err, "could not import data")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "imported"})
}

// DeleteNote maneja DELETE /notes/:id.
func (h *NoteHandler) DeleteNote(c *gin.Context) {
	user, _ := GetCurrentUser(c)
	if err := h.noteServ.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		h.respondError(c, err, "could not delete note")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NoteHandler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNoteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrInvalidNote):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid note"})
	default:
		h.logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
