package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GKaszewski/k-notes/internal/service"
)

// TagHandler mantiene dependencias para endpoints de tags.
type TagHandler struct {
	logger  *zap.Logger
	tagServ *service.TagService
}

func NewTagHandler(logger *zap.Logger, tagServ *service.TagService) *TagHandler {
	return &TagHandler{logger: logger, tagServ: tagServ}
}

// CreateTag maneja POST /tags.
func (h *TagHandler) CreateTag(c *gin.Context) {
	user, _ := GetCurrentUser(c)

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tag, err := h.tagServ.Create(c.Request.Context(), user.ID, req.Name)
	if err != nil {
		h.respondError(c, err, "could not create tag")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tag": tag})
}

// ListTags maneja GET /tags.
func (h *TagHandler) ListTags(c *gin.Context) {
	user, _ := GetCurrentUser(c)
	tags, err := h.tagServ.List(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err, "could not list tags")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// RenameTag maneja PATCH /tags/:id.
func (h *TagHandler) RenameTag(c *gin.Context) {
	user, _ := GetCurrentUser(c)

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tag, err := h.tagServ.Rename(c.Request.Context(), user.ID, c.Param("id"), req.Name)
	if err != nil {
		h.respondError(c, err, "could not rename tag")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

// DeleteTag maneja DELETE /tags/:id.
func (h *TagHandler) DeleteTag(c *gin.Context) {
	user, _ := GetCurrentUser(c)
	if err := h.tagServ.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		h.respondError(c, err, "could not delete tag")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TagHandler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrTagNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "tag not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrInvalidTag):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag name"})
	case errors.Is(err, service.ErrTagExists):
		c.JSON(http.StatusConflict, gin.H{"error": "tag name already in use"})
	default:
		h.logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
