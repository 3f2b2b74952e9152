package http

import (
	"errors"
	"net/http"

	"github.com/codesync/collab/internal/domain"
	"github.com/codesync/collab/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type playgroundHandlers struct {
	store store.DocumentStore
}

type fileContentRequest struct {
	Content *string `json:"content" binding:"required"`
}

func (h *playgroundHandlers) get(c *gin.Context) {
	pg, err := h.store.GetPlayground(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pg)
}

func (h *playgroundHandlers) putFile(c *gin.Context) {
	var req fileContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid content"})
		return
	}
	id, fileID := c.Param("id"), c.Param("fileId")
	if err := h.store.UpdateFileContent(c.Request.Context(), id, fileID, *req.Content); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "playgroundId": id, "fileId": fileID})
}

func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, domain.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("document store")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
