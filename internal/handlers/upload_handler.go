package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cartalks/backend/internal/storage"
)

type UploadHandler struct {
	store storage.BlobStore
}

func NewUploadHandler(store storage.BlobStore) *UploadHandler {
	return &UploadHandler{store: store}
}

// Upload stores a multipart "file" and returns its URL
func (h *UploadHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "file is required")
		return
	}

	f, err := fh.Open()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "could not read file")
		return
	}
	defer f.Close()

	url, err := h.store.Upload(c.Request.Context(), f, fh.Filename)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}
