package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vnkhanh/scholar-ai-backend/apperr"
	"github.com/vnkhanh/scholar-ai-backend/services"
)

// multipart overhead allowed on top of the file limit
const formSlackBytes = 1 << 20

// UploadGuide turns an uploaded document into a stored study guide.
func (h *Handler) UploadGuide(c *gin.Context) {
	opts := h.generateOptions(c, c.Query("model"))
	if !h.requireKey(c, opts) {
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+formSlackBytes)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, apperr.BadRequest("file", fmt.Sprintf("exceeds %d MB", h.maxUploadBytes>>20)))
			return
		}
		respondError(c, apperr.BadRequest("file", "is required"))
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		respondError(c, apperr.BadRequest("file", fmt.Sprintf("exceeds %d MB", h.maxUploadBytes>>20)))
		return
	}
	if model := c.PostForm("model"); model != "" {
		opts.Model = strings.TrimSpace(model)
	}

	path := filepath.Join(h.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, path); err != nil {
		respondError(c, apperr.Upstream("upload failed", fmt.Errorf("save upload: %w", err)))
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.log.Warn("failed to remove upload", "path", path, "error", err)
		}
	}()

	guide, err := h.uploader.Run(c.Request.Context(), services.UploadInput{
		Path:       path,
		Filename:   filepath.Base(file.Filename),
		Goals:      c.PostForm("goals"),
		Difficulty: c.PostForm("difficulty"),
		ExamDate:   c.PostForm("exam_date"),
		Options:    opts,
		UploadID:   c.PostForm("upload_id"),
	})
	if err != nil {
		h.log.Error("upload failed", "filename", file.Filename, "error", err)
		respondError(c, apperr.Upstream("upload failed", err))
		return
	}

	c.JSON(http.StatusOK, guide)
}
