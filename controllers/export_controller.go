package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/scholar-ai-backend/apperr"
	"github.com/vnkhanh/scholar-ai-backend/services"
)

// ExportGuide downloads one projection of a guide: quiz, flashcards,
// summary or audio. ?format= picks the file type.
func (h *Handler) ExportGuide(c *gin.Context) {
	kind, id := c.Param("kind"), c.Param("id")
	if _, ok := services.Formats[kind]; !ok {
		respondError(c, apperr.BadRequest("kind", fmt.Sprintf("unsupported export %q", kind)))
		return
	}

	ctx := c.Request.Context()
	g, err := h.store.Get(ctx, id)
	if err != nil {
		respondError(c, storeError(err, id, "failed to load guide"))
		return
	}

	var out services.Export
	if kind == services.ExportAudio {
		out, err = h.exporter.ExportAudio(ctx, g)
	} else {
		out, err = h.exporter.Export(kind, c.Query("format"), g)
	}
	switch {
	case errors.Is(err, services.ErrAudioDisabled):
		respondError(c, apperr.Unavailable("audio export is not enabled"))
		return
	case errors.Is(err, services.ErrUnsupportedExport):
		respondError(c, apperr.Invalid("unsupported export format", err))
		return
	case err != nil:
		h.log.Error("export failed", "guide_id", id, "kind", kind, "error", err)
		respondError(c, apperr.Upstream("export failed", err))
		return
	}

	if kind == services.ExportAudio {
		if d, err := services.MP3Duration(bytes.NewReader(out.Data)); err == nil {
			c.Header("X-Audio-Duration", strconv.FormatFloat(d.Seconds(), 'f', 2, 64))
		}
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	c.Data(http.StatusOK, out.ContentType, out.Data)
}
