package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/scholar-ai-backend/apperr"
	"github.com/vnkhanh/scholar-ai-backend/services"
)

// ListModels reports the Gemini models usable for generation.
func (h *Handler) ListModels(c *gin.Context) {
	opts := h.generateOptions(c, "")
	if !h.requireKey(c, opts) {
		return
	}
	models, err := h.generator.ListModels(c.Request.Context(), opts.APIKey)
	if err != nil {
		respondError(c, apperr.Upstream("failed to list models", err))
		return
	}
	if models == nil {
		models = []services.ModelInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}
