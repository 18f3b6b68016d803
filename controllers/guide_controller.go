package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/scholar-ai-backend/apperr"
	"github.com/vnkhanh/scholar-ai-backend/models"
	"github.com/vnkhanh/scholar-ai-backend/studyview"
)

// fallbackMotivation is served when the generator cannot be reached.
const fallbackMotivation = "Every session counts. Pick the next item on your schedule and keep going!"

func (h *Handler) GetGuide(c *gin.Context) {
	id := c.Param("id")
	g, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, storeError(err, id, "failed to load guide"))
		return
	}
	c.JSON(http.StatusOK, g)
}

// ListGuides never fails: a broken store shows up as an empty list.
func (h *Handler) ListGuides(c *gin.Context) {
	guides, err := h.store.List(c.Request.Context())
	if err != nil {
		h.log.Warn("list guides failed, returning empty list", "error", err)
		guides = nil
	}
	if guides == nil {
		guides = []models.GuideSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"guides": guides})
}

type updateGuideRequest struct {
	ID      string         `json:"id"`
	Updates map[string]any `json:"updates"`
}

func (h *Handler) UpdateGuide(c *gin.Context) {
	var req updateGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid request body", err))
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		respondError(c, apperr.BadRequest("id", "is required"))
		return
	}
	if len(req.Updates) == 0 {
		respondError(c, apperr.BadRequest("updates", "is required"))
		return
	}

	if err := h.store.Update(c.Request.Context(), req.ID, req.Updates); err != nil {
		respondError(c, storeError(err, req.ID, "failed to update guide"))
		return
	}
	h.hub.GuidesChanged()
	success(c)
}

type deleteGuideRequest struct {
	ID string `json:"id"`
}

// DeleteGuide deletes the guide named in the JSON body.
func (h *Handler) DeleteGuide(c *gin.Context) {
	var req deleteGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid request body", err))
		return
	}
	h.deleteGuide(c, strings.TrimSpace(req.ID))
}

// DeleteGuideByID deletes the guide named in the path.
func (h *Handler) DeleteGuideByID(c *gin.Context) {
	h.deleteGuide(c, c.Param("id"))
}

func (h *Handler) deleteGuide(c *gin.Context, id string) {
	if id == "" {
		respondError(c, apperr.BadRequest("id", "is required"))
		return
	}
	ctx := c.Request.Context()

	var sourceKey string
	if g, err := h.store.Get(ctx, id); err == nil {
		sourceKey = g.SourceKey
	}
	if err := h.store.Delete(ctx, id); err != nil {
		respondError(c, storeError(err, id, "failed to delete guide"))
		return
	}
	if h.uploader != nil {
		h.uploader.DeleteSource(ctx, sourceKey)
	}
	h.hub.GuidesChanged()
	success(c)
}

type progressRequest struct {
	Index     *int  `json:"index"`
	Completed *bool `json:"completed"`
}

// UpdateProgress marks one schedule entry as completed or not.
func (h *Handler) UpdateProgress(c *gin.Context) {
	id := c.Param("id")
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid request body", err))
		return
	}
	if req.Index == nil {
		respondError(c, apperr.BadRequest("index", "is required"))
		return
	}
	if req.Completed == nil {
		respondError(c, apperr.BadRequest("completed", "is required"))
		return
	}

	if err := h.store.SetScheduleCompleted(c.Request.Context(), id, *req.Index, *req.Completed); err != nil {
		respondError(c, storeError(err, id, "failed to update progress"))
		return
	}
	h.hub.GuidesChanged()
	success(c)
}

type replanRequest struct {
	Reason string `json:"reason"`
	Model  string `json:"model"`
}

// ReplanSchedule asks the generator for a fresh schedule and stores it.
func (h *Handler) ReplanSchedule(c *gin.Context) {
	id := c.Param("id")
	var req replanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid request body", err))
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		respondError(c, apperr.BadRequest("reason", "is required"))
		return
	}
	opts := h.generateOptions(c, req.Model)
	if !h.requireKey(c, opts) {
		return
	}

	ctx := c.Request.Context()
	g, err := h.store.Get(ctx, id)
	if err != nil {
		respondError(c, storeError(err, id, "failed to load guide"))
		return
	}
	schedule, err := h.generator.Replan(ctx, g, req.Reason, opts)
	if err != nil {
		h.log.Error("replan failed", "guide_id", id, "error", err)
		respondError(c, apperr.Upstream("replan failed", err))
		return
	}
	if schedule == nil {
		schedule = []models.ScheduleEntry{}
	}
	if err := h.store.Update(ctx, id, map[string]any{"study_schedule": schedule}); err != nil {
		respondError(c, storeError(err, id, "failed to save schedule"))
		return
	}
	h.hub.GuidesChanged()
	c.JSON(http.StatusOK, gin.H{"study_schedule": schedule})
}

// Motivation returns a short encouragement based on schedule progress.
func (h *Handler) Motivation(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	g, err := h.store.Get(ctx, id)
	if err != nil {
		respondError(c, storeError(err, id, "failed to load guide"))
		return
	}

	completed, total := g.CompletedCount(), len(g.StudySchedule)
	message := fallbackMotivation
	opts := h.generateOptions(c, c.Query("model"))
	if h.generator != nil && h.generator.HasKey(opts) {
		if msg, err := h.generator.Motivate(ctx, completed, total, opts); err != nil {
			h.log.Warn("motivation generation failed, using fallback", "guide_id", id, "error", err)
		} else if msg != "" {
			message = msg
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "completed": completed, "total": total})
}

type quizScoreRequest struct {
	Answers []*int `json:"answers"`
}

// ScoreQuiz grades submitted answers against the stored quiz.
func (h *Handler) ScoreQuiz(c *gin.Context) {
	id := c.Param("id")
	var req quizScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid request body", err))
		return
	}
	g, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, storeError(err, id, "failed to load guide"))
		return
	}
	c.JSON(http.StatusOK, studyview.Grade(g.Quiz, req.Answers))
}
