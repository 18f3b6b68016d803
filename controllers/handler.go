package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/scholar-ai-backend/apperr"
	"github.com/vnkhanh/scholar-ai-backend/logger"
	"github.com/vnkhanh/scholar-ai-backend/models"
	"github.com/vnkhanh/scholar-ai-backend/services"
	"github.com/vnkhanh/scholar-ai-backend/store"
	"github.com/vnkhanh/scholar-ai-backend/ws"
)

// APIKeyHeader lets a caller bring their own Gemini key.
const APIKeyHeader = "X-Gemini-API-Key"

// Uploader is satisfied by *services.Pipeline.
type Uploader interface {
	Run(ctx context.Context, in services.UploadInput) (models.StudyGuide, error)
	DeleteSource(ctx context.Context, key string)
}

// Generator is satisfied by *services.GeminiGenerator.
type Generator interface {
	services.Generator
	HasKey(opts services.GenerateOptions) bool
	ListModels(ctx context.Context, apiKey string) ([]services.ModelInfo, error)
}

type Deps struct {
	Store     store.GuideStore
	Uploader  Uploader
	Generator Generator
	Exporter  *services.Exporter
	Hub       *ws.Hub
	Log       *logger.Logger

	UploadDir      string
	MaxUploadBytes int64
}

// Handler serves the guide API. All state lives in the injected store.
type Handler struct {
	store     store.GuideStore
	uploader  Uploader
	generator Generator
	exporter  *services.Exporter
	hub       *ws.Hub
	log       *logger.Logger

	uploadDir      string
	maxUploadBytes int64
}

func NewHandler(d Deps) *Handler {
	log := logger.OrNop(d.Log)
	hub := d.Hub
	if hub == nil {
		hub = ws.NewHub(log)
	}
	exporter := d.Exporter
	if exporter == nil {
		exporter = services.NewExporter(nil)
	}
	return &Handler{
		store:          d.Store,
		uploader:       d.Uploader,
		generator:      d.Generator,
		exporter:       exporter,
		hub:            hub,
		log:            log,
		uploadDir:      d.UploadDir,
		maxUploadBytes: d.MaxUploadBytes,
	}
}

func (h *Handler) generateOptions(c *gin.Context, model string) services.GenerateOptions {
	return services.GenerateOptions{
		APIKey: strings.TrimSpace(c.GetHeader(APIKeyHeader)),
		Model:  strings.TrimSpace(model),
	}
}

func (h *Handler) requireKey(c *gin.Context, opts services.GenerateOptions) bool {
	if h.generator != nil && h.generator.HasKey(opts) {
		return true
	}
	respondError(c, apperr.Invalid("Gemini API key is missing, provide it in the "+APIKeyHeader+" header", services.ErrMissingAPIKey))
	return false
}

// respondError writes err as {"error", "details"} with the status of its kind.
func respondError(c *gin.Context, err error) {
	e := apperr.As(err)
	body := gin.H{"error": e.Message}
	if e.Err != nil {
		body["details"] = e.Err.Error()
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(e.Status(), body)
}

// storeError classifies a store failure for the guide with the given id.
func storeError(err error, id, action string) *apperr.Error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("guide", id)
	case errors.Is(err, store.ErrInvalidID):
		return apperr.Invalid("invalid guide id", err)
	case errors.Is(err, models.ErrInvalidGuide), errors.Is(err, models.ErrScheduleIndex):
		return apperr.Invalid("invalid update", err)
	default:
		return apperr.Upstream(action, err)
	}
}

func success(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}
