package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vnkhanh/scholar-ai-backend/logger"
	"github.com/vnkhanh/scholar-ai-backend/models"
	"github.com/vnkhanh/scholar-ai-backend/storage"
	"github.com/vnkhanh/scholar-ai-backend/store"
)

// Upload progress statuses pushed to listeners.
const (
	StatusReceived   = "received"
	StatusExtracting = "extracting"
	StatusGenerating = "generating"
	StatusSaving     = "saving"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// TextExtractor is satisfied by *Extractor.
type TextExtractor interface {
	Extract(ctx context.Context, path, filename string) string
}

// Notifier receives pipeline progress. ws.Hub implements it.
type Notifier interface {
	UploadStatus(uploadID, status string, progress int, errMsg string)
	GuidesChanged()
}

type nopNotifier struct{}

func (nopNotifier) UploadStatus(string, string, int, string) {}
func (nopNotifier) GuidesChanged()                           {}

type UploadInput struct {
	Path       string
	Filename   string
	Goals      string
	Difficulty string
	ExamDate   string
	Options    GenerateOptions
	// UploadID correlates progress events with a client listener. Optional.
	UploadID string
}

type Pipeline struct {
	extractor TextExtractor
	generator Generator
	store     store.GuideStore
	archive   storage.ObjectStore
	notifier  Notifier
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewPipeline wires the upload flow. archive and notifier may be nil.
func NewPipeline(ex TextExtractor, gen Generator, st store.GuideStore, archive storage.ObjectStore, n Notifier, log *logger.Logger) *Pipeline {
	if n == nil {
		n = nopNotifier{}
	}
	return &Pipeline{
		extractor: ex,
		generator: gen,
		store:     st,
		archive:   archive,
		notifier:  n,
		log:       logger.OrNop(log),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run extracts, generates and stores a guide. Nothing is written to the store
// unless generation succeeded.
func (p *Pipeline) Run(ctx context.Context, in UploadInput) (models.StudyGuide, error) {
	log := p.log.With("filename", in.Filename, "upload_id", in.UploadID)
	p.notifier.UploadStatus(in.UploadID, StatusReceived, 0, "")

	p.notifier.UploadStatus(in.UploadID, StatusExtracting, 10, "")
	transcript := p.extractor.Extract(ctx, in.Path, in.Filename)
	if transcript == "" {
		log.Warn("empty transcript, generating anyway")
	}

	p.notifier.UploadStatus(in.UploadID, StatusGenerating, 30, "")
	started := p.now()
	guide, err := p.generator.Generate(ctx, GuideRequest{
		Transcript: transcript,
		Goals:      in.Goals,
		Difficulty: in.Difficulty,
		ExamDate:   in.ExamDate,
		Options:    in.Options,
	})
	if err != nil {
		p.notifier.UploadStatus(in.UploadID, StatusFailed, 100, err.Error())
		return models.StudyGuide{}, fmt.Errorf("generate guide: %w", err)
	}
	log.Info("guide generated", "took", p.now().Sub(started).String(), "cards", len(guide.FlashCards), "questions", len(guide.Quiz))

	p.notifier.UploadStatus(in.UploadID, StatusSaving, 80, "")
	guide.ID = p.newID()
	guide.Filename = in.Filename
	guide.CreatedAt = p.now().UnixMilli()
	if _, err := p.store.Create(ctx, guide); err != nil {
		p.notifier.UploadStatus(in.UploadID, StatusFailed, 100, err.Error())
		return models.StudyGuide{}, fmt.Errorf("store guide: %w", err)
	}

	if key := p.archiveSource(ctx, guide.ID, in); key != "" {
		if err := p.store.Update(ctx, guide.ID, map[string]any{"source_key": key}); err != nil {
			log.Warn("failed to record source key", "guide_id", guide.ID, "error", err)
		} else {
			guide.SourceKey = key
		}
	}

	p.notifier.UploadStatus(in.UploadID, StatusDone, 100, "")
	p.notifier.GuidesChanged()
	return guide, nil
}

// archiveSource copies the uploaded file to object storage. Failures are
// logged and reported as "".
func (p *Pipeline) archiveSource(ctx context.Context, guideID string, in UploadInput) string {
	if p.archive == nil {
		return ""
	}
	key := storage.SourceKey(guideID, in.Filename)
	f, err := os.Open(in.Path)
	if err != nil {
		p.log.Warn("archive: open upload", "guide_id", guideID, "error", err)
		return ""
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	if err := p.archive.Put(ctx, key, f, size, storage.ContentType(in.Filename)); err != nil {
		p.log.Warn("archive: upload source", "guide_id", guideID, "key", key, "error", err)
		return ""
	}
	return key
}

// DeleteSource removes an archived source best-effort.
func (p *Pipeline) DeleteSource(ctx context.Context, key string) {
	if p.archive == nil || key == "" {
		return
	}
	if err := p.archive.Delete(ctx, key); err != nil {
		p.log.Warn("archive: delete source", "key", key, "error", err)
	}
}
