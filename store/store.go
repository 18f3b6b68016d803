package store

import (
	"context"
	"errors"
	"regexp"

	"github.com/vnkhanh/scholar-ai-backend/models"
)

var (
	ErrNotFound  = errors.New("guide not found")
	ErrExists    = errors.New("guide already exists")
	ErrInvalidID = errors.New("invalid guide id")
)

// GuideStore persists one document per study guide.
//
// Concurrent updates of the same id are not serialized: each call reads the
// current document, merges and writes it back, so the last writer wins.
type GuideStore interface {
	// Create writes g under g.ID, or under a fresh id when g.ID is empty.
	// It never overwrites an existing id.
	Create(ctx context.Context, g models.StudyGuide) (string, error)
	Get(ctx context.Context, id string) (models.StudyGuide, error)
	// List returns the listing projection, newest first.
	List(ctx context.Context) ([]models.GuideSummary, error)
	Update(ctx context.Context, id string, updates map[string]any) error
	SetScheduleCompleted(ctx context.Context, id string, index int, completed bool) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
