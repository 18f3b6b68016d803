package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vnkhanh/scholar-ai-backend/models"
)

// GormStore keeps one study_guides row per guide with the full document in a
// JSON column. Works on postgres and sqlite.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, g models.StudyGuide) (string, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if !ValidID(g.ID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, g.ID)
	}
	if err := g.Validate(); err != nil {
		return "", err
	}
	rec, err := models.NewGuideRecord(g)
	if err != nil {
		return "", err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.GuideRecord{}).Where("id = ?", g.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrExists, g.ID)
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		if errors.Is(err, ErrExists) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", fmt.Errorf("%w: %s", ErrExists, g.ID)
		}
		return "", fmt.Errorf("insert guide %s: %w", g.ID, err)
	}
	return g.ID, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (models.StudyGuide, error) {
	rec, err := s.find(s.db.WithContext(ctx), id)
	if err != nil {
		return models.StudyGuide{}, err
	}
	return rec.Guide()
}

func (s *GormStore) find(tx *gorm.DB, id string) (models.GuideRecord, error) {
	var rec models.GuideRecord
	if err := tx.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rec, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return rec, fmt.Errorf("load guide %s: %w", id, err)
	}
	return rec, nil
}

// List reads only the projection columns.
func (s *GormStore) List(ctx context.Context) ([]models.GuideSummary, error) {
	var rows []models.GuideRecord
	err := s.db.WithContext(ctx).
		Select("id", "title", "filename", "created_at").
		Order("created_at DESC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list guides: %w", err)
	}
	out := make([]models.GuideSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.GuideSummary{
			ID:        r.ID,
			Title:     r.Title,
			Filename:  r.Filename,
			CreatedAt: r.CreatedUnix,
		})
	}
	return out, nil
}

func (s *GormStore) Update(ctx context.Context, id string, updates map[string]any) error {
	return s.modify(ctx, id, func(g models.StudyGuide) (models.StudyGuide, error) {
		return models.ApplyUpdates(g, updates)
	})
}

func (s *GormStore) SetScheduleCompleted(ctx context.Context, id string, index int, completed bool) error {
	return s.modify(ctx, id, func(g models.StudyGuide) (models.StudyGuide, error) {
		err := g.SetScheduleCompleted(index, completed)
		return g, err
	})
}

func (s *GormStore) modify(ctx context.Context, id string, fn func(models.StudyGuide) (models.StudyGuide, error)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.find(tx, id)
		if err != nil {
			return err
		}
		g, err := rec.Guide()
		if err != nil {
			return err
		}
		g, err = fn(g)
		if err != nil {
			return err
		}
		next, err := models.NewGuideRecord(g)
		if err != nil {
			return err
		}
		res := tx.Model(&models.GuideRecord{}).Where("id = ?", id).Updates(map[string]any{
			"title":    next.Title,
			"filename": next.Filename,
			"document": next.Document,
		})
		if res.Error != nil {
			return fmt.Errorf("update guide %s: %w", id, res.Error)
		}
		return nil
	})
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.GuideRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete guide %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
