package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// GuideRecord is the gorm row for a StudyGuide. The whole guide lives in
// Document; Title, Filename and CreatedUnix are copied out for listing.
type GuideRecord struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	Title       string         `gorm:"type:text" json:"title"`
	Filename    string         `gorm:"size:255" json:"filename"`
	CreatedUnix int64          `gorm:"column:created_at;index;not null" json:"created_at"`
	Document    datatypes.JSON `gorm:"not null" json:"document"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GuideRecord) TableName() string {
	return "study_guides"
}

func NewGuideRecord(g StudyGuide) (GuideRecord, error) {
	doc, err := json.Marshal(g)
	if err != nil {
		return GuideRecord{}, fmt.Errorf("encode guide %s: %w", g.ID, err)
	}
	return GuideRecord{
		ID:          g.ID,
		Title:       g.Title,
		Filename:    g.Filename,
		CreatedUnix: g.CreatedAt,
		Document:    datatypes.JSON(doc),
	}, nil
}

func (r GuideRecord) Guide() (StudyGuide, error) {
	var g StudyGuide
	if err := json.Unmarshal(r.Document, &g); err != nil {
		return StudyGuide{}, fmt.Errorf("decode guide %s: %w", r.ID, err)
	}
	g.ID = r.ID
	g.CreatedAt = r.CreatedUnix
	return g, nil
}
