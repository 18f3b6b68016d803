package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGuide is wrapped by every validation failure of a StudyGuide.
var ErrInvalidGuide = errors.New("invalid study guide")

// ErrScheduleIndex is returned when a progress update targets a schedule
// entry that does not exist.
var ErrScheduleIndex = errors.New("schedule index out of range")

// FlashCard is a [front, back] pair. It is kept as a slice so that the
// two-sided invariant can be checked instead of silently truncated.
type FlashCard []string

func NewFlashCard(front, back string) FlashCard {
	return FlashCard{front, back}
}

func (c FlashCard) Front() string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

func (c FlashCard) Back() string {
	if len(c) < 2 {
		return ""
	}
	return c[1]
}

func (c FlashCard) Validate() error {
	if len(c) != 2 {
		return fmt.Errorf("must have exactly 2 sides, got %d", len(c))
	}
	if strings.TrimSpace(c[0]) == "" || strings.TrimSpace(c[1]) == "" {
		return errors.New("front and back must not be empty")
	}
	return nil
}

// QuizQuestion: Index is the 0-based position of the correct answer.
type QuizQuestion struct {
	Question        string   `json:"question"`
	PossibleAnswers []string `json:"possible_answers"`
	Index           int      `json:"index"`
}

func (q QuizQuestion) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return errors.New("question must not be empty")
	}
	if len(q.PossibleAnswers) == 0 {
		return errors.New("possible_answers must not be empty")
	}
	if q.Index < 0 || q.Index >= len(q.PossibleAnswers) {
		return fmt.Errorf("index %d out of range [0,%d)", q.Index, len(q.PossibleAnswers))
	}
	return nil
}

// CorrectAnswer returns the text of the correct choice.
func (q QuizQuestion) CorrectAnswer() string {
	if q.Index < 0 || q.Index >= len(q.PossibleAnswers) {
		return ""
	}
	return q.PossibleAnswers[q.Index]
}

type ScheduleEntry struct {
	DayOffset       int    `json:"day_offset"`
	Title           string `json:"title"`
	Details         string `json:"details"`
	DurationMinutes int    `json:"duration_minutes"`
	Type            string `json:"type,omitempty"`
	Difficulty      string `json:"difficulty,omitempty"`
	Completed       *bool  `json:"completed,omitempty"`
}

func (e ScheduleEntry) Validate() error {
	if e.DayOffset < 0 {
		return fmt.Errorf("day_offset must not be negative, got %d", e.DayOffset)
	}
	if e.DurationMinutes < 0 {
		return fmt.Errorf("duration_minutes must not be negative, got %d", e.DurationMinutes)
	}
	return nil
}

func (e ScheduleEntry) IsCompleted() bool {
	return e.Completed != nil && *e.Completed
}

type Topic struct {
	Name       string `json:"name"`
	Difficulty string `json:"difficulty,omitempty"`
}

// StudyGuide is the single persisted entity: one document per upload.
type StudyGuide struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Summary       string          `json:"summary"`
	FlashCards    []FlashCard     `json:"flash_cards"`
	Quiz          []QuizQuestion  `json:"quiz"`
	StudySchedule []ScheduleEntry `json:"study_schedule,omitempty"`
	Topics        []Topic         `json:"topics,omitempty"`
	StudyTips     []string        `json:"study_tips,omitempty"`
	Filename      string          `json:"filename"`
	CreatedAt     int64           `json:"created_at"`
	SourceKey     string          `json:"source_key,omitempty"`

	// Warnings lists generator output that was dropped because it broke an
	// invariant (see services.sanitizeGuide).
	Warnings []string `json:"warnings,omitempty"`
}

// GuideSummary is the listing projection of a StudyGuide.
type GuideSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Filename  string `json:"filename"`
	CreatedAt int64  `json:"created_at"`
}

func (g StudyGuide) Summarize() GuideSummary {
	return GuideSummary{
		ID:        g.ID,
		Title:     g.Title,
		Filename:  g.Filename,
		CreatedAt: g.CreatedAt,
	}
}

// Validate checks the structural invariants that the store enforces on write.
func (g StudyGuide) Validate() error {
	var problems []string
	for i, c := range g.FlashCards {
		if err := c.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("flash_cards[%d]: %v", i, err))
		}
	}
	for i, q := range g.Quiz {
		if err := q.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("quiz[%d]: %v", i, err))
		}
	}
	for i, e := range g.StudySchedule {
		if err := e.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("study_schedule[%d]: %v", i, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidGuide, strings.Join(problems, "; "))
	}
	return nil
}

// SetScheduleCompleted flags study_schedule[index] and leaves every other
// field untouched.
func (g *StudyGuide) SetScheduleCompleted(index int, completed bool) error {
	if index < 0 || index >= len(g.StudySchedule) {
		return fmt.Errorf("%w: %d (schedule has %d entries)", ErrScheduleIndex, index, len(g.StudySchedule))
	}
	g.StudySchedule[index].Completed = &completed
	return nil
}

// CompletedCount returns how many schedule entries are flagged completed.
func (g StudyGuide) CompletedCount() int {
	n := 0
	for _, e := range g.StudySchedule {
		if e.IsCompleted() {
			n++
		}
	}
	return n
}
