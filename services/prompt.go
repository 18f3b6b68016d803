package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vnkhanh/scholar-ai-backend/models"
)

// MaxTranscriptChars bounds how much of the transcript goes into a prompt.
const MaxTranscriptChars = 40000

const guideSchema = `{
  "title": "String",
  "summary": "String",
  "topics": [{"name": "Topic", "difficulty": "Easy|Medium|Hard"}],
  "study_tips": ["Tip"],
  "flash_cards": [["Front", "Back"]],
  "quiz": [{"question": "Q", "possible_answers": ["A", "B", "C", "D"], "index": 0}],
  "study_schedule": [{"day_offset": 1, "title": "...", "details": "...", "duration_minutes": 45, "type": "learning|review|practice", "difficulty": "Easy|Medium|Hard"}]
}`

const scheduleSchema = `{
  "study_schedule": [{"day_offset": 0, "title": "...", "details": "...", "duration_minutes": 30, "type": "learning|review|practice", "difficulty": "Easy|Medium|Hard"}]
}`

func orUnspecified(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "not specified"
	}
	return s
}

// BuildGuidePrompt embeds the learner preferences, the schema and the first
// MaxTranscriptChars characters of the cleaned transcript.
func BuildGuidePrompt(req GuideRequest) string {
	transcript := truncateRunes(PreCleanText(req.Transcript), MaxTranscriptChars)

	var b strings.Builder
	b.WriteString("You are an expert study planner.\n")
	fmt.Fprintf(&b, "Goals: %s. Difficulty: %s. Exam date: %s.\n", orUnspecified(req.Goals), orUnspecified(req.Difficulty), orUnspecified(req.ExamDate))
	b.WriteString("Generate a study guide as JSON with exactly this shape:\n")
	b.WriteString(guideSchema)
	b.WriteString("\nRules: every flash card has exactly two strings, front then back. ")
	b.WriteString("Every quiz question has at least two possible answers and index is the 0-based position of the correct one. ")
	b.WriteString("day_offset counts days from today, starting at 0, and must fit before the exam date when one is given.\n")
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	return b.String()
}

// BuildReplanPrompt asks for a fresh schedule that accounts for the entries
// the learner has not finished.
func BuildReplanPrompt(g models.StudyGuide, reason string) string {
	type entry struct {
		models.ScheduleEntry
		Completed bool `json:"completed"`
	}
	current := make([]entry, 0, len(g.StudySchedule))
	for _, e := range g.StudySchedule {
		current = append(current, entry{ScheduleEntry: e, Completed: e.IsCompleted()})
	}
	schedule, _ := json.Marshal(current)
	topics, _ := json.Marshal(g.Topics)

	var b strings.Builder
	b.WriteString("You are an expert study planner. A learner fell behind on their study plan.\n")
	fmt.Fprintf(&b, "Guide title: %s\n", g.Title)
	fmt.Fprintf(&b, "Reason given: %s\n", orUnspecified(reason))
	fmt.Fprintf(&b, "Topics: %s\n", topics)
	fmt.Fprintf(&b, "Current schedule: %s\n", schedule)
	b.WriteString("Rebuild the schedule for the unfinished work, starting at day_offset 0 (today). Keep sessions realistic for the reason given.\n")
	b.WriteString("Return JSON with exactly this shape:\n")
	b.WriteString(scheduleSchema)
	return b.String()
}

func BuildMotivationPrompt(completed, total int) string {
	return fmt.Sprintf(
		"A learner has completed %d of %d study sessions. Write one or two short, warm sentences of encouragement that reflect this progress. "+
			`Return JSON: {"message": "..."}`,
		completed, total,
	)
}
