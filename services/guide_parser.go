package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vnkhanh/scholar-ai-backend/models"
)

// ErrMalformedResponse wraps every provider response that cannot become a
// study guide. It is never retried.
var ErrMalformedResponse = errors.New("malformed generation response")

type rawGuide struct {
	Title         string            `json:"title"`
	Summary       string            `json:"summary"`
	Topics        []json.RawMessage `json:"topics"`
	StudyTips     []json.RawMessage `json:"study_tips"`
	FlashCards    []json.RawMessage `json:"flash_cards"`
	Quiz          []json.RawMessage `json:"quiz"`
	StudySchedule []json.RawMessage `json:"study_schedule"`
}

type rawQuestion struct {
	Question        string   `json:"question"`
	PossibleAnswers []string `json:"possible_answers"`
	Index           *int     `json:"index"`
}

// stripFences removes a ```json ... ``` wrapper some models add even in JSON
// response mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseGuide decodes a provider response into the guide content fields.
// title and summary are required. Entries that break an invariant are
// dropped and described in Warnings.
func ParseGuide(text string) (models.StudyGuide, error) {
	var raw rawGuide
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return models.StudyGuide{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	g := models.StudyGuide{
		Title:   strings.TrimSpace(raw.Title),
		Summary: strings.TrimSpace(raw.Summary),
	}
	var missing []string
	if g.Title == "" {
		missing = append(missing, "title")
	}
	if g.Summary == "" {
		missing = append(missing, "summary")
	}
	if len(missing) > 0 {
		return models.StudyGuide{}, fmt.Errorf("%w: missing %s", ErrMalformedResponse, strings.Join(missing, ", "))
	}

	warn := func(format string, args ...any) {
		g.Warnings = append(g.Warnings, fmt.Sprintf(format, args...))
	}

	for i, msg := range raw.FlashCards {
		card, err := decodeFlashCard(msg)
		if err == nil {
			err = card.Validate()
		}
		if err != nil {
			warn("dropped flash_cards[%d]: %v", i, err)
			continue
		}
		g.FlashCards = append(g.FlashCards, card)
	}

	for i, msg := range raw.Quiz {
		q, err := decodeQuestion(msg)
		if err != nil {
			warn("dropped quiz[%d]: %v", i, err)
			continue
		}
		g.Quiz = append(g.Quiz, q)
	}

	for i, msg := range raw.StudySchedule {
		var e models.ScheduleEntry
		err := json.Unmarshal(msg, &e)
		if err == nil {
			err = e.Validate()
		}
		if err != nil {
			warn("dropped study_schedule[%d]: %v", i, err)
			continue
		}
		e.Title = strings.TrimSpace(e.Title)
		e.Completed = nil
		g.StudySchedule = append(g.StudySchedule, e)
	}

	for i, msg := range raw.Topics {
		t, err := decodeTopic(msg)
		if err != nil {
			warn("dropped topics[%d]: %v", i, err)
			continue
		}
		g.Topics = append(g.Topics, t)
	}

	for i, msg := range raw.StudyTips {
		var tip string
		if err := json.Unmarshal(msg, &tip); err != nil || strings.TrimSpace(tip) == "" {
			warn("dropped study_tips[%d]: not a non-empty string", i)
			continue
		}
		g.StudyTips = append(g.StudyTips, strings.TrimSpace(tip))
	}

	return g, nil
}

// decodeFlashCard accepts ["front", "back"] and {"front": .., "back": ..}.
func decodeFlashCard(msg json.RawMessage) (models.FlashCard, error) {
	var pair []string
	if err := json.Unmarshal(msg, &pair); err == nil {
		for i := range pair {
			pair[i] = strings.TrimSpace(pair[i])
		}
		return models.FlashCard(pair), nil
	}
	var obj struct {
		Front string `json:"front"`
		Back  string `json:"back"`
	}
	if err := json.Unmarshal(msg, &obj); err != nil {
		return nil, errors.New("not a [front, back] pair")
	}
	return models.NewFlashCard(strings.TrimSpace(obj.Front), strings.TrimSpace(obj.Back)), nil
}

func decodeQuestion(msg json.RawMessage) (models.QuizQuestion, error) {
	var rq rawQuestion
	if err := json.Unmarshal(msg, &rq); err != nil {
		return models.QuizQuestion{}, err
	}
	if rq.Index == nil {
		return models.QuizQuestion{}, errors.New("index is missing")
	}
	if len(rq.PossibleAnswers) < 2 {
		return models.QuizQuestion{}, fmt.Errorf("needs at least 2 possible answers, got %d", len(rq.PossibleAnswers))
	}
	q := models.QuizQuestion{
		Question:        strings.TrimSpace(rq.Question),
		PossibleAnswers: rq.PossibleAnswers,
		Index:           *rq.Index,
	}
	if err := q.Validate(); err != nil {
		return models.QuizQuestion{}, err
	}
	return q, nil
}

// decodeTopic accepts {"name", "difficulty"} objects and bare strings.
func decodeTopic(msg json.RawMessage) (models.Topic, error) {
	var name string
	if err := json.Unmarshal(msg, &name); err == nil {
		if strings.TrimSpace(name) == "" {
			return models.Topic{}, errors.New("empty topic")
		}
		return models.Topic{Name: strings.TrimSpace(name)}, nil
	}
	var t models.Topic
	if err := json.Unmarshal(msg, &t); err != nil {
		return models.Topic{}, err
	}
	if strings.TrimSpace(t.Name) == "" {
		return models.Topic{}, errors.New("topic name is empty")
	}
	t.Name = strings.TrimSpace(t.Name)
	return t, nil
}

// parseSchedule decodes {"study_schedule": [...]} and drops invalid entries.
func parseSchedule(text string) ([]models.ScheduleEntry, error) {
	var raw struct {
		StudySchedule []json.RawMessage `json:"study_schedule"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	out := make([]models.ScheduleEntry, 0, len(raw.StudySchedule))
	for _, msg := range raw.StudySchedule {
		var e models.ScheduleEntry
		if err := json.Unmarshal(msg, &e); err != nil || e.Validate() != nil {
			continue
		}
		e.Completed = nil
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty schedule", ErrMalformedResponse)
	}
	return out, nil
}

func parseMessage(text string) (string, error) {
	var raw struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(raw.Message) == "" {
		return "", fmt.Errorf("%w: empty message", ErrMalformedResponse)
	}
	return strings.TrimSpace(raw.Message), nil
}

// shuffleAnswers permutes each question's answers and moves index with the
// correct answer.
func shuffleAnswers(quiz []models.QuizQuestion, shuffle func(n int, swap func(i, j int))) {
	for qi := range quiz {
		q := &quiz[qi]
		answers := append([]string(nil), q.PossibleAnswers...)
		pos := make([]int, len(answers))
		for i := range pos {
			pos[i] = i
		}
		shuffle(len(answers), func(i, j int) {
			answers[i], answers[j] = answers[j], answers[i]
			pos[i], pos[j] = pos[j], pos[i]
		})
		for i, orig := range pos {
			if orig == q.Index {
				q.Index = i
				break
			}
		}
		q.PossibleAnswers = answers
	}
}
