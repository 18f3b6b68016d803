// Package studyview models the interactive guide screen: switching tabs,
// paging flashcards and taking the quiz. Every transition returns a new View
// and never mutates its receiver.
package studyview

import (
	"math"

	"github.com/vnkhanh/scholar-ai-backend/models"
)

type Tab string

const (
	TabSummary    Tab = "summary"
	TabFlashcards Tab = "flashcards"
	TabQuiz       Tab = "quiz"
)

type View struct {
	Cards []models.FlashCard
	Quiz  []models.QuizQuestion

	Tab       Tab
	CardIndex int
	Flipped   bool

	Started       bool
	QuestionIndex int
	// Answers[i] is the selected answer of question i, nil while unanswered.
	Answers   []*int
	Completed bool
	Score     int
}

func New(g models.StudyGuide) View {
	return View{
		Cards:   g.FlashCards,
		Quiz:    g.Quiz,
		Tab:     TabSummary,
		Answers: make([]*int, len(g.Quiz)),
	}
}

func (v View) resetQuiz() View {
	v.Started = false
	v.QuestionIndex = 0
	v.Answers = make([]*int, len(v.Quiz))
	v.Completed = false
	v.Score = 0
	return v
}

// WithTab switches tab. Entering flashcards rewinds the deck; entering the
// quiz clears all quiz state.
func (v View) WithTab(t Tab) View {
	v.Tab = t
	switch t {
	case TabFlashcards:
		v.CardIndex = 0
		v.Flipped = false
	case TabQuiz:
		v = v.resetQuiz()
	}
	return v
}

func (v View) FlipCard() View {
	v.Flipped = !v.Flipped
	return v
}

func (v View) NextCard() View {
	if v.CardIndex < len(v.Cards)-1 {
		v.CardIndex++
	}
	v.Flipped = false
	return v
}

func (v View) PrevCard() View {
	if v.CardIndex > 0 {
		v.CardIndex--
	}
	v.Flipped = false
	return v
}

// CurrentCard returns the card under the cursor, false for an empty deck.
func (v View) CurrentCard() (models.FlashCard, bool) {
	if v.CardIndex < 0 || v.CardIndex >= len(v.Cards) {
		return nil, false
	}
	return v.Cards[v.CardIndex], true
}

func (v View) StartQuiz() View {
	v = v.resetQuiz()
	v.Started = true
	return v
}

// SelectAnswer records answer for the current question. It is a no-op once
// the quiz is submitted.
func (v View) SelectAnswer(answer int) View {
	if v.Completed || v.QuestionIndex < 0 || v.QuestionIndex >= len(v.Quiz) {
		return v
	}
	answers := make([]*int, len(v.Quiz))
	copy(answers, v.Answers)
	a := answer
	answers[v.QuestionIndex] = &a
	v.Answers = answers
	return v
}

func (v View) NextQuestion() View {
	if v.QuestionIndex < len(v.Quiz)-1 {
		v.QuestionIndex++
	}
	return v
}

func (v View) PrevQuestion() View {
	if v.QuestionIndex > 0 {
		v.QuestionIndex--
	}
	return v
}

// SubmitQuiz locks the quiz and recomputes the score from the answers.
func (v View) SubmitQuiz() View {
	v.Completed = true
	v.Score = 0
	for i := range v.Quiz {
		if v.IsAnswerCorrect(i) {
			v.Score++
		}
	}
	return v
}

func (v View) ResetQuiz() View {
	return v.resetQuiz()
}

func (v View) IsAnswerCorrect(i int) bool {
	if i < 0 || i >= len(v.Quiz) || i >= len(v.Answers) || v.Answers[i] == nil {
		return false
	}
	return *v.Answers[i] == v.Quiz[i].Index
}

// Percentage is round(100 * score / questions), 0 for an empty quiz.
func (v View) Percentage() int {
	if len(v.Quiz) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(v.Score) / float64(len(v.Quiz))))
}

type Result struct {
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Correct    []bool `json:"correct"`
}

// Grade replays answers through a fresh quiz session and submits it. A nil
// entry leaves that question unanswered.
func Grade(quiz []models.QuizQuestion, answers []*int) Result {
	v := New(models.StudyGuide{Quiz: quiz}).WithTab(TabQuiz).StartQuiz()
	for i := 0; i < len(quiz) && i < len(answers); i++ {
		if answers[i] != nil {
			v = v.SelectAnswer(*answers[i])
		}
		v = v.NextQuestion()
	}
	v = v.SubmitQuiz()

	correct := make([]bool, len(quiz))
	for i := range quiz {
		correct[i] = v.IsAnswerCorrect(i)
	}
	return Result{Score: v.Score, Total: len(quiz), Percentage: v.Percentage(), Correct: correct}
}
