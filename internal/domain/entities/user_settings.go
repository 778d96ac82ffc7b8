package entities

import "time"

// Difficulty of generated questions.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty converts user input into a Difficulty.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(s); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	}
	return "", false
}

// QuizPreferences is the per-user state that survives restarts: whether to
// use the generated question set, and the set itself.
type QuizPreferences struct {
	UserID       int64
	UseGenerated bool
	Generated    *QuestionSet // nil until a generation succeeds
	Difficulty   Difficulty
	UpdatedAt    time.Time
}

// NewQuizPreferences returns preferences that select the default set.
func NewQuizPreferences(userID int64) *QuizPreferences {
	return &QuizPreferences{
		UserID:     userID,
		Difficulty: DifficultyMedium,
		UpdatedAt:  time.Now(),
	}
}

// ActiveSet returns the generated set when it is selected and usable.
func (p *QuizPreferences) ActiveSet() (QuestionSet, bool) {
	if p == nil || !p.UseGenerated || p.Generated == nil || p.Generated.Len() == 0 {
		return QuestionSet{}, false
	}
	return *p.Generated, true
}
