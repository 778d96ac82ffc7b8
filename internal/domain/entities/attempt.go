package entities

import "time"

// QuizAttempt is a completed quiz session as stored in the database.
type QuizAttempt struct {
	ID          int64
	UserID      int64
	Source      string // "default" or "generated"
	Topic       string
	Score       int
	Total       int
	Percentage  int
	Answers     []int
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewQuizAttempt builds an attempt record from a completed session.
// It returns false when the session has not completed.
func NewQuizAttempt(qs *QuizSession) (*QuizAttempt, bool) {
	result, ok := qs.Result()
	if !ok || qs.CompletedAt == nil {
		return nil, false
	}

	set := qs.Questions()
	return &QuizAttempt{
		UserID:      qs.UserID,
		Source:      set.Source,
		Topic:       set.Topic,
		Score:       result.Score,
		Total:       result.Total,
		Percentage:  result.Percentage,
		Answers:     result.Answers,
		StartedAt:   qs.StartedAt,
		CompletedAt: *qs.CompletedAt,
	}, true
}
