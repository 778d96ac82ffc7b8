package entities

import (
	"errors"
	"fmt"
	"time"
)

// SessionState is the position of a quiz session in its lifecycle.
type SessionState int

const (
	StateAwaitingAnswer SessionState = iota // current question has no answer yet
	StateAnswered                           // current question has an answer, Advance is allowed
	StateCompleted                          // every question answered, result available
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateAnswered:
		return "answered"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TimeoutPolicy decides what happens when a question's time limit runs out.
type TimeoutPolicy string

const (
	// TimeoutAutoSelectFirst answers the question with option 0.
	TimeoutAutoSelectFirst TimeoutPolicy = "auto_select_first"
	// TimeoutLeaveUnanswered marks the question as expired and keeps
	// advancement blocked until the user answers.
	TimeoutLeaveUnanswered TimeoutPolicy = "leave_unanswered"
)

// Valid reports whether p is a known policy.
func (p TimeoutPolicy) Valid() bool {
	return p == TimeoutAutoSelectFirst || p == TimeoutLeaveUnanswered
}

// SessionOptions are the capability flags of a quiz session.
type SessionOptions struct {
	AllowBackNavigation  bool
	PerQuestionTimeLimit time.Duration // zero means no limit
	TimeoutPolicy        TimeoutPolicy
}

// DefaultSessionOptions returns forward-only options without a time limit.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		TimeoutPolicy: TimeoutAutoSelectFirst,
	}
}

var (
	ErrIllegalTransition      = errors.New("illegal quiz transition")
	ErrAlreadyAnswered        = fmt.Errorf("%w: question already answered", ErrIllegalTransition)
	ErrNotAnswered            = fmt.Errorf("%w: question not answered yet", ErrIllegalTransition)
	ErrSessionCompleted       = fmt.Errorf("%w: session already completed", ErrIllegalTransition)
	ErrBackNavigationDisabled = fmt.Errorf("%w: back navigation disabled", ErrIllegalTransition)
	ErrAtFirstQuestion        = fmt.Errorf("%w: already at first question", ErrIllegalTransition)
	ErrInvalidOption          = fmt.Errorf("%w: option index out of range", ErrIllegalTransition)
)

// QuizSession is one user's attempt at a question set.
// It is not safe for concurrent use; callers serialise access.
type QuizSession struct {
	ID          int64
	UserID      int64
	Options     SessionOptions
	StartedAt   time.Time
	CompletedAt *time.Time

	questions    QuestionSet
	currentIndex int
	selected     *int
	recorded     []int
	expired      bool
	result       *QuizResult
}

// NewQuizSession creates a session positioned at the first question.
// The set must already be validated and non-empty.
func NewQuizSession(userID int64, set QuestionSet, opts SessionOptions) *QuizSession {
	if !opts.TimeoutPolicy.Valid() {
		opts.TimeoutPolicy = TimeoutAutoSelectFirst
	}
	return &QuizSession{
		UserID:    userID,
		Options:   opts,
		StartedAt: time.Now(),
		questions: set.Clone(),
		recorded:  make([]int, 0, set.Len()),
	}
}

// State returns the current lifecycle state.
func (qs *QuizSession) State() SessionState {
	switch {
	case qs.result != nil:
		return StateCompleted
	case qs.selected != nil:
		return StateAnswered
	default:
		return StateAwaitingAnswer
	}
}

// Questions returns the question set the session runs on.
func (qs *QuizSession) Questions() QuestionSet { return qs.questions }

// CurrentIndex returns the zero-based index of the displayed question.
func (qs *QuizSession) CurrentIndex() int { return qs.currentIndex }

// CurrentQuestion returns the displayed question.
func (qs *QuizSession) CurrentQuestion() Question { return qs.questions.Questions[qs.currentIndex] }

// Total returns the number of questions in the session.
func (qs *QuizSession) Total() int { return qs.questions.Len() }

// Selected returns the option chosen for the current question, if any.
func (qs *QuizSession) Selected() (int, bool) {
	if qs.selected == nil {
		return 0, false
	}
	return *qs.selected, true
}

// Recorded returns a copy of the answers recorded so far.
func (qs *QuizSession) Recorded() []int {
	return append([]int(nil), qs.recorded...)
}

// Expired reports whether the current question ran out of time unanswered.
func (qs *QuizSession) Expired() bool { return qs.expired }

// CanGoBack reports whether GoBack would succeed.
func (qs *QuizSession) CanGoBack() bool {
	return qs.Options.AllowBackNavigation && qs.result == nil && qs.currentIndex > 0
}

// IsActive reports whether the session has not completed yet.
func (qs *QuizSession) IsActive() bool { return qs.result == nil }

// SelectOption records the user's choice for the current question.
// The first answer is sticky: a second call returns ErrAlreadyAnswered.
func (qs *QuizSession) SelectOption(i int) error {
	switch qs.State() {
	case StateCompleted:
		return ErrSessionCompleted
	case StateAnswered:
		return ErrAlreadyAnswered
	}

	if i < 0 || i >= len(qs.CurrentQuestion().Options) {
		return ErrInvalidOption
	}

	choice := i
	qs.selected = &choice
	qs.expired = false
	return nil
}

// Advance moves past the current, answered question. At the last question
// it computes the result and completes the session.
func (qs *QuizSession) Advance() (SessionState, error) {
	switch qs.State() {
	case StateCompleted:
		return StateCompleted, ErrSessionCompleted
	case StateAwaitingAnswer:
		return StateAwaitingAnswer, ErrNotAnswered
	}

	// Only the frontier question appends; revisited ones are already recorded.
	if qs.currentIndex == len(qs.recorded) {
		qs.recorded = append(qs.recorded, *qs.selected)
	}

	if qs.currentIndex+1 < qs.questions.Len() {
		qs.currentIndex++
		qs.restoreSelection()
		return qs.State(), nil
	}

	result, err := ComputeResult(qs.questions, qs.recorded)
	if err != nil {
		// Unreachable while the recorded/frontier invariant holds.
		panic(fmt.Sprintf("quiz session %d: %v", qs.ID, err))
	}
	qs.result = &result
	qs.selected = nil
	now := time.Now()
	qs.CompletedAt = &now

	return StateCompleted, nil
}

// GoBack moves to the previous question and restores its recorded answer.
// Recorded answers are never altered.
func (qs *QuizSession) GoBack() (SessionState, error) {
	switch {
	case qs.result != nil:
		return StateCompleted, ErrSessionCompleted
	case !qs.Options.AllowBackNavigation:
		return qs.State(), ErrBackNavigationDisabled
	case qs.currentIndex == 0:
		return qs.State(), ErrAtFirstQuestion
	}

	// Leaving the frontier drops an unadvanced selection; it was never recorded.
	qs.currentIndex--
	qs.expired = false
	qs.restoreSelection()
	return qs.State(), nil
}

// ExpireTime applies the timeout policy to the current question. It reports
// whether anything changed; answered or completed sessions are left alone.
func (qs *QuizSession) ExpireTime() bool {
	if qs.State() != StateAwaitingAnswer {
		return false
	}

	switch qs.Options.TimeoutPolicy {
	case TimeoutLeaveUnanswered:
		if qs.expired {
			return false
		}
		qs.expired = true
		return true
	default:
		return qs.SelectOption(0) == nil
	}
}

// Result returns the final tally once the session is completed.
func (qs *QuizSession) Result() (QuizResult, bool) {
	if qs.result == nil {
		return QuizResult{}, false
	}
	r := *qs.result
	r.Answers = append([]int(nil), r.Answers...)
	return r, true
}

// Review returns the per-question breakdown of a completed session.
func (qs *QuizSession) Review() ([]ReviewItem, bool) {
	if qs.result == nil {
		return nil, false
	}
	return BuildReview(qs.questions, *qs.result), true
}

func (qs *QuizSession) restoreSelection() {
	qs.selected = nil
	if qs.currentIndex < len(qs.recorded) {
		prev := qs.recorded[qs.currentIndex]
		qs.selected = &prev
	}
}
