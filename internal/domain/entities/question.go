package entities

import (
	"errors"
	"fmt"
	"strings"
)

// OptionsPerQuestion is the number of answer options every question carries.
const OptionsPerQuestion = 4

var ErrInvalidQuestion = errors.New("invalid question")

// Question source names.
const (
	SourceDefault   = "default"
	SourceGenerated = "generated"
)

// Question is a single multiple-choice question.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"question"`
	Options      []string `json:"options"`       // exactly four, order is significant
	CorrectIndex int      `json:"correctAnswer"` // index into Options
	Explanation  string   `json:"explanation,omitempty"`
}

// Validate checks the question invariants.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%w: empty prompt", ErrInvalidQuestion)
	}
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("%w: expected %d options, got %d", ErrInvalidQuestion, OptionsPerQuestion, len(q.Options))
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("%w: option %d is empty", ErrInvalidQuestion, i)
		}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: correct index %d out of range", ErrInvalidQuestion, q.CorrectIndex)
	}
	return nil
}

// CorrectOption returns the text of the correct option.
func (q Question) CorrectOption() string {
	return q.Options[q.CorrectIndex]
}

// QuestionSet is the ordered collection of questions driving one quiz attempt.
type QuestionSet struct {
	Source    string
	Topic     string // set for generated questions only
	Questions []Question
}

// Len returns the number of questions in the set.
func (s QuestionSet) Len() int {
	return len(s.Questions)
}

// Clone returns a deep copy so that sessions never share backing arrays.
func (s QuestionSet) Clone() QuestionSet {
	out := QuestionSet{
		Source:    s.Source,
		Topic:     s.Topic,
		Questions: make([]Question, len(s.Questions)),
	}
	for i, q := range s.Questions {
		q.Options = append([]string(nil), q.Options...)
		out.Questions[i] = q
	}
	return out
}

// Validate checks that the set is non-empty and every question is valid.
func (s QuestionSet) Validate() error {
	if len(s.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidQuestion)
	}
	seen := make(map[string]struct{}, len(s.Questions))
	for i, q := range s.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
		if q.ID == "" {
			continue
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// SameAs reports whether both sets hold the same questions from the same
// source, in the same order.
func (s QuestionSet) SameAs(other QuestionSet) bool {
	if s.Source != other.Source || s.Topic != other.Topic || s.Len() != other.Len() {
		return false
	}
	for i, q := range s.Questions {
		o := other.Questions[i]
		if q.ID != o.ID || q.Prompt != o.Prompt {
			return false
		}
	}
	return true
}
