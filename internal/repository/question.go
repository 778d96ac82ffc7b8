package repository

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
)

var ErrInvalidQuestionSet = errors.New("invalid question set")

//go:embed default_questions.json
var defaultQuestionsJSON []byte

// payload is the wire shape shared by the built-in set and generated sets.
type payload struct {
	Questions *[]rawQuestion `json:"questions"`
}

type rawQuestion struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// QuestionRepository supplies the question sets that drive quiz sessions.
type QuestionRepository struct {
	defaults entities.QuestionSet
}

// NewQuestionRepository creates a QuestionRepository backed by the built-in set.
func NewQuestionRepository() (*QuestionRepository, error) {
	set, err := parse(defaultQuestionsJSON, false)
	if err != nil {
		return nil, fmt.Errorf("load default questions: %w", err)
	}
	set.Source = entities.SourceDefault

	return &QuestionRepository{defaults: set}, nil
}

// LoadDefault returns a copy of the built-in question set.
func (r *QuestionRepository) LoadDefault() entities.QuestionSet {
	return r.defaults.Clone()
}

// ParseExternal validates a generated payload and converts it into a set.
// Any invalid record rejects the whole payload.
func (r *QuestionRepository) ParseExternal(raw []byte) (entities.QuestionSet, error) {
	set, err := parse(raw, true)
	if err != nil {
		return entities.QuestionSet{}, err
	}
	set.Source = entities.SourceGenerated

	return set, nil
}

// LoadExternal is ParseExternal with a fallback: on any error it returns the
// default set together with the error, so callers never get an empty set.
func (r *QuestionRepository) LoadExternal(raw []byte) (entities.QuestionSet, error) {
	set, err := r.ParseExternal(raw)
	if err != nil {
		return r.LoadDefault(), err
	}
	return set, nil
}

func parse(raw []byte, synthesizeIDs bool) (entities.QuestionSet, error) {
	var p payload
	if err := json.Unmarshal(stripCodeFence(raw), &p); err != nil {
		return entities.QuestionSet{}, fmt.Errorf("%w: decode: %v", ErrInvalidQuestionSet, err)
	}

	if p.Questions == nil {
		return entities.QuestionSet{}, fmt.Errorf("%w: missing questions", ErrInvalidQuestionSet)
	}
	if len(*p.Questions) == 0 {
		return entities.QuestionSet{}, fmt.Errorf("%w: empty questions", ErrInvalidQuestionSet)
	}

	set := entities.QuestionSet{Questions: make([]entities.Question, 0, len(*p.Questions))}
	for i, rq := range *p.Questions {
		if rq.CorrectAnswer == nil {
			return entities.QuestionSet{}, fmt.Errorf("%w: question %d: missing correctAnswer", ErrInvalidQuestionSet, i)
		}

		q := entities.Question{
			ID:           strings.TrimSpace(rq.ID),
			Prompt:       strings.TrimSpace(rq.Question),
			Options:      make([]string, len(rq.Options)),
			CorrectIndex: *rq.CorrectAnswer,
			Explanation:  strings.TrimSpace(rq.Explanation),
		}
		for j, opt := range rq.Options {
			q.Options[j] = strings.TrimSpace(opt)
		}
		if q.ID == "" && synthesizeIDs {
			q.ID = uuid.NewString()
		}

		set.Questions = append(set.Questions, q)
	}

	if err := set.Validate(); err != nil {
		return entities.QuestionSet{}, fmt.Errorf("%w: %w", ErrInvalidQuestionSet, err)
	}

	return set, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence that language
// models like to wrap JSON in. The fence may sit on the same line as the JSON.
func stripCodeFence(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}

	// Everything before the first bracket is the language tag.
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexAny(s, "{["); i >= 0 {
		s = s[i:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return []byte(strings.TrimSpace(s))
}
