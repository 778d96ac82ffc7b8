package repository_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/repository"
)

func newRepo(t *testing.T) *repository.QuestionRepository {
	t.Helper()
	r, err := repository.NewQuestionRepository()
	if err != nil {
		t.Fatalf("new question repository: %v", err)
	}
	return r
}

func TestLoadDefaultIsDeterministic(t *testing.T) {
	r := newRepo(t)

	first := r.LoadDefault()
	second := r.LoadDefault()

	if first.Len() != 10 {
		t.Fatalf("default set has %d questions, want 10", first.Len())
	}
	if first.Source != entities.SourceDefault {
		t.Fatalf("source = %q", first.Source)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("LoadDefault returned different sets")
	}
	if err := first.Validate(); err != nil {
		t.Fatalf("default set invalid: %v", err)
	}

	first.Questions[0].Options[0] = "mutated"
	if r.LoadDefault().Questions[0].Options[0] == "mutated" {
		t.Fatal("LoadDefault shares backing arrays between calls")
	}
}

func TestParseExternal(t *testing.T) {
	r := newRepo(t)

	raw := []byte(`{"questions":[
		{"question":"What is virtue?","options":["a","b","c","d"],"correctAnswer":2,"explanation":"Because."},
		{"id":"given","question":"What is justice?","options":["a","b","c","d"],"correctAnswer":0}
	]}`)

	set, err := r.ParseExternal(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if set.Len() != 2 || set.Source != entities.SourceGenerated {
		t.Fatalf("set = %+v", set)
	}
	if set.Questions[0].ID == "" {
		t.Fatal("synthetic id not assigned")
	}
	if set.Questions[1].ID != "given" {
		t.Fatalf("explicit id replaced: %q", set.Questions[1].ID)
	}
	if set.Questions[0].CorrectIndex != 2 || set.Questions[0].Explanation != "Because." {
		t.Fatalf("question 0 = %+v", set.Questions[0])
	}
}

func TestParseExternalAssignsUniqueIDs(t *testing.T) {
	r := newRepo(t)

	raw := []byte(`{"questions":[
		{"question":"one","options":["a","b","c","d"],"correctAnswer":0},
		{"question":"two","options":["a","b","c","d"],"correctAnswer":1},
		{"question":"three","options":["a","b","c","d"],"correctAnswer":2}
	]}`)

	set, err := r.ParseExternal(raw)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, q := range set.Questions {
		if q.ID == "" || seen[q.ID] {
			t.Fatalf("id %q empty or duplicated", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestParseExternalStripsCodeFence(t *testing.T) {
	r := newRepo(t)

	const payload = `{"questions":[{"question":"q","options":["a","b","c","d"],"correctAnswer":1}]}`
	const multiline = "{\n  \"questions\": [{\"question\": \"q\", \"options\": [\"a\", \"b\", \"c\", \"d\"], \"correctAnswer\": 1}]\n}"

	tests := map[string]string{
		"json tag on own line":  "```json\n" + payload + "\n```",
		"bare fence":            "```\n" + payload + "\n```",
		"json tag on same line": "```json" + payload + "```",
		"bare fence same line":  "```" + multiline + "\n```",
		"tag with spaces":       "```JSON  " + payload + "  ```",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			set, err := r.ParseExternal([]byte(raw))
			if err != nil {
				t.Fatalf("parse fenced payload: %v", err)
			}
			if set.Len() != 1 || set.Questions[0].CorrectIndex != 1 {
				t.Fatalf("set = %+v", set)
			}
		})
	}
}

func TestParseExternalRejects(t *testing.T) {
	r := newRepo(t)

	tests := map[string]string{
		"malformed json":     `{"questions": [`,
		"not an object":      `[1, 2, 3]`,
		"missing questions":  `{"items": []}`,
		"null questions":     `{"questions": null}`,
		"empty questions":    `{"questions": []}`,
		"three options":      `{"questions":[{"question":"q","options":["a","b","c"],"correctAnswer":0}]}`,
		"index out of range": `{"questions":[{"question":"q","options":["a","b","c","d"],"correctAnswer":4}]}`,
		"missing answer":     `{"questions":[{"question":"q","options":["a","b","c","d"]}]}`,
		"empty prompt":       `{"questions":[{"question":"","options":["a","b","c","d"],"correctAnswer":0}]}`,
		"wrong answer type":  `{"questions":[{"question":"q","options":["a","b","c","d"],"correctAnswer":"b"}]}`,
		"null item":          `{"questions":[null]}`,
		"empty input":        ``,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := r.ParseExternal([]byte(raw)); !errors.Is(err, repository.ErrInvalidQuestionSet) {
				t.Fatalf("err = %v, want ErrInvalidQuestionSet", err)
			}
		})
	}
}

func TestLoadExternalFallsBackToDefault(t *testing.T) {
	r := newRepo(t)

	tests := map[string]string{
		"empty list": `{"questions": []}`,
		// One bad record rejects the whole generated set.
		"one record with three options": `{"questions":[
			{"question":"ok","options":["a","b","c","d"],"correctAnswer":0},
			{"question":"bad","options":["a","b","c"],"correctAnswer":0}
		]}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			set, err := r.LoadExternal([]byte(raw))
			if !errors.Is(err, repository.ErrInvalidQuestionSet) {
				t.Fatalf("err = %v, want ErrInvalidQuestionSet", err)
			}
			if !reflect.DeepEqual(set, r.LoadDefault()) {
				t.Fatal("fallback is not the default set")
			}
		})
	}
}

func TestLoadExternalReturnsValidSet(t *testing.T) {
	r := newRepo(t)

	set, err := r.LoadExternal([]byte(`{"questions":[{"question":"q","options":["a","b","c","d"],"correctAnswer":3}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if set.Source != entities.SourceGenerated || set.Len() != 1 {
		t.Fatalf("set = %+v", set)
	}
}
