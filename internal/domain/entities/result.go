package entities

import (
	"errors"
	"fmt"
	"math"
)

var ErrAnswerCountMismatch = errors.New("answer count does not match question count")

// QuizResult is the final tally of a completed session.
type QuizResult struct {
	Score      int   // number of correct answers
	Total      int   // number of questions
	Percentage int   // round(100 * Score / Total)
	Answers    []int // chosen option index per question
}

// ComputeResult scores recorded answers against the question set.
// The caller must supply exactly one answer per question.
func ComputeResult(set QuestionSet, answers []int) (QuizResult, error) {
	if set.Len() == 0 {
		return QuizResult{}, fmt.Errorf("%w: empty question set", ErrAnswerCountMismatch)
	}
	if len(answers) != set.Len() {
		return QuizResult{}, fmt.Errorf("%w: %d answers for %d questions",
			ErrAnswerCountMismatch, len(answers), set.Len())
	}

	score := 0
	for i, q := range set.Questions {
		if answers[i] == q.CorrectIndex {
			score++
		}
	}

	return QuizResult{
		Score:      score,
		Total:      set.Len(),
		Percentage: Percentage(score, set.Len()),
		Answers:    append([]int(nil), answers...),
	}, nil
}

// Percentage returns round(100 * score / total), rounding halves up.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}

// ReviewItem is the per-question breakdown shown after a quiz.
type ReviewItem struct {
	Prompt        string
	ChosenOption  string
	CorrectOption string
	IsCorrect     bool
	Explanation   string
}

// BuildReview assembles the per-question breakdown of a completed quiz.
func BuildReview(set QuestionSet, result QuizResult) []ReviewItem {
	items := make([]ReviewItem, 0, len(result.Answers))
	for i, chosen := range result.Answers {
		if i >= set.Len() {
			break
		}
		q := set.Questions[i]

		var chosenText string
		if chosen >= 0 && chosen < len(q.Options) {
			chosenText = q.Options[chosen]
		}

		items = append(items, ReviewItem{
			Prompt:        q.Prompt,
			ChosenOption:  chosenText,
			CorrectOption: q.CorrectOption(),
			IsCorrect:     chosen == q.CorrectIndex,
			Explanation:   q.Explanation,
		})
	}
	return items
}
