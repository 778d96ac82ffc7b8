package telegram

import (
	"errors"
	"strconv"
	"strings"
)

// Callback action constants.
const (
	actionQuiz   = "quiz"
	actionSource = "source"
)

// Quiz sub-actions.
const (
	quizStart   = "start"
	quizAnswer  = "answer"
	quizNext    = "next"
	quizBack    = "back"
	quizRestart = "restart"
	quizReview  = "review"
)

var errBadCallback = errors.New("malformed callback data")

// callbackData represents structured callback data.
type callbackData struct {
	Action string
	Params []string
	Raw    string
}

// encode creates callback string.
func (cd callbackData) encode() string {
	if len(cd.Params) == 0 {
		return cd.Action
	}
	return cd.Action + ":" + strings.Join(cd.Params, ":")
}

// decodeCallback parses callback data string.
func decodeCallback(data string) callbackData {
	parts := strings.Split(data, ":")
	return callbackData{
		Action: parts[0],
		Params: parts[1:],
		Raw:    data,
	}
}

// sub returns the sub-action, or "" when there is none.
func (cd callbackData) sub() string {
	if len(cd.Params) == 0 {
		return ""
	}
	return cd.Params[0]
}

// int64Param parses the i-th parameter as an int64.
func (cd callbackData) int64Param(i int) (int64, error) {
	if i >= len(cd.Params) {
		return 0, errBadCallback
	}
	v, err := strconv.ParseInt(cd.Params[i], 10, 64)
	if err != nil {
		return 0, errBadCallback
	}
	return v, nil
}

// intParam parses the i-th parameter as a non-negative int.
func (cd callbackData) intParam(i int) (int, error) {
	v, err := cd.int64Param(i)
	if err != nil || v < 0 || v > 1<<16 {
		return 0, errBadCallback
	}
	return int(v), nil
}

func buildQuizStartCallback() string {
	return callbackData{Action: actionQuiz, Params: []string{quizStart}}.encode()
}

// buildQuizAnswerCallback builds callback data for answering question index
// of a session with the given option.
func buildQuizAnswerCallback(sessionID int64, index, option int) string {
	return callbackData{
		Action: actionQuiz,
		Params: []string{
			quizAnswer,
			strconv.FormatInt(sessionID, 10),
			strconv.Itoa(index),
			strconv.Itoa(option),
		},
	}.encode()
}

// buildQuizNextCallback and buildQuizBackCallback carry the question index
// the button was shown for, so a repeated tap does not move twice.
func buildQuizNextCallback(sessionID int64, index int) string {
	return buildQuizMoveCallback(quizNext, sessionID, index)
}

func buildQuizBackCallback(sessionID int64, index int) string {
	return buildQuizMoveCallback(quizBack, sessionID, index)
}

func buildQuizMoveCallback(sub string, sessionID int64, index int) string {
	return callbackData{
		Action: actionQuiz,
		Params: []string{sub, strconv.FormatInt(sessionID, 10), strconv.Itoa(index)},
	}.encode()
}

func buildQuizRestartCallback() string {
	return callbackData{Action: actionQuiz, Params: []string{quizRestart}}.encode()
}

func buildQuizReviewCallback() string {
	return callbackData{Action: actionQuiz, Params: []string{quizReview}}.encode()
}

// buildSourceCallback builds callback data for switching the question source.
func buildSourceCallback(source string) string {
	return callbackData{Action: actionSource, Params: []string{source}}.encode()
}
