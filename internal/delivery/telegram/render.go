package telegram

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/service"
)

// renderSnapshot renders a session snapshot as message text and keyboard.
func renderSnapshot(snap service.Snapshot) (string, tgbotapi.InlineKeyboardMarkup) {
	switch {
	case snap.State == entities.StateCompleted && snap.Result != nil:
		return formatQuizResult(*snap.Result), buildQuizResultKeyboard()
	case snap.State == entities.StateAnswered:
		return formatAnswered(snap), buildQuizNavKeyboard(snap)
	default:
		return formatQuestion(snap), buildQuizAnswerKeyboard(snap)
	}
}

// rejectionText maps a refused quiz action to a short toast.
func rejectionText(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrStaleSession):
		return msgStaleButton, true
	case errors.Is(err, service.ErrNoActiveSession):
		return msgNoActiveQuiz, true
	case errors.Is(err, entities.ErrAlreadyAnswered):
		return msgAlreadyAnswered, true
	case errors.Is(err, entities.ErrNotAnswered):
		return msgAnswerFirst, true
	case errors.Is(err, entities.ErrBackNavigationDisabled):
		return msgBackDisabled, true
	case errors.Is(err, entities.ErrAtFirstQuestion):
		return msgAtFirstQuestion, true
	case errors.Is(err, entities.ErrSessionCompleted):
		return msgQuizCompleted, true
	case errors.Is(err, entities.ErrIllegalTransition):
		return msgStaleButton, true
	}
	return "", false
}
