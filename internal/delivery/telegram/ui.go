package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/service"
)

// optionLabels prefix answer options on buttons.
var optionLabels = [entities.OptionsPerQuestion]string{"A", "B", "C", "D"}

// buildQuizAnswerKeyboard builds keyboard for a question waiting for an answer.
func buildQuizAnswerKeyboard(snap service.Snapshot) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, option := range snap.Question.Options {
		label := option
		if i < len(optionLabels) {
			label = optionLabels[i] + ". " + option
		}
		data := buildQuizAnswerCallback(snap.SessionID, snap.Index, i)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}

	if snap.CanGoBack {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Back", buildQuizBackCallback(snap.SessionID, snap.Index)),
		))
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// buildQuizNavKeyboard builds keyboard for an answered question.
func buildQuizNavKeyboard(snap service.Snapshot) tgbotapi.InlineKeyboardMarkup {
	next := "Next ▶️"
	if snap.Index == snap.Total-1 {
		next = "Finish 🏁"
	}

	var row []tgbotapi.InlineKeyboardButton
	if snap.CanGoBack {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("◀️ Back", buildQuizBackCallback(snap.SessionID, snap.Index)))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData(next, buildQuizNextCallback(snap.SessionID, snap.Index)))

	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// buildQuizResultKeyboard builds keyboard for quiz results screen.
func buildQuizResultKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Review answers", buildQuizReviewCallback()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Try again", buildQuizRestartCallback()),
		),
	)
}

// buildGeneratedKeyboard builds keyboard shown after a successful generation.
func buildGeneratedKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Start quiz", buildQuizStartCallback()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 Keep built-in questions", buildSourceCallback(entities.SourceDefault)),
		),
	)
}
