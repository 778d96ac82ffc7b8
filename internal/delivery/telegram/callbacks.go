package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/service"
)

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		h.answerCallback(cb.ID, "")
		return
	}

	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	h.chats.Store(userID, chatID)

	data := decodeCallback(cb.Data)

	var err error
	switch data.Action {
	case actionQuiz:
		err = h.handleQuizCallback(ctx, cb, data)
	case actionSource:
		h.answerCallback(cb.ID, "")
		err = h.setSource(ctx, chatID, userID, data.sub() == entities.SourceGenerated)
	default:
		h.logger.Debug("unknown callback", zap.String("data", cb.Data))
		h.answerCallback(cb.ID, "")
		return
	}

	if err != nil {
		h.logger.Error("callback error",
			zap.Int64("user_id", userID),
			zap.String("data", cb.Data),
			zap.Error(err),
		)
		_ = h.send(newMessage(chatID, md(msgInternalError)))
	}
}

func (h *Handler) handleQuizCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, data callbackData) error {
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	var (
		snap service.Snapshot
		err  error
	)

	switch data.sub() {
	case quizStart:
		h.answerCallback(cb.ID, "")
		return h.handleQuiz(userID)(ctx, chatID)

	case quizRestart:
		h.answerCallback(cb.ID, "")
		return h.handleRestart(userID)(ctx, chatID)

	case quizReview:
		h.answerCallback(cb.ID, "")
		return h.handleReview(userID)(ctx, chatID)

	case quizAnswer:
		snap, err = h.answer(ctx, userID, data)

	case quizNext:
		var sessionID int64
		if sessionID, err = h.checkCurrent(userID, data); err == nil {
			snap, err = h.quizService.Advance(ctx, userID, sessionID)
		}

	case quizBack:
		var sessionID int64
		if sessionID, err = h.checkCurrent(userID, data); err == nil {
			snap, err = h.quizService.GoBack(ctx, userID, sessionID)
		}

	default:
		h.answerCallback(cb.ID, "")
		return nil
	}

	if err != nil {
		if text, ok := rejectionText(err); ok {
			h.answerCallback(cb.ID, text)
			return nil
		}
		h.answerCallback(cb.ID, "")
		return err
	}

	h.answerCallback(cb.ID, "")

	text, kb := renderSnapshot(snap)
	edit := newEdit(chatID, cb.Message.MessageID, text)
	edit.ReplyMarkup = &kb
	return h.send(edit)
}

// answer applies an answer callback.
func (h *Handler) answer(ctx context.Context, userID int64, data callbackData) (service.Snapshot, error) {
	option, err := data.intParam(3)
	if err != nil {
		return service.Snapshot{}, service.ErrStaleSession
	}

	sessionID, err := h.checkCurrent(userID, data)
	if err != nil {
		return service.Snapshot{}, err
	}

	return h.quizService.SelectOption(ctx, userID, sessionID, option)
}

// checkCurrent returns the session ID of a quiz callback whose session and
// question index (params 1 and 2) are still current. Buttons of a question
// that is no longer shown are treated as stale.
func (h *Handler) checkCurrent(userID int64, data callbackData) (int64, error) {
	sessionID, err1 := data.int64Param(1)
	index, err2 := data.intParam(2)
	if errors.Join(err1, err2) != nil {
		return 0, service.ErrStaleSession
	}

	cur, err := h.quizService.Current(userID)
	if err != nil {
		return 0, err
	}
	if cur.SessionID != sessionID || cur.Index != index {
		return 0, service.ErrStaleSession
	}
	return sessionID, nil
}
