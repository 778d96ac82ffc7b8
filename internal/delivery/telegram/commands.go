package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/service"
)

// handleQuiz resumes the user's quiz, or starts a new one when there is none
// or their active question set changed.
func (h *Handler) handleQuiz(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		snap, err := h.quizService.Resume(ctx, userID)
		if err != nil {
			return fmt.Errorf("resume session: %w", err)
		}
		h.logger.Debug("quiz shown",
			zap.Int64("user_id", userID),
			zap.Int64("session_id", snap.SessionID),
			zap.String("source", snap.Source),
		)

		return h.sendSnapshot(chatID, snap)
	}
}

// handleRestart starts over on the active question set.
func (h *Handler) handleRestart(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		snap, err := h.quizService.Restart(ctx, userID)
		if err != nil {
			return fmt.Errorf("restart session: %w", err)
		}
		return h.sendSnapshot(chatID, snap)
	}
}

func (h *Handler) handleReview(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		items, result, err := h.quizService.Review(userID)
		switch {
		case errors.Is(err, service.ErrNoActiveSession):
			return h.send(newMessage(chatID, md(msgNoActiveQuiz)))
		case errors.Is(err, service.ErrNotCompleted):
			return h.send(newMessage(chatID, md(msgNotCompleted)))
		case err != nil:
			return fmt.Errorf("review: %w", err)
		}

		return h.send(newMessage(chatID, formatReview(items, result)))
	}
}

func (h *Handler) handleHistory(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		attempts, err := h.quizService.History(ctx, userID, historyLimit)
		if err != nil {
			return err
		}
		return h.send(newMessage(chatID, formatHistory(attempts)))
	}
}

// handleGenerate kicks off a generation in the background; the result is
// sent as a separate message.
func (h *Handler) handleGenerate(userID int64, args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		if !h.generationService.Enabled() {
			return h.send(newMessage(chatID, md(msgGenerationDisabled)))
		}

		req, ok := parseGenerateArgs(args, h.defaultDifficulty, h.defaultCount)
		if !ok {
			return h.send(newMessage(chatID, md(msgUseGenerate)))
		}

		if err := h.send(newMessage(chatID, md(fmt.Sprintf(msgGenerationStartedFt, req.count, req.difficulty, req.topic)))); err != nil {
			return err
		}

		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.generate(ctx, userID, chatID, req)
		}()

		return nil
	}
}

func (h *Handler) generate(ctx context.Context, userID, chatID int64, req generateArgs) {
	set, err := h.generationService.Generate(ctx, userID, req.topic, req.difficulty, req.count)
	switch {
	case err == nil:
		msg := newMessage(chatID, formatGenerated(set))
		msg.ReplyMarkup = buildGeneratedKeyboard()
		_ = h.send(msg)

	case errors.Is(err, service.ErrGenerationCanceled):
		// Cancel already answered the user.

	case errors.Is(err, service.ErrGenerationInProgress):
		_ = h.send(newMessage(chatID, md(msgGenerationBusy)))

	case errors.Is(err, service.ErrGenerationFailed):
		_ = h.send(newMessage(chatID, md(msgGenerationFallback)))

	default:
		h.logger.Error("generation failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		_ = h.send(newMessage(chatID, md(msgInternalError)))
	}
}

func (h *Handler) handleCancel(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		if h.generationService.Cancel(userID) {
			return h.send(newMessage(chatID, md(msgGenerationCanceled)))
		}
		return h.send(newMessage(chatID, md(msgNothingToCancel)))
	}
}

func (h *Handler) handleSource(userID int64, args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		switch strings.ToLower(strings.TrimSpace(args)) {
		case entities.SourceDefault:
			return h.setSource(ctx, chatID, userID, false)
		case entities.SourceGenerated:
			return h.setSource(ctx, chatID, userID, true)
		default:
			return h.send(newMessage(chatID, md(msgUseSource)))
		}
	}
}

func (h *Handler) setSource(ctx context.Context, chatID, userID int64, useGenerated bool) error {
	err := h.generationService.UseGenerated(ctx, userID, useGenerated)
	switch {
	case errors.Is(err, service.ErrNoGeneratedSet):
		return h.send(newMessage(chatID, md(msgNoGeneratedSet)))
	case err != nil:
		return err
	case useGenerated:
		return h.send(newMessage(chatID, md(msgSourceGenerated)))
	default:
		return h.send(newMessage(chatID, md(msgSourceDefault)))
	}
}

// sendSnapshot sends the session's current screen as a new message.
func (h *Handler) sendSnapshot(chatID int64, snap service.Snapshot) error {
	text, kb := renderSnapshot(snap)
	msg := newMessage(chatID, text)
	msg.ReplyMarkup = kb
	return h.send(msg)
}

type generateArgs struct {
	topic      string
	difficulty entities.Difficulty
	count      int
}

// parseGenerateArgs parses "<topic> [difficulty] [count]". The topic may
// contain spaces; difficulty and count are recognised from the end.
func parseGenerateArgs(args string, defDifficulty entities.Difficulty, defCount int) (generateArgs, bool) {
	fields := strings.Fields(args)
	req := generateArgs{difficulty: defDifficulty, count: defCount}

	if n := len(fields); n > 1 {
		if c, err := strconv.Atoi(fields[n-1]); err == nil && c > 0 {
			req.count = c
			fields = fields[:n-1]
		}
	}
	if n := len(fields); n > 1 {
		if d, ok := entities.ParseDifficulty(strings.ToLower(fields[n-1])); ok {
			req.difficulty = d
			fields = fields[:n-1]
		}
	}

	req.topic = strings.Join(fields, " ")
	return req, req.topic != ""
}

// NotifyTimeout tells the user their time ran out and shows where the
// session now stands.
func (h *Handler) NotifyTimeout(userID int64, snap service.Snapshot) {
	chatID := h.chatFor(userID)

	if snap.State == entities.StateAnswered {
		_ = h.send(newMessage(chatID, md(msgTimeUp)))
	}
	if err := h.sendSnapshot(chatID, snap); err != nil {
		h.logger.Warn("failed to notify timeout",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
}

// Commands lists the bot commands for the Telegram menu.
func Commands(generation bool) tgbotapi.SetMyCommandsConfig {
	cmds := []tgbotapi.BotCommand{
		{Command: "quiz", Description: "Start or resume a quiz"},
		{Command: "restart", Description: "Start over from the first question"},
		{Command: "review", Description: "Review your last finished quiz"},
		{Command: "history", Description: "Your recent results"},
		{Command: "help", Description: "How to use the bot"},
	}
	if generation {
		cmds = append(cmds,
			tgbotapi.BotCommand{Command: "generate", Description: "Generate questions on a topic"},
			tgbotapi.BotCommand{Command: "cancel", Description: "Stop a running generation"},
			tgbotapi.BotCommand{Command: "source", Description: "Choose default or generated questions"},
		)
	}
	return tgbotapi.NewSetMyCommands(cmds...)
}
