package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
)

// historyLimit is how many attempts /history shows.
const historyLimit = 5

type Handler struct {
	bot               Bot
	logger            *zap.Logger
	userService       UserService
	quizService       QuizService
	generationService GenerationService

	defaultDifficulty entities.Difficulty
	defaultCount      int

	chats sync.Map // user ID -> chat ID
	wg    sync.WaitGroup
}

func NewHandler(
	bot Bot,
	logger *zap.Logger,
	userService UserService,
	quizService QuizService,
	generationService GenerationService,
	defaultDifficulty entities.Difficulty,
	defaultCount int,
) *Handler {
	return &Handler{
		bot:               bot,
		logger:            logger,
		userService:       userService,
		quizService:       quizService,
		generationService: generationService,
		defaultDifficulty: defaultDifficulty,
		defaultCount:      defaultCount,
	}
}

func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			h.wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				h.wg.Wait()
				return nil
			}
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.logger.Debug("callback received",
			zap.Int64("user_id", update.CallbackQuery.From.ID),
			zap.String("data", update.CallbackQuery.Data),
		)
		h.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		h.logger.Debug("update without message and callback")
		return
	}

	h.logger.Debug("update received",
		zap.Int64("chat_id", update.Message.Chat.ID),
		zap.String("text", update.Message.Text),
	)

	from := update.Message.From
	chatID := update.Message.Chat.ID
	h.chats.Store(from.ID, chatID)

	if err := h.userService.EnsureUser(ctx, from.ID, chatID); err != nil {
		h.logger.Error("failed to ensure user",
			zap.Int64("user_id", from.ID),
			zap.Error(err),
		)
	}

	if !update.Message.IsCommand() {
		_ = h.send(newMessage(chatID, msgUnknownCommand()))
		return
	}

	switch update.Message.Command() {
	case "start", "help":
		_ = h.send(newMessage(chatID, msgWelcome(h.generationService.Enabled())))

	case "quiz":
		_ = h.withErrorHandling(h.handleQuiz(from.ID))(ctx, chatID)

	case "restart":
		_ = h.withErrorHandling(h.handleRestart(from.ID))(ctx, chatID)

	case "generate":
		_ = h.withErrorHandling(h.handleGenerate(from.ID, update.Message.CommandArguments()))(ctx, chatID)

	case "cancel":
		_ = h.withErrorHandling(h.handleCancel(from.ID))(ctx, chatID)

	case "source":
		_ = h.withErrorHandling(h.handleSource(from.ID, update.Message.CommandArguments()))(ctx, chatID)

	case "review":
		_ = h.withErrorHandling(h.handleReview(from.ID))(ctx, chatID)

	case "history":
		_ = h.withErrorHandling(h.handleHistory(from.ID))(ctx, chatID)

	default:
		_ = h.send(newMessage(chatID, msgUnknownCommand()))
	}
}

// chatFor returns the chat the user last wrote from. Private chats share
// the user's ID, which is the fallback.
func (h *Handler) chatFor(userID int64) int64 {
	if v, ok := h.chats.Load(userID); ok {
		return v.(int64)
	}
	return userID
}

func (h *Handler) send(c tgbotapi.Chattable) error {
	if _, err := h.bot.Send(c); err != nil {
		h.logger.Error("failed to send telegram message",
			zap.Error(err),
		)
		return err
	}
	return nil
}

// answerCallback removes the user's "clock", optionally with a toast.
func (h *Handler) answerCallback(id, text string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		h.logger.Debug("callback answer error", zap.Error(err))
	}
}
