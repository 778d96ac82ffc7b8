package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/service"
)

// Bot is the part of *tgbotapi.BotAPI the handler uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

type UserService interface {
	EnsureUser(ctx context.Context, userID, chatID int64) error
}

type QuizService interface {
	Resume(ctx context.Context, userID int64) (service.Snapshot, error)
	Current(userID int64) (service.Snapshot, error)
	SelectOption(ctx context.Context, userID, sessionID int64, option int) (service.Snapshot, error)
	Advance(ctx context.Context, userID, sessionID int64) (service.Snapshot, error)
	GoBack(ctx context.Context, userID, sessionID int64) (service.Snapshot, error)
	Restart(ctx context.Context, userID int64) (service.Snapshot, error)
	Review(userID int64) ([]entities.ReviewItem, entities.QuizResult, error)
	History(ctx context.Context, userID int64, limit int) ([]*entities.QuizAttempt, error)
}

type GenerationService interface {
	Enabled() bool
	Generate(ctx context.Context, userID int64, topic string, difficulty entities.Difficulty, count int) (entities.QuestionSet, error)
	Cancel(userID int64) bool
	UseGenerated(ctx context.Context, userID int64, use bool) error
}
