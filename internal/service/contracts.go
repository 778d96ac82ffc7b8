package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/infra/ai"
)

type UserRepository interface {
	Save(ctx context.Context, user *entities.User) (bool, error)
	TouchActivityWithTx(ctx context.Context, tx pgx.Tx, userID int64, at time.Time) error
}

type PreferencesRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*entities.QuizPreferences, error)
	Upsert(ctx context.Context, prefs *entities.QuizPreferences) error
	SetUseGenerated(ctx context.Context, userID int64, use bool) error
}

type AttemptRepository interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, a *entities.QuizAttempt) (int64, error)
	ListRecent(ctx context.Context, userID int64, limit int) ([]*entities.QuizAttempt, error)
}

// Transactor runs fn inside a database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// QuestionSource supplies the built-in set and validates generated payloads.
type QuestionSource interface {
	LoadDefault() entities.QuestionSet
	ParseExternal(raw []byte) (entities.QuestionSet, error)
}

// SessionStorage keeps active sessions in memory, one per user.
type SessionStorage interface {
	NextID() int64
	Store(session *entities.QuizSession)
	Get(userID int64) (*entities.QuizSession, bool)
	Peek(userID int64) (*entities.QuizSession, bool)
	Delete(userID int64)
	PurgeIdle(ttl time.Duration) []int64
	Len() int
}

// QuestionGenerator produces raw, untrusted question payloads.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, req ai.GenerateRequest) ([]byte, error)
}

// TimeoutNotifier is told when a question's time limit ran out.
type TimeoutNotifier interface {
	NotifyTimeout(userID int64, snap Snapshot)
}
