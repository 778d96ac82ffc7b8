package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/infra/postgres"
)

// AttemptRepository provides access to completed quiz attempts in the database.
type AttemptRepository struct {
	db postgres.DBTX
}

// NewAttemptRepository creates a new AttemptRepository with the provided database pool.
func NewAttemptRepository(db postgres.DBTX) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// CreateWithTx stores a completed attempt within a transaction.
func (r *AttemptRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, a *entities.QuizAttempt) (int64, error) {
	query := `
		INSERT INTO quiz_attempts (
			user_id, source, topic, score, total,
			percentage, answers, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := tx.QueryRow(
		ctx,
		query,
		a.UserID,
		a.Source,
		a.Topic,
		a.Score,
		a.Total,
		a.Percentage,
		a.Answers,
		a.StartedAt,
		a.CompletedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create quiz attempt: %w", err)
	}

	return id, nil
}

// ListRecent returns the user's latest attempts, newest first.
func (r *AttemptRepository) ListRecent(ctx context.Context, userID int64, limit int) ([]*entities.QuizAttempt, error) {
	query := `
		SELECT id, user_id, source, topic, score, total,
		       percentage, answers, started_at, completed_at
		FROM quiz_attempts
		WHERE user_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*entities.QuizAttempt
	for rows.Next() {
		var a entities.QuizAttempt
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Source,
			&a.Topic,
			&a.Score,
			&a.Total,
			&a.Percentage,
			&a.Answers,
			&a.StartedAt,
			&a.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}

	return attempts, nil
}
