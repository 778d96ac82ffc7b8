package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/infra/postgres"
)

var ErrPreferencesNotFound = errors.New("quiz preferences not found")

// PreferencesRepository stores whether a user plays the generated question
// set, and the set itself.
type PreferencesRepository struct {
	db postgres.DBTX
}

// NewPreferencesRepository creates a new PreferencesRepository with the provided database pool.
func NewPreferencesRepository(db postgres.DBTX) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// GetByUserID retrieves preferences for a user.
func (r *PreferencesRepository) GetByUserID(ctx context.Context, userID int64) (*entities.QuizPreferences, error) {
	query := `
		SELECT user_id, use_generated, generated_topic, generated_questions, difficulty, updated_at
		FROM quiz_preferences
		WHERE user_id = $1
	`

	var (
		prefs     entities.QuizPreferences
		topic     *string
		questions []byte
		diff      string
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&prefs.UserID,
		&prefs.UseGenerated,
		&topic,
		&questions,
		&diff,
		&prefs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	prefs.Difficulty = entities.Difficulty(diff)

	if len(questions) > 0 {
		var qs []entities.Question
		if err := json.Unmarshal(questions, &qs); err != nil {
			return nil, fmt.Errorf("decode generated questions: %w", err)
		}
		set := entities.QuestionSet{Source: entities.SourceGenerated, Questions: qs}
		if topic != nil {
			set.Topic = *topic
		}
		prefs.Generated = &set
	}

	return &prefs, nil
}

// Upsert saves the full preferences row.
func (r *PreferencesRepository) Upsert(ctx context.Context, prefs *entities.QuizPreferences) error {
	var (
		topic     *string
		questions []byte
	)
	if prefs.Generated != nil {
		data, err := json.Marshal(prefs.Generated.Questions)
		if err != nil {
			return fmt.Errorf("encode generated questions: %w", err)
		}
		questions = data
		topic = &prefs.Generated.Topic
	}

	query := `
		INSERT INTO quiz_preferences (
			user_id, use_generated, generated_topic, generated_questions, difficulty, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET use_generated = EXCLUDED.use_generated,
		    generated_topic = EXCLUDED.generated_topic,
		    generated_questions = EXCLUDED.generated_questions,
		    difficulty = EXCLUDED.difficulty,
		    updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query, prefs.UserID, prefs.UseGenerated, topic, questions, string(prefs.Difficulty))
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}

	return nil
}

// SetUseGenerated toggles the generated-set flag without touching the set.
func (r *PreferencesRepository) SetUseGenerated(ctx context.Context, userID int64, use bool) error {
	query := `
		INSERT INTO quiz_preferences (user_id, use_generated, difficulty, updated_at)
		VALUES ($1, $2, 'medium', NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET use_generated = EXCLUDED.use_generated,
		    updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, userID, use); err != nil {
		return fmt.Errorf("set use generated: %w", err)
	}

	return nil
}
