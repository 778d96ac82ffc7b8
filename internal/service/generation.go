package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/infra/ai"
	pgrepo "github.com/aliskhannn/sophia-quiz-bot/internal/infra/postgres/repository"
	"github.com/aliskhannn/sophia-quiz-bot/internal/metrics"
)

var (
	ErrGenerationDisabled   = errors.New("question generation is not configured")
	ErrGenerationInProgress = errors.New("question generation already in progress")
	ErrGenerationFailed     = errors.New("question generation failed")
	ErrGenerationCanceled   = errors.New("question generation canceled")
	ErrEmptyTopic           = errors.New("topic is required")
	ErrNoGeneratedSet       = errors.New("no generated question set")
)

// Generation outcomes used as metric labels.
const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeCanceled = "canceled"
	outcomeRejected = "rejected"
)

type pendingGeneration struct {
	token  uint64
	cancel context.CancelFunc
}

// GenerationService turns a topic into a validated, persisted question set.
// Each user may have at most one generation in flight.
type GenerationService struct {
	generator QuestionGenerator // nil when generation is disabled
	questions QuestionSource
	prefsRepo PreferencesRepository
	metrics   *metrics.Metrics
	logger    *zap.Logger

	defaultCount int
	maxCount     int

	mu       sync.Mutex
	inflight map[int64]pendingGeneration
	nextTok  uint64
}

func NewGenerationService(
	generator QuestionGenerator,
	questions QuestionSource,
	prefsRepo PreferencesRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
	defaultCount, maxCount int,
) *GenerationService {
	return &GenerationService{
		generator:    generator,
		questions:    questions,
		prefsRepo:    prefsRepo,
		metrics:      m,
		logger:       logger,
		defaultCount: defaultCount,
		maxCount:     maxCount,
		inflight:     make(map[int64]pendingGeneration),
	}
}

// Enabled reports whether a generator is configured.
func (s *GenerationService) Enabled() bool {
	return s.generator != nil
}

// Generate requests a question set about topic and, when it validates,
// stores it as the user's active set. On failure it returns the set the user
// keeps playing (their current one or the built-in one) with an error
// wrapping ErrGenerationFailed.
func (s *GenerationService) Generate(
	ctx context.Context, userID int64, topic string, difficulty entities.Difficulty, count int,
) (entities.QuestionSet, error) {
	if s.generator == nil {
		return entities.QuestionSet{}, ErrGenerationDisabled
	}

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return entities.QuestionSet{}, ErrEmptyTopic
	}
	if _, ok := entities.ParseDifficulty(string(difficulty)); !ok {
		difficulty = entities.DifficultyMedium
	}
	count = s.clampCount(count)

	ctx, token, err := s.begin(ctx, userID)
	if err != nil {
		s.metrics.Generations.WithLabelValues(outcomeRejected).Inc()
		return entities.QuestionSet{}, err
	}
	defer s.end(userID, token)

	s.logger.Info("generating questions",
		zap.Int64("user_id", userID),
		zap.String("topic", topic),
		zap.String("difficulty", string(difficulty)),
		zap.Int("count", count),
	)

	raw, err := s.generator.GenerateQuestions(ctx, ai.GenerateRequest{
		Topic:      topic,
		Difficulty: difficulty,
		Count:      count,
	})
	if ctx.Err() != nil {
		// Canceled or superseded: the result belongs to nobody.
		s.metrics.Generations.WithLabelValues(outcomeCanceled).Inc()
		return entities.QuestionSet{}, ErrGenerationCanceled
	}
	if err != nil {
		return s.fail(ctx, userID, "generator request failed", err)
	}

	set, err := s.questions.ParseExternal(raw)
	if err != nil {
		return s.fail(ctx, userID, "generated questions rejected", err)
	}
	set.Topic = topic

	prefs := entities.NewQuizPreferences(userID)
	prefs.UseGenerated = true
	prefs.Generated = &set
	prefs.Difficulty = difficulty
	if err := s.prefsRepo.Upsert(ctx, prefs); err != nil {
		return s.fail(ctx, userID, "failed to store generated questions", err)
	}

	s.metrics.Generations.WithLabelValues(outcomeSuccess).Inc()
	s.logger.Info("questions generated",
		zap.Int64("user_id", userID),
		zap.Int("count", set.Len()),
	)

	return set, nil
}

// Cancel aborts the user's pending generation. It reports whether one was pending.
func (s *GenerationService) Cancel(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.inflight[userID]
	if !ok {
		return false
	}
	p.cancel()
	delete(s.inflight, userID)
	return true
}

// Pending reports whether the user has a generation in flight.
func (s *GenerationService) Pending(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[userID]
	return ok
}

// UseGenerated switches the user between the generated and the built-in set.
func (s *GenerationService) UseGenerated(ctx context.Context, userID int64, use bool) error {
	if use {
		prefs, err := s.prefsRepo.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrPreferencesNotFound) {
				return ErrNoGeneratedSet
			}
			return fmt.Errorf("get preferences: %w", err)
		}
		if prefs.Generated == nil || prefs.Generated.Len() == 0 {
			return ErrNoGeneratedSet
		}
	}

	if err := s.prefsRepo.SetUseGenerated(ctx, userID, use); err != nil {
		return fmt.Errorf("set use generated: %w", err)
	}
	return nil
}

func (s *GenerationService) begin(ctx context.Context, userID int64) (context.Context, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[userID]; busy {
		return nil, 0, ErrGenerationInProgress
	}

	ctx, cancel := context.WithCancel(ctx)
	s.nextTok++
	s.inflight[userID] = pendingGeneration{token: s.nextTok, cancel: cancel}

	return ctx, s.nextTok, nil
}

func (s *GenerationService) end(userID int64, token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.inflight[userID]; ok && p.token == token {
		p.cancel()
		delete(s.inflight, userID)
	}
}

// fail logs the failure and returns the fallback set the user keeps playing.
func (s *GenerationService) fail(ctx context.Context, userID int64, msg string, cause error) (entities.QuestionSet, error) {
	s.metrics.Generations.WithLabelValues(outcomeFailure).Inc()
	s.logger.Warn(msg,
		zap.Int64("user_id", userID),
		zap.Error(cause),
	)

	return s.fallback(ctx, userID), fmt.Errorf("%w: %w", ErrGenerationFailed, cause)
}

func (s *GenerationService) fallback(ctx context.Context, userID int64) entities.QuestionSet {
	prefs, err := s.prefsRepo.GetByUserID(ctx, userID)
	if err == nil {
		if set, ok := prefs.ActiveSet(); ok {
			return set
		}
	}
	return s.questions.LoadDefault()
}

func (s *GenerationService) clampCount(count int) int {
	switch {
	case count <= 0:
		return min(s.defaultCount, s.maxCount)
	case count > s.maxCount:
		return s.maxCount
	default:
		return count
	}
}
