package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	pgrepo "github.com/aliskhannn/sophia-quiz-bot/internal/infra/postgres/repository"
	"github.com/aliskhannn/sophia-quiz-bot/internal/metrics"
)

var (
	ErrNoActiveSession = errors.New("no active quiz session")
	ErrStaleSession    = errors.New("quiz session is no longer current")
	ErrNotCompleted    = errors.New("quiz session is not completed")
)

// Snapshot is a read-only view of a session after a transition.
type Snapshot struct {
	SessionID   int64
	State       entities.SessionState
	Index       int // zero-based
	Total       int
	Question    entities.Question
	Selected    int
	HasSelected bool
	Expired     bool
	CanGoBack   bool
	TimeLimit   time.Duration
	Source      string
	Topic       string
	Result      *entities.QuizResult
}

func snapshotOf(qs *entities.QuizSession) Snapshot {
	set := qs.Questions()
	snap := Snapshot{
		SessionID: qs.ID,
		State:     qs.State(),
		Index:     qs.CurrentIndex(),
		Total:     qs.Total(),
		Question:  qs.CurrentQuestion(),
		Expired:   qs.Expired(),
		CanGoBack: qs.CanGoBack(),
		TimeLimit: qs.Options.PerQuestionTimeLimit,
		Source:    set.Source,
		Topic:     set.Topic,
	}
	snap.Selected, snap.HasSelected = qs.Selected()
	if r, ok := qs.Result(); ok {
		snap.Result = &r
	}
	return snap
}

// QuizService owns quiz session lifetimes: it resolves the question set,
// serialises transitions, arms per-question timers and stores results.
type QuizService struct {
	questions   QuestionSource
	prefsRepo   PreferencesRepository
	attemptRepo AttemptRepository
	userRepo    UserRepository
	transactor  Transactor
	storage     SessionStorage
	metrics     *metrics.Metrics
	logger      *zap.Logger
	opts        entities.SessionOptions

	mu       sync.Mutex // serialises session transitions and timers
	timers   map[int64]*time.Timer
	notifier TimeoutNotifier
}

func NewQuizService(
	questions QuestionSource,
	prefsRepo PreferencesRepository,
	attemptRepo AttemptRepository,
	userRepo UserRepository,
	transactor Transactor,
	storage SessionStorage,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts entities.SessionOptions,
) *QuizService {
	return &QuizService{
		questions:   questions,
		prefsRepo:   prefsRepo,
		attemptRepo: attemptRepo,
		userRepo:    userRepo,
		transactor:  transactor,
		storage:     storage,
		metrics:     m,
		logger:      logger,
		opts:        opts,
		timers:      make(map[int64]*time.Timer),
	}
}

// SetNotifier sets the timeout notifier (called after handler is created).
func (s *QuizService) SetNotifier(notifier TimeoutNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = notifier
}

// ResolveQuestionSet returns the set a new session for userID should use:
// the persisted generated set when selected, the built-in set otherwise.
func (s *QuizService) ResolveQuestionSet(ctx context.Context, userID int64) entities.QuestionSet {
	prefs, err := s.prefsRepo.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, pgrepo.ErrPreferencesNotFound) {
			s.logger.Warn("failed to load quiz preferences, using default questions",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
		return s.questions.LoadDefault()
	}

	set, ok := prefs.ActiveSet()
	if !ok {
		return s.questions.LoadDefault()
	}
	if err := set.Validate(); err != nil {
		s.logger.Warn("stored generated questions are invalid, using default questions",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return s.questions.LoadDefault()
	}

	return set
}

// StartSession starts a session on the user's resolved question set,
// replacing any session the user already has.
func (s *QuizService) StartSession(ctx context.Context, userID int64) (Snapshot, error) {
	return s.StartSessionWith(userID, s.ResolveQuestionSet(ctx, userID))
}

// StartSessionWith starts a session on the given set. An invalid set is
// replaced by the built-in one so a session never has zero questions.
func (s *QuizService) StartSessionWith(userID int64, set entities.QuestionSet) (Snapshot, error) {
	if err := set.Validate(); err != nil {
		s.logger.Warn("refusing invalid question set, using default questions",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		set = s.questions.LoadDefault()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked(userID)

	qs := entities.NewQuizSession(userID, set, s.opts)
	qs.ID = s.storage.NextID()
	s.storage.Store(qs)
	s.armTimerLocked(qs)

	s.metrics.SessionsStarted.WithLabelValues(set.Source).Inc()
	s.logger.Debug("quiz session started",
		zap.Int64("user_id", userID),
		zap.Int64("session_id", qs.ID),
		zap.String("source", set.Source),
		zap.Int("total", set.Len()),
	)

	return snapshotOf(qs), nil
}

// Resume returns the user's unfinished session when it still runs on their
// active question set. Otherwise, for instance after a new set was generated
// or selected, it starts a fresh session on the active set.
func (s *QuizService) Resume(ctx context.Context, userID int64) (Snapshot, error) {
	set := s.ResolveQuestionSet(ctx, userID)

	s.mu.Lock()
	qs, ok := s.storage.Get(userID)
	if ok && qs.State() != entities.StateCompleted && qs.Questions().SameAs(set) {
		snap := snapshotOf(qs)
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	return s.StartSessionWith(userID, set)
}

// Current returns the user's session as it stands. It does not count as
// activity for idle purging.
func (s *QuizService) Current(userID int64) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, ok := s.storage.Peek(userID)
	if !ok {
		return Snapshot{}, ErrNoActiveSession
	}
	return snapshotOf(qs), nil
}

// SelectOption records the user's answer for the current question.
func (s *QuizService) SelectOption(_ context.Context, userID, sessionID int64, option int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, err := s.sessionLocked(userID, sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	if err := qs.SelectOption(option); err != nil {
		s.rejected("select", userID, err)
		return snapshotOf(qs), err
	}

	s.stopTimerLocked(userID)
	return snapshotOf(qs), nil
}

// Advance moves past the current question. Completing the session stores
// the attempt.
func (s *QuizService) Advance(ctx context.Context, userID, sessionID int64) (Snapshot, error) {
	snap, attempt, err := s.advance(userID, sessionID)
	if err != nil {
		return snap, err
	}

	if attempt != nil {
		s.metrics.SessionsCompleted.Inc()
		s.metrics.ResultPercentage.Observe(float64(attempt.Percentage))

		if err := s.saveAttempt(ctx, attempt); err != nil {
			// The result is still shown; only history misses it.
			s.logger.Error("failed to save quiz attempt",
				zap.Int64("user_id", userID),
				zap.Int64("session_id", sessionID),
				zap.Error(err),
			)
		}
	}

	return snap, nil
}

func (s *QuizService) advance(userID, sessionID int64) (Snapshot, *entities.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, err := s.sessionLocked(userID, sessionID)
	if err != nil {
		return Snapshot{}, nil, err
	}

	state, err := qs.Advance()
	if err != nil {
		s.rejected("advance", userID, err)
		return snapshotOf(qs), nil, err
	}

	s.stopTimerLocked(userID)
	if state != entities.StateCompleted {
		s.armTimerLocked(qs)
		return snapshotOf(qs), nil, nil
	}

	attempt, _ := entities.NewQuizAttempt(qs)
	s.logger.Debug("quiz session completed",
		zap.Int64("user_id", userID),
		zap.Int64("session_id", qs.ID),
		zap.Int("score", attempt.Score),
		zap.Int("total", attempt.Total),
	)
	return snapshotOf(qs), attempt, nil
}

// GoBack returns to the previous question when back navigation is enabled.
func (s *QuizService) GoBack(_ context.Context, userID, sessionID int64) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, err := s.sessionLocked(userID, sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	if _, err := qs.GoBack(); err != nil {
		s.rejected("back", userID, err)
		return snapshotOf(qs), err
	}

	s.stopTimerLocked(userID)
	s.armTimerLocked(qs)
	return snapshotOf(qs), nil
}

// Review returns the per-question breakdown of the user's completed session.
func (s *QuizService) Review(userID int64) ([]entities.ReviewItem, entities.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, ok := s.storage.Get(userID)
	if !ok {
		return nil, entities.QuizResult{}, ErrNoActiveSession
	}

	result, ok := qs.Result()
	if !ok {
		return nil, entities.QuizResult{}, ErrNotCompleted
	}
	items, _ := qs.Review()

	return items, result, nil
}

// Restart replaces the user's session with a fresh one on their active
// question set: the same set as before unless a new one was generated or
// selected in the meantime.
func (s *QuizService) Restart(ctx context.Context, userID int64) (Snapshot, error) {
	return s.StartSession(ctx, userID)
}

// Abandon drops the user's session and its timer.
func (s *QuizService) Abandon(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked(userID)
	s.storage.Delete(userID)
}

// PurgeIdle drops sessions idle for longer than ttl and returns how many.
func (s *QuizService) PurgeIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := s.storage.PurgeIdle(ttl)
	for _, userID := range purged {
		s.stopTimerLocked(userID)
	}
	return len(purged)
}

// History returns the user's most recent completed attempts.
func (s *QuizService) History(ctx context.Context, userID int64, limit int) ([]*entities.QuizAttempt, error) {
	attempts, err := s.attemptRepo.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent attempts: %w", err)
	}
	return attempts, nil
}

func (s *QuizService) saveAttempt(ctx context.Context, attempt *entities.QuizAttempt) error {
	return s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		id, err := s.attemptRepo.CreateWithTx(ctx, tx, attempt)
		if err != nil {
			return err
		}
		attempt.ID = id

		return s.userRepo.TouchActivityWithTx(ctx, tx, attempt.UserID, attempt.CompletedAt)
	})
}

func (s *QuizService) sessionLocked(userID, sessionID int64) (*entities.QuizSession, error) {
	qs, ok := s.storage.Get(userID)
	if !ok {
		return nil, ErrNoActiveSession
	}
	if qs.ID != sessionID {
		return nil, ErrStaleSession
	}
	return qs, nil
}

func (s *QuizService) rejected(action string, userID int64, err error) {
	s.metrics.IllegalTransitions.WithLabelValues(action).Inc()
	s.logger.Debug("quiz action rejected",
		zap.String("action", action),
		zap.Int64("user_id", userID),
		zap.Error(err),
	)
}

// armTimerLocked starts the per-question timer when the current question is
// waiting for an answer and a limit is configured.
func (s *QuizService) armTimerLocked(qs *entities.QuizSession) {
	limit := qs.Options.PerQuestionTimeLimit
	if limit <= 0 || qs.State() != entities.StateAwaitingAnswer || qs.Expired() {
		return
	}

	userID, sessionID, index := qs.UserID, qs.ID, qs.CurrentIndex()
	s.timers[userID] = time.AfterFunc(limit, func() {
		s.onTimeout(userID, sessionID, index)
	})
}

func (s *QuizService) stopTimerLocked(userID int64) {
	if t, ok := s.timers[userID]; ok {
		t.Stop()
		delete(s.timers, userID)
	}
}

func (s *QuizService) onTimeout(userID, sessionID int64, index int) {
	s.mu.Lock()
	qs, err := s.sessionLocked(userID, sessionID)
	// A timer that lost the race with an answer or a new session does nothing.
	if err != nil || qs.CurrentIndex() != index || !qs.ExpireTime() {
		s.mu.Unlock()
		return
	}
	delete(s.timers, userID)
	snap := snapshotOf(qs)
	notifier := s.notifier
	s.mu.Unlock()

	s.logger.Debug("quiz question timed out",
		zap.Int64("user_id", userID),
		zap.Int64("session_id", sessionID),
		zap.Int("index", index),
		zap.String("policy", string(qs.Options.TimeoutPolicy)),
	)

	if notifier != nil {
		notifier.NotifyTimeout(userID, snap)
	}
}
