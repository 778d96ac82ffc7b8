package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/infra/ai"
	pgrepo "github.com/aliskhannn/sophia-quiz-bot/internal/infra/postgres/repository"
	"github.com/aliskhannn/sophia-quiz-bot/internal/metrics"
)

/* ---------------- In-memory fakes for the service contracts ---------------- */

func makeSet(source string, correct ...int) entities.QuestionSet {
	set := entities.QuestionSet{Source: source}
	for i, c := range correct {
		set.Questions = append(set.Questions, entities.Question{
			ID:           fmt.Sprintf("%s-q%d", source, i+1),
			Prompt:       fmt.Sprintf("Question %d?", i+1),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: c,
		})
	}
	return set
}

type fakeSource struct {
	def      entities.QuestionSet
	parsed   entities.QuestionSet
	parseErr error
}

func (f *fakeSource) LoadDefault() entities.QuestionSet { return f.def.Clone() }

func (f *fakeSource) ParseExternal(raw []byte) (entities.QuestionSet, error) {
	if f.parseErr != nil {
		return entities.QuestionSet{}, f.parseErr
	}
	set := f.parsed.Clone()
	set.Source = entities.SourceGenerated
	return set, nil
}

type fakePrefsRepo struct {
	mu      sync.Mutex
	prefs   map[int64]*entities.QuizPreferences
	getErr  error
	upserts int
}

func newFakePrefsRepo() *fakePrefsRepo {
	return &fakePrefsRepo{prefs: map[int64]*entities.QuizPreferences{}}
}

func (r *fakePrefsRepo) GetByUserID(_ context.Context, userID int64) (*entities.QuizPreferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	p, ok := r.prefs[userID]
	if !ok {
		return nil, pgrepo.ErrPreferencesNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePrefsRepo) Upsert(_ context.Context, prefs *entities.QuizPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *prefs
	r.prefs[prefs.UserID] = &cp
	r.upserts++
	return nil
}

func (r *fakePrefsRepo) SetUseGenerated(_ context.Context, userID int64, use bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prefs[userID]
	if !ok {
		p = entities.NewQuizPreferences(userID)
		r.prefs[userID] = p
	}
	p.UseGenerated = use
	return nil
}

type fakeAttemptRepo struct {
	mu        sync.Mutex
	attempts  []*entities.QuizAttempt
	createErr error
}

func (r *fakeAttemptRepo) CreateWithTx(_ context.Context, _ pgx.Tx, a *entities.QuizAttempt) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return 0, r.createErr
	}
	r.attempts = append(r.attempts, a)
	return int64(len(r.attempts)), nil
}

func (r *fakeAttemptRepo) ListRecent(_ context.Context, userID int64, limit int) ([]*entities.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.QuizAttempt
	for i := len(r.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if r.attempts[i].UserID == userID {
			out = append(out, r.attempts[i])
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	mu      sync.Mutex
	saved   map[int64]*entities.User
	touched map[int64]time.Time
	saveErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{saved: map[int64]*entities.User{}, touched: map[int64]time.Time{}}
}

func (r *fakeUserRepo) Save(_ context.Context, user *entities.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return false, r.saveErr
	}
	_, existed := r.saved[user.ID]
	r.saved[user.ID] = user
	return !existed, nil
}

func (r *fakeUserRepo) TouchActivityWithTx(_ context.Context, _ pgx.Tx, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched[userID] = at
	return nil
}

// fakeTransactor runs fn without a real transaction.
type fakeTransactor struct{}

func (fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

type recordingNotifier struct {
	ch chan Snapshot
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan Snapshot, 4)}
}

func (n *recordingNotifier) NotifyTimeout(_ int64, snap Snapshot) {
	n.ch <- snap
}

// blockingGenerator returns reply once release is closed or ctx ends.
type blockingGenerator struct {
	mu       sync.Mutex
	started  chan struct{}
	release  chan struct{}
	reply    []byte
	err      error
	requests []ai.GenerateRequest
}

func newBlockingGenerator(reply []byte) *blockingGenerator {
	return &blockingGenerator{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
		reply:   reply,
	}
}

// readyGenerator returns immediately.
func readyGenerator(reply []byte, err error) *blockingGenerator {
	g := newBlockingGenerator(reply)
	g.err = err
	close(g.release)
	return g
}

func (g *blockingGenerator) GenerateQuestions(ctx context.Context, req ai.GenerateRequest) ([]byte, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	g.started <- struct{}{}

	select {
	case <-g.release:
		return g.reply, g.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry(), nil)
}

var errBoom = errors.New("boom")
