package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/service"
)

/* ---------------- Fakes for the bot API and the services ---------------- */

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update)}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) lastToast(t *testing.T) string {
	t.Helper()
	if len(b.requests) == 0 {
		t.Fatal("callback not answered")
	}
	cfg, ok := b.requests[len(b.requests)-1].(tgbotapi.CallbackConfig)
	if !ok {
		t.Fatalf("request = %T", b.requests[len(b.requests)-1])
	}
	return cfg.Text
}

type fakeUsers struct{ ensured []int64 }

func (u *fakeUsers) EnsureUser(_ context.Context, userID, _ int64) error {
	u.ensured = append(u.ensured, userID)
	return nil
}

// fakeQuiz returns scripted snapshots and records calls.
type fakeQuiz struct {
	current    service.Snapshot
	currentErr error
	next       service.Snapshot
	nextErr    error
	started    int
	moved      int
	selected   []int
	review     []entities.ReviewItem
	result     entities.QuizResult
	reviewErr  error
	history    []*entities.QuizAttempt
}

// Resume returns the current snapshot when there is one, otherwise it
// starts a session.
func (q *fakeQuiz) Resume(context.Context, int64) (service.Snapshot, error) {
	if q.currentErr == nil {
		return q.current, nil
	}
	q.started++
	return q.next, q.nextErr
}

func (q *fakeQuiz) Current(int64) (service.Snapshot, error) { return q.current, q.currentErr }

func (q *fakeQuiz) SelectOption(_ context.Context, _, _ int64, option int) (service.Snapshot, error) {
	q.selected = append(q.selected, option)
	return q.next, q.nextErr
}

func (q *fakeQuiz) Advance(context.Context, int64, int64) (service.Snapshot, error) {
	q.moved++
	return q.next, q.nextErr
}

func (q *fakeQuiz) GoBack(context.Context, int64, int64) (service.Snapshot, error) {
	q.moved++
	return q.next, q.nextErr
}

func (q *fakeQuiz) Restart(context.Context, int64) (service.Snapshot, error) {
	q.started++
	return q.next, q.nextErr
}

func (q *fakeQuiz) Review(int64) ([]entities.ReviewItem, entities.QuizResult, error) {
	return q.review, q.result, q.reviewErr
}

func (q *fakeQuiz) History(context.Context, int64, int) ([]*entities.QuizAttempt, error) {
	return q.history, nil
}

type fakeGeneration struct {
	enabled  bool
	set      entities.QuestionSet
	err      error
	canceled bool
	use      []bool
	useErr   error
	done     chan struct{}
}

func (g *fakeGeneration) Enabled() bool { return g.enabled }

func (g *fakeGeneration) Generate(context.Context, int64, string, entities.Difficulty, int) (entities.QuestionSet, error) {
	if g.done != nil {
		defer close(g.done)
	}
	return g.set, g.err
}

func (g *fakeGeneration) Cancel(int64) bool { return g.canceled }

func (g *fakeGeneration) UseGenerated(_ context.Context, _ int64, use bool) error {
	g.use = append(g.use, use)
	return g.useErr
}

const (
	testUserID int64 = 7
	testChatID int64 = 700
)

func newTestHandler(quiz *fakeQuiz, gen *fakeGeneration) (*Handler, *fakeBot) {
	bot := newFakeBot()
	h := NewHandler(bot, zap.NewNop(), &fakeUsers{}, quiz, gen, entities.DifficultyMedium, 10)
	return h, bot
}

func commandUpdate(text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From:     &tgbotapi.User{ID: testUserID},
			Chat:     &tgbotapi.Chat{ID: testChatID},
			Text:     text,
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
		},
	}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb1",
			From: &tgbotapi.User{ID: testUserID},
			Message: &tgbotapi.Message{
				MessageID: 55,
				Chat:      &tgbotapi.Chat{ID: testChatID},
			},
			Data: data,
		},
	}
}

func awaitingSnapshot(sessionID int64, index int) service.Snapshot {
	return service.Snapshot{
		SessionID: sessionID,
		State:     entities.StateAwaitingAnswer,
		Index:     index,
		Total:     3,
		Question: entities.Question{
			Prompt:       "Who wrote the Republic?",
			Options:      []string{"Plato", "Kant", "Hume", "Mill"},
			CorrectIndex: 0,
			Explanation:  "Plato, c. 375 BC.",
		},
	}
}

/* ---------------- Tests ---------------- */

func TestQuizCommandStartsSession(t *testing.T) {
	quiz := &fakeQuiz{currentErr: service.ErrNoActiveSession, next: awaitingSnapshot(3, 0)}
	h, bot := newTestHandler(quiz, &fakeGeneration{})

	h.handleUpdate(context.Background(), commandUpdate("/quiz"))

	if quiz.started != 1 {
		t.Fatalf("started = %d", quiz.started)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent = %d", len(bot.sent))
	}
	msg := bot.sent[0].(tgbotapi.MessageConfig)
	if msg.ChatID != testChatID || !strings.Contains(msg.Text, "Question 1 of 3") {
		t.Fatalf("message = %+v", msg)
	}
	kb := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if len(kb.InlineKeyboard) != 4 {
		t.Fatalf("keyboard rows = %d", len(kb.InlineKeyboard))
	}
	if got := *kb.InlineKeyboard[2][0].CallbackData; got != "quiz:answer:3:0:2" {
		t.Fatalf("callback = %q", got)
	}
}

func TestQuizCommandResumesActiveSession(t *testing.T) {
	quiz := &fakeQuiz{current: awaitingSnapshot(3, 1)}
	h, bot := newTestHandler(quiz, &fakeGeneration{})

	h.handleUpdate(context.Background(), commandUpdate("/quiz"))

	if quiz.started != 0 {
		t.Fatal("resumed quiz was restarted")
	}
	msg := bot.sent[0].(tgbotapi.MessageConfig)
	if !strings.Contains(msg.Text, "Question 2 of 3") {
		t.Fatalf("text = %q", msg.Text)
	}
}

func TestAnswerCallbackEditsMessage(t *testing.T) {
	answered := awaitingSnapshot(3, 0)
	answered.State = entities.StateAnswered
	answered.Selected, answered.HasSelected = 1, true

	quiz := &fakeQuiz{current: awaitingSnapshot(3, 0), next: answered}
	h, bot := newTestHandler(quiz, &fakeGeneration{})

	h.handleUpdate(context.Background(), callbackUpdate(buildQuizAnswerCallback(3, 0, 1)))

	if len(quiz.selected) != 1 || quiz.selected[0] != 1 {
		t.Fatalf("selected = %v", quiz.selected)
	}
	if toast := bot.lastToast(t); toast != "" {
		t.Fatalf("toast = %q", toast)
	}

	edit := bot.sent[0].(tgbotapi.EditMessageTextConfig)
	if edit.MessageID != 55 || !strings.Contains(edit.Text, "Incorrect") || !strings.Contains(edit.Text, "Plato") {
		t.Fatalf("edit = %+v", edit)
	}
	if got := *edit.ReplyMarkup.InlineKeyboard[0][0].CallbackData; got != "quiz:next:3:0" {
		t.Fatalf("nav callback = %q", got)
	}
}

func TestStaleCallbacksShowToast(t *testing.T) {
	tests := []struct {
		name string
		data string
		quiz *fakeQuiz
		want string
	}{
		{
			name: "old session",
			data: buildQuizAnswerCallback(2, 0, 1),
			quiz: &fakeQuiz{current: awaitingSnapshot(3, 0)},
			want: msgStaleButton,
		},
		{
			name: "old question",
			data: buildQuizAnswerCallback(3, 0, 1),
			quiz: &fakeQuiz{current: awaitingSnapshot(3, 1)},
			want: msgStaleButton,
		},
		{
			name: "no session",
			data: buildQuizNextCallback(3, 0),
			quiz: &fakeQuiz{currentErr: service.ErrNoActiveSession},
			want: msgNoActiveQuiz,
		},
		{
			name: "advance unanswered",
			data: buildQuizNextCallback(3, 0),
			quiz: &fakeQuiz{current: awaitingSnapshot(3, 0), nextErr: entities.ErrNotAnswered},
			want: msgAnswerFirst,
		},
		{
			name: "back disabled",
			data: buildQuizBackCallback(3, 1),
			quiz: &fakeQuiz{current: awaitingSnapshot(3, 1), nextErr: entities.ErrBackNavigationDisabled},
			want: msgBackDisabled,
		},
		{
			name: "garbage params",
			data: "quiz:answer:x:y:z",
			quiz: &fakeQuiz{},
			want: msgStaleButton,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, bot := newTestHandler(tt.quiz, &fakeGeneration{})

			h.handleUpdate(context.Background(), callbackUpdate(tt.data))

			if got := bot.lastToast(t); got != tt.want {
				t.Fatalf("toast = %q, want %q", got, tt.want)
			}
			if len(bot.sent) != 0 {
				t.Fatalf("sent %d messages", len(bot.sent))
			}
			if len(tt.quiz.selected) != 0 {
				t.Fatal("stale answer was applied")
			}
		})
	}
}

func TestRepeatedNavigationTapIsStale(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "next", data: buildQuizNextCallback(3, 0)},
		{name: "back", data: buildQuizBackCallback(3, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The first tap already moved the session to question 2.
			quiz := &fakeQuiz{current: awaitingSnapshot(3, 1)}
			h, bot := newTestHandler(quiz, &fakeGeneration{})

			h.handleUpdate(context.Background(), callbackUpdate(tt.data))

			if quiz.moved != 0 {
				t.Fatalf("session moved %d times", quiz.moved)
			}
			if got := bot.lastToast(t); got != msgStaleButton {
				t.Fatalf("toast = %q", got)
			}
		})
	}
}

func TestNavigationCallbackOnCurrentQuestion(t *testing.T) {
	answered := awaitingSnapshot(3, 1)
	answered.State = entities.StateAnswered
	answered.Selected, answered.HasSelected = 0, true
	answered.CanGoBack = true

	quiz := &fakeQuiz{current: answered, next: awaitingSnapshot(3, 2)}
	h, bot := newTestHandler(quiz, &fakeGeneration{})

	h.handleUpdate(context.Background(), callbackUpdate(buildQuizNextCallback(3, 1)))

	if quiz.moved != 1 {
		t.Fatalf("moved = %d", quiz.moved)
	}
	edit := bot.sent[0].(tgbotapi.EditMessageTextConfig)
	if !strings.Contains(edit.Text, "Question 3 of 3") {
		t.Fatalf("text = %q", edit.Text)
	}
}

func TestCompletedSnapshotShowsResult(t *testing.T) {
	snap := service.Snapshot{
		SessionID: 3,
		State:     entities.StateCompleted,
		Total:     2,
		Result:    &entities.QuizResult{Score: 1, Total: 2, Percentage: 50, Answers: []int{1, 0}},
	}

	text, kb := renderSnapshot(snap)
	if !strings.Contains(text, "1/2 \\(50%\\)") {
		t.Fatalf("text = %q", text)
	}
	if got := *kb.InlineKeyboard[0][0].CallbackData; got != buildQuizReviewCallback() {
		t.Fatalf("first button = %q", got)
	}
}

func TestReviewCommand(t *testing.T) {
	quiz := &fakeQuiz{
		review: []entities.ReviewItem{
			{Prompt: "Q1?", ChosenOption: "a", CorrectOption: "a", IsCorrect: true},
			{Prompt: "Q2?", ChosenOption: "b", CorrectOption: "c", Explanation: "Because."},
		},
		result: entities.QuizResult{Score: 1, Total: 2, Percentage: 50},
	}
	h, bot := newTestHandler(quiz, &fakeGeneration{})

	h.handleUpdate(context.Background(), commandUpdate("/review"))

	text := bot.sent[0].(tgbotapi.MessageConfig).Text
	for _, want := range []string{"Q1?", "❌ 2\\. Q2?", "*c*", "_Because\\._"} {
		if !strings.Contains(text, want) {
			t.Errorf("review text missing %q:\n%s", want, text)
		}
	}

	quiz.reviewErr = service.ErrNotCompleted
	h.handleUpdate(context.Background(), commandUpdate("/review"))
	if text := bot.sent[1].(tgbotapi.MessageConfig).Text; text != md(msgNotCompleted) {
		t.Fatalf("text = %q", text)
	}
}

func TestGenerateCommand(t *testing.T) {
	gen := &fakeGeneration{
		enabled: true,
		set:     entities.QuestionSet{Topic: "stoicism", Questions: make([]entities.Question, 3)},
		done:    make(chan struct{}),
	}
	h, bot := newTestHandler(&fakeQuiz{}, gen)

	h.handleUpdate(context.Background(), commandUpdate("/generate stoicism hard 3"))
	<-gen.done
	h.wg.Wait()

	if len(bot.sent) != 2 {
		t.Fatalf("sent = %d", len(bot.sent))
	}
	ready := bot.sent[1].(tgbotapi.MessageConfig)
	if !strings.Contains(ready.Text, "3 new questions about stoicism") {
		t.Fatalf("text = %q", ready.Text)
	}
}

func TestGenerateCommandDisabledAndUsage(t *testing.T) {
	h, bot := newTestHandler(&fakeQuiz{}, &fakeGeneration{})
	h.handleUpdate(context.Background(), commandUpdate("/generate ethics"))
	if text := bot.sent[0].(tgbotapi.MessageConfig).Text; text != md(msgGenerationDisabled) {
		t.Fatalf("text = %q", text)
	}

	h, bot = newTestHandler(&fakeQuiz{}, &fakeGeneration{enabled: true})
	h.handleUpdate(context.Background(), commandUpdate("/generate"))
	if text := bot.sent[0].(tgbotapi.MessageConfig).Text; text != md(msgUseGenerate) {
		t.Fatalf("text = %q", text)
	}
}

func TestSourceCommand(t *testing.T) {
	gen := &fakeGeneration{enabled: true}
	h, bot := newTestHandler(&fakeQuiz{}, gen)

	h.handleUpdate(context.Background(), commandUpdate("/source generated"))
	h.handleUpdate(context.Background(), commandUpdate("/source default"))
	gen.useErr = service.ErrNoGeneratedSet
	h.handleUpdate(context.Background(), commandUpdate("/source generated"))

	if len(gen.use) != 3 || !gen.use[0] || gen.use[1] {
		t.Fatalf("use = %v", gen.use)
	}
	if text := bot.sent[2].(tgbotapi.MessageConfig).Text; text != md(msgNoGeneratedSet) {
		t.Fatalf("text = %q", text)
	}
}

func TestNotifyTimeoutUsesKnownChat(t *testing.T) {
	quiz := &fakeQuiz{currentErr: service.ErrNoActiveSession, next: awaitingSnapshot(3, 0)}
	h, bot := newTestHandler(quiz, &fakeGeneration{})
	h.handleUpdate(context.Background(), commandUpdate("/quiz"))

	snap := awaitingSnapshot(3, 0)
	snap.State = entities.StateAnswered
	h.NotifyTimeout(testUserID, snap)

	if len(bot.sent) != 3 {
		t.Fatalf("sent = %d", len(bot.sent))
	}
	msg := bot.sent[2].(tgbotapi.MessageConfig)
	if msg.ChatID != testChatID || !strings.Contains(msg.Text, "Your answer") {
		t.Fatalf("message = %+v", msg)
	}
}

func TestRunStopsWhenUpdatesClose(t *testing.T) {
	h, bot := newTestHandler(&fakeQuiz{}, &fakeGeneration{})
	close(bot.updates)

	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestParseGenerateArgs(t *testing.T) {
	tests := []struct {
		in   string
		want generateArgs
		ok   bool
	}{
		{in: "stoicism", want: generateArgs{topic: "stoicism", difficulty: entities.DifficultyMedium, count: 10}, ok: true},
		{in: "free will hard", want: generateArgs{topic: "free will", difficulty: entities.DifficultyHard, count: 10}, ok: true},
		{in: "free will easy 5", want: generateArgs{topic: "free will", difficulty: entities.DifficultyEasy, count: 5}, ok: true},
		{in: "catch 22", want: generateArgs{topic: "catch", difficulty: entities.DifficultyMedium, count: 22}, ok: true},
		{in: "hard", want: generateArgs{topic: "hard", difficulty: entities.DifficultyMedium, count: 10}, ok: true},
		{in: "   ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseGenerateArgs(tt.in, entities.DifficultyMedium, 10)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Fatalf("got %+v, %v; want %+v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCallbackDataRoundTrip(t *testing.T) {
	data := buildQuizAnswerCallback(1<<40, 19, 3)
	if len(data) > 64 {
		t.Fatalf("callback data too long for Telegram: %d bytes", len(data))
	}

	cd := decodeCallback(data)
	sessionID, _ := cd.int64Param(1)
	index, _ := cd.intParam(2)
	option, _ := cd.intParam(3)
	if cd.Action != actionQuiz || cd.sub() != quizAnswer || sessionID != 1<<40 || index != 19 || option != 3 {
		t.Fatalf("decoded = %+v", cd)
	}

	if _, err := decodeCallback("quiz:next").int64Param(1); !errors.Is(err, errBadCallback) {
		t.Fatalf("missing param err = %v", err)
	}
}
