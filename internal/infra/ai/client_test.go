package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
)

func TestGenerateQuestions(t *testing.T) {
	const content = `{"questions":[{"question":"q","options":["a","b","c","d"],"correctAnswer":1}]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
		}
		if !strings.Contains(req.Messages[1].Content, "3 hard questions about stoicism") {
			t.Errorf("user prompt = %q", req.Messages[1].Content)
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "secret", Model: "test-model"}, srv.Client())
	raw, err := c.GenerateQuestions(context.Background(), GenerateRequest{
		Topic: "stoicism", Difficulty: entities.DifficultyHard, Count: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != content {
		t.Fatalf("content = %s", raw)
	}
}

func TestGenerateQuestionsFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantErr: ErrBadResponse},
		{name: "provider error", status: http.StatusOK, body: `{"error":{"message":"quota"}}`, wantErr: ErrBadResponse},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantErr: ErrNoChoices},
		{name: "blank content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"  "}}]}`, wantErr: ErrNoChoices},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL}, srv.Client())
			_, err := c.GenerateQuestions(context.Background(), GenerateRequest{Topic: "t", Count: 1})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateQuestionsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, srv.Client())
	if _, err := c.GenerateQuestions(context.Background(), GenerateRequest{Topic: "t", Count: 1}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestGenerateQuestionsHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(Config{BaseURL: srv.URL}, srv.Client())
	_, err := c.GenerateQuestions(ctx, GenerateRequest{Topic: "t", Count: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 10, want: "short"},
		{in: "abcdef", n: 3, want: "abc..."},
		{in: "héllo", n: 2, want: "h..."}, // é is two bytes
		{in: "ошибка", n: 5, want: "ош..."},
		{in: "日本", n: 1, want: "..."},
	}

	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) = %q is not valid UTF-8", tt.in, tt.n, got)
		}
	}
}
