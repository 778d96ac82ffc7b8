// messages.go contains message templates and formatting functions for Telegram.

package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/service"
)

// Plain-text messages, escaped at send time.
const (
	msgInternalError       = "Something went wrong. Please try again later."
	msgNoActiveQuiz        = "You have no quiz in progress. Send /quiz to start one."
	msgNotCompleted        = "Finish the quiz first, then send /review."
	msgStaleButton         = "This button belongs to an old quiz."
	msgAlreadyAnswered     = "You already answered this question."
	msgAnswerFirst         = "Pick an answer first."
	msgBackDisabled        = "Going back is disabled."
	msgAtFirstQuestion     = "This is the first question."
	msgQuizCompleted       = "This quiz is already finished."
	msgGenerationDisabled  = "Question generation is not configured on this bot."
	msgGenerationBusy      = "A question set is already being generated. Send /cancel to stop it."
	msgGenerationCanceled  = "Generation canceled."
	msgNothingToCancel     = "Nothing to cancel."
	msgNoGeneratedSet      = "You have no generated questions yet. Use /generate <topic> first."
	msgUseGenerate         = "Usage: /generate <topic> [easy|medium|hard] [count]"
	msgUseSource           = "Usage: /source default|generated"
	msgSourceDefault       = "Quizzes will use the built-in philosophy questions."
	msgSourceGenerated     = "Quizzes will use your generated questions."
	msgNoHistory           = "No finished quizzes yet."
	msgTimeUp              = "⏰ Time is up!"
	msgTimeUpUnanswered    = "⏰ Time is up! You can still answer to continue."
	msgGenerationFallback  = "Could not generate a valid question set, so you keep your current questions."
	msgGenerationStartedFt = "🧠 Generating %d %s questions about %q. This can take a minute..."
)

// md escapes plain text for MarkdownV2.
func md(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

func bold(s string) string {
	return "*" + md(s) + "*"
}

func italic(s string) string {
	return "_" + md(s) + "_"
}

// newMessage creates a message with MarkdownV2 parse mode.
func newMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return msg
}

// newEdit creates an edit with MarkdownV2 parse mode.
func newEdit(chatID int64, msgID int, text string) tgbotapi.EditMessageTextConfig {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	return edit
}

func msgWelcome(generation bool) string {
	var sb strings.Builder

	sb.WriteString(bold("Sophia Quiz Bot"))
	sb.WriteString(md(" tests what you know about philosophy."))
	sb.WriteString("\n\n")

	sb.WriteString(md("🎯 /quiz — start or resume a quiz\n"))
	sb.WriteString(md("🔄 /restart — start over from the first question\n"))
	sb.WriteString(md("📝 /review — go through your last finished quiz\n"))
	sb.WriteString(md("📊 /history — your recent results\n"))

	if generation {
		sb.WriteString("\n")
		sb.WriteString(md("🧠 /generate <topic> [easy|medium|hard] [count] — let AI write a quiz\n"))
		sb.WriteString(md("✋ /cancel — stop a generation in progress\n"))
		sb.WriteString(md("🔀 /source default|generated — choose which questions to play"))
	}

	return sb.String()
}

func msgUnknownCommand() string {
	return md("Unknown command.") + "\n\n" + msgWelcome(false)
}

// formatQuestion formats the current question waiting for an answer.
func formatQuestion(snap service.Snapshot) string {
	var sb strings.Builder

	sb.WriteString(formatHeader(snap))
	sb.WriteString("\n\n")
	sb.WriteString(bold(snap.Question.Prompt))

	if snap.Expired {
		sb.WriteString("\n\n")
		sb.WriteString(md(msgTimeUpUnanswered))
	} else if snap.TimeLimit > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(italic(fmt.Sprintf("You have %s to answer.", snap.TimeLimit)))
	}

	return sb.String()
}

// formatAnswered formats the current question together with answer feedback.
func formatAnswered(snap service.Snapshot) string {
	var sb strings.Builder
	q := snap.Question

	sb.WriteString(formatHeader(snap))
	sb.WriteString("\n\n")
	sb.WriteString(bold(q.Prompt))
	sb.WriteString("\n\n")
	sb.WriteString(md("Your answer: "))
	sb.WriteString(md(q.Options[snap.Selected]))
	sb.WriteString("\n")
	sb.WriteString(formatAnswerFeedback(snap.Selected == q.CorrectIndex, q.CorrectOption()))

	if q.Explanation != "" {
		sb.WriteString("\n\n")
		sb.WriteString(italic(q.Explanation))
	}

	return sb.String()
}

func formatHeader(snap service.Snapshot) string {
	header := fmt.Sprintf("Question %d of %d", snap.Index+1, snap.Total)
	if snap.Topic != "" {
		header += " · " + snap.Topic
	}
	return md(header)
}

// formatAnswerFeedback formats feedback for a quiz answer (MarkdownV2 safe).
func formatAnswerFeedback(isCorrect bool, correctAnswer string) string {
	if isCorrect {
		return md("✅ Correct!")
	}
	return fmt.Sprintf(
		"%s %s %s",
		md("❌ Incorrect."),
		md("Correct answer:"),
		bold(correctAnswer),
	)
}

// formatQuizResult formats quiz results (MarkdownV2 safe).
func formatQuizResult(result entities.QuizResult) string {
	emoji, message := "📚", "Keep reading, the questions will get easier."
	switch {
	case result.Percentage >= 90:
		emoji, message = "🌟", "Excellent! Socrates would have nothing to ask."
	case result.Percentage >= 70:
		emoji, message = "👍", "Good result!"
	case result.Percentage >= 50:
		emoji, message = "💪", "Not bad, keep going!"
	}

	return fmt.Sprintf(
		"%s %s\n\n%s %s\n%s\n\n%s",
		md(emoji),
		md("Quiz finished!"),
		md("Result:"),
		bold(fmt.Sprintf("%d/%d (%d%%)", result.Score, result.Total, result.Percentage)),
		md(buildProgressBar(result.Score, result.Total, 10)),
		md(message),
	)
}

// formatReview formats the per-question breakdown of a finished quiz.
func formatReview(items []entities.ReviewItem, result entities.QuizResult) string {
	var sb strings.Builder

	sb.WriteString(bold(fmt.Sprintf("📝 Review: %d/%d (%d%%)", result.Score, result.Total, result.Percentage)))

	for i, item := range items {
		mark := "✅"
		if !item.IsCorrect {
			mark = "❌"
		}

		sb.WriteString("\n\n")
		sb.WriteString(md(fmt.Sprintf("%s %d. %s", mark, i+1, item.Prompt)))
		sb.WriteString("\n")
		sb.WriteString(md("Your answer: " + item.ChosenOption))
		if !item.IsCorrect {
			sb.WriteString("\n")
			sb.WriteString(md("Correct: "))
			sb.WriteString(bold(item.CorrectOption))
		}
		if item.Explanation != "" {
			sb.WriteString("\n")
			sb.WriteString(italic(item.Explanation))
		}
	}

	return sb.String()
}

// formatHistory formats the user's recent attempts.
func formatHistory(attempts []*entities.QuizAttempt) string {
	if len(attempts) == 0 {
		return md(msgNoHistory)
	}

	var sb strings.Builder
	sb.WriteString(bold("📊 Recent results"))

	for _, a := range attempts {
		source := "built-in"
		if a.Source == entities.SourceGenerated {
			source = "generated"
			if a.Topic != "" {
				source += ": " + a.Topic
			}
		}

		sb.WriteString("\n")
		sb.WriteString(md(fmt.Sprintf("%s  %d/%d (%d%%)  %s",
			a.CompletedAt.UTC().Format("2006-01-02 15:04"),
			a.Score, a.Total, a.Percentage, source,
		)))
	}

	return sb.String()
}

func formatGenerated(set entities.QuestionSet) string {
	return fmt.Sprintf(
		"%s\n\n%s",
		bold(fmt.Sprintf("✨ %d new questions about %s are ready.", set.Len(), set.Topic)),
		md("Press the button or send /quiz to play them."),
	)
}

func buildProgressBar(current, total, length int) string {
	if total <= 0 {
		return ""
	}

	filled := current * length / total
	if filled > length {
		filled = length
	}

	empty := length - filled
	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	return fmt.Sprintf("[%s]", bar)
}
