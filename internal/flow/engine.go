// Package flow implements the per-user survey state machine.
package flow

import (
	"fmt"
	"strings"

	"github.com/dfursa/qapolls-bot/internal/domain"
)

// Engine turns an inbound event plus the current session into the next
// session state and an outbound reply. It never mutates the session it is
// given: it works on a clone, which the caller commits only after the
// reply has been delivered.
type Engine struct {
	questions []string
	bands     []Band
}

// New creates an engine for the given question set and verdict bands.
func New(questions []string, bands []Band) *Engine {
	return &Engine{questions: questions, bands: bands}
}

// FailureReply is the generic notice shown when processing a turn fails
// unexpectedly.
func FailureReply() domain.Reply {
	return domain.Reply{Text: failureText, Keyboard: MainMenu}
}

// Step applies one inbound event. The returned session is a new value; the
// input session is left untouched.
//
// A start command received mid-survey restarts the run from question 0,
// discarding progress. Slash commands other than start/cancel answer with
// their copy without touching survey state, matching the command handlers
// that remain registered during a run.
func (e *Engine) Step(s *domain.Session, ev domain.Event) (*domain.Session, domain.Reply, error) {
	next := s.Clone()
	text := strings.TrimSpace(ev.Text)

	switch {
	case isStartCommand(text):
		if err := next.Begin(); err != nil {
			return s, domain.Reply{}, fmt.Errorf("begin survey for %d: %w", ev.UserID, err)
		}
		return next, e.question(0), nil

	case isCancelCommand(text):
		if next.State() == domain.StateAsking {
			if err := next.Cancel(); err != nil {
				return s, domain.Reply{}, fmt.Errorf("cancel survey for %d: %w", ev.UserID, err)
			}
			return next, domain.Reply{Text: cancelledText, Keyboard: MainMenu}, nil
		}
		return next, greeting(ev.FirstName), nil

	case isAboutCommand(text):
		return next, domain.Reply{Text: aboutText, Keyboard: MainMenu, Markdown: true}, nil

	case isHelpCommand(text):
		return next, greeting(ev.FirstName), nil
	}

	if next.State() != domain.StateAsking {
		// Free text outside a run gets the menu.
		return next, greeting(ev.FirstName), nil
	}

	answer, ok := parseAnswer(text)
	if !ok {
		// Validation failure does not consume the turn: index and answers
		// stay untouched and the open question is repeated.
		return next, domain.Reply{
			Text:     invalidAnswerText + "\n\n" + e.questions[next.QuestionIndex],
			Keyboard: AnswerKeyboard,
		}, nil
	}

	next.Record(answer)
	if next.QuestionIndex < len(e.questions) {
		return next, e.question(next.QuestionIndex), nil
	}

	if err := next.Finish(); err != nil {
		return s, domain.Reply{}, fmt.Errorf("finish survey for %d: %w", ev.UserID, err)
	}
	score := next.Score()
	reply := domain.Reply{
		Text:     fmt.Sprintf("🔍 Ваш результат: %d/%d\n\n%s", score, e.maxScore(), e.verdict(score)),
		Keyboard: MainMenu,
	}
	if err := next.Reset(); err != nil {
		return s, domain.Reply{}, fmt.Errorf("reset survey for %d: %w", ev.UserID, err)
	}
	return next, reply, nil
}

func (e *Engine) question(index int) domain.Reply {
	return domain.Reply{Text: e.questions[index], Keyboard: AnswerKeyboard}
}

func (e *Engine) maxScore() int {
	return 5 * len(e.questions)
}

// verdict maps a score to the first band whose threshold it reaches.
func (e *Engine) verdict(score int) string {
	for _, b := range e.bands {
		if score >= b.Threshold {
			return b.Message
		}
	}
	return e.bands[len(e.bands)-1].Message
}

func greeting(firstName string) domain.Reply {
	text := fmt.Sprintf("Привет, %s! Я %s.\nВыберите действие:", firstName, BotName)
	if firstName == "" {
		text = fmt.Sprintf("Привет! Я %s.\nВыберите действие:", BotName)
	}
	return domain.Reply{Text: text, Keyboard: MainMenu}
}

func isStartCommand(text string) bool {
	return text == "/start" || text == startButton
}

func isCancelCommand(text string) bool {
	return text == "/cancel"
}

func isAboutCommand(text string) bool {
	return text == "/about" || text == aboutButton
}

func isHelpCommand(text string) bool {
	return text == "/help" || text == helpButton
}
