// Package domain contains core domain types for the survey bot.
package domain

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// State identifies where a user's survey run currently is.
type State string

const (
	// StateIdle indicates no survey run is in progress.
	StateIdle State = "idle"
	// StateAsking indicates the user is answering questions.
	StateAsking State = "asking"
	// StateComplete indicates the last answer has been recorded and the
	// verdict is about to be delivered. It is transient: once the result
	// is emitted the session returns to idle so the user may restart.
	StateComplete State = "complete"
)

// FSM event names driving state transitions.
const (
	EventBegin  = "begin"
	EventFinish = "finish"
	EventCancel = "cancel"
	EventReset  = "reset"
)

// Session holds the per-user survey state. Exactly one session exists per
// user ID at any time; the store enforces uniqueness and the dispatcher
// guarantees events for one user are applied in arrival order.
type Session struct {
	UserID        int64
	QuestionIndex int
	Answers       []int

	machine *fsm.FSM
}

// NewSession creates a fresh idle session for the given user.
func NewSession(userID int64) *Session {
	return &Session{
		UserID:  userID,
		machine: newMachine(StateIdle),
	}
}

func newMachine(initial State) *fsm.FSM {
	return fsm.NewFSM(
		string(initial),
		fsm.Events{
			{Name: EventBegin, Src: []string{string(StateIdle), string(StateAsking), string(StateComplete)}, Dst: string(StateAsking)},
			{Name: EventFinish, Src: []string{string(StateAsking)}, Dst: string(StateComplete)},
			{Name: EventCancel, Src: []string{string(StateAsking)}, Dst: string(StateIdle)},
			{Name: EventReset, Src: []string{string(StateComplete)}, Dst: string(StateIdle)},
		},
		fsm.Callbacks{},
	)
}

// State returns the current state tag.
func (s *Session) State() State {
	return State(s.machine.Current())
}

// Begin starts a fresh survey run, discarding any prior progress.
// Valid from any state, including a run already in progress (restart).
func (s *Session) Begin() error {
	if err := s.fire(EventBegin); err != nil {
		return err
	}
	s.QuestionIndex = 0
	s.Answers = s.Answers[:0]
	return nil
}

// Record appends a validated answer and advances the question cursor.
func (s *Session) Record(answer int) {
	s.Answers = append(s.Answers, answer)
	s.QuestionIndex++
}

// Finish marks the run complete. Valid only while asking.
func (s *Session) Finish() error {
	return s.fire(EventFinish)
}

// Cancel abandons an in-progress run and discards its answers.
func (s *Session) Cancel() error {
	if err := s.fire(EventCancel); err != nil {
		return err
	}
	s.QuestionIndex = 0
	s.Answers = s.Answers[:0]
	return nil
}

// Reset returns a completed session to idle with empty answers.
func (s *Session) Reset() error {
	if err := s.fire(EventReset); err != nil {
		return err
	}
	s.QuestionIndex = 0
	s.Answers = s.Answers[:0]
	return nil
}

// Score returns the sum of recorded answers.
func (s *Session) Score() int {
	total := 0
	for _, a := range s.Answers {
		total += a
	}
	return total
}

// Clone returns an independent copy of the session. The engine mutates a
// clone and the dispatcher commits it only after the reply was delivered,
// so a failed turn never leaves a partially applied session behind.
func (s *Session) Clone() *Session {
	return &Session{
		UserID:        s.UserID,
		QuestionIndex: s.QuestionIndex,
		Answers:       append([]int(nil), s.Answers...),
		machine:       newMachine(s.State()),
	}
}

// fire triggers an FSM event. A self-transition (e.g. restarting while
// already asking) is reported by the library as NoTransitionError and is
// treated as success.
func (s *Session) fire(event string) error {
	err := s.machine.Event(context.Background(), event)
	if err == nil {
		return nil
	}
	var noop fsm.NoTransitionError
	if errors.As(err, &noop) {
		return nil
	}
	return err
}
