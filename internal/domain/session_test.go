package domain

import (
	"testing"
)

func TestNewSessionStartsIdle(t *testing.T) {
	s := NewSession(42)

	if s.State() != StateIdle {
		t.Errorf("Expected state %q, got %q", StateIdle, s.State())
	}
	if len(s.Answers) != 0 {
		t.Errorf("Expected no answers, got %v", s.Answers)
	}
}

func TestSessionBeginResetsProgress(t *testing.T) {
	s := NewSession(1)
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	s.Record(4)
	s.Record(5)

	// Restarting mid-run discards accumulated answers.
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin from asking failed: %v", err)
	}

	if s.State() != StateAsking {
		t.Errorf("Expected state %q, got %q", StateAsking, s.State())
	}
	if s.QuestionIndex != 0 {
		t.Errorf("Expected question index 0, got %d", s.QuestionIndex)
	}
	if len(s.Answers) != 0 {
		t.Errorf("Expected answers cleared, got %v", s.Answers)
	}
}

func TestSessionCancel(t *testing.T) {
	s := NewSession(1)
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	s.Record(3)

	if err := s.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if s.State() != StateIdle {
		t.Errorf("Expected state %q, got %q", StateIdle, s.State())
	}
	if len(s.Answers) != 0 {
		t.Errorf("Expected answers discarded, got %v", s.Answers)
	}
}

func TestSessionFinishRequiresAsking(t *testing.T) {
	s := NewSession(1)

	if err := s.Finish(); err == nil {
		t.Error("Expected Finish from idle to fail")
	}

	if err := s.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := s.Finish(); err != nil {
		t.Fatalf("Finish from asking failed: %v", err)
	}
	if s.State() != StateComplete {
		t.Errorf("Expected state %q, got %q", StateComplete, s.State())
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("Expected state %q, got %q", StateIdle, s.State())
	}
}

func TestSessionScore(t *testing.T) {
	s := NewSession(1)
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for _, a := range []int{5, 4, 3, 2, 1} {
		s.Record(a)
	}

	if got := s.Score(); got != 15 {
		t.Errorf("Expected score 15, got %d", got)
	}
	if s.QuestionIndex != 5 {
		t.Errorf("Expected question index 5, got %d", s.QuestionIndex)
	}
}

func TestSessionCloneIsIndependent(t *testing.T) {
	s := NewSession(7)
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	s.Record(2)

	c := s.Clone()
	c.Record(5)
	if err := c.Finish(); err != nil {
		t.Fatalf("Finish on clone failed: %v", err)
	}
	if c.State() != StateComplete {
		t.Errorf("Expected clone state %q, got %q", StateComplete, c.State())
	}

	if s.State() != StateAsking {
		t.Errorf("Clone mutation leaked into original state: %q", s.State())
	}
	if len(s.Answers) != 1 || s.Answers[0] != 2 {
		t.Errorf("Clone mutation leaked into original answers: %v", s.Answers)
	}
}
