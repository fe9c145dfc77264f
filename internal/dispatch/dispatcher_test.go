package dispatch

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dfursa/qapolls-bot/internal/domain"
	"github.com/dfursa/qapolls-bot/internal/flow"
	"github.com/dfursa/qapolls-bot/internal/store"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  map[int64][]domain.Reply
	fail  bool
	calls int
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[int64][]domain.Reply)}
}

func (f *fakeSender) Send(userID int64, reply domain.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("network unreachable")
	}
	f.sent[userID] = append(f.sent[userID], reply)
	return nil
}

func (f *fakeSender) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

// waitCalls blocks until at least n send attempts were made.
func (f *fakeSender) waitCalls(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		calls := f.calls
		f.mu.Unlock()
		if calls >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d send attempts", n)
}

func (f *fakeSender) replies(userID int64) []domain.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Reply(nil), f.sent[userID]...)
}

type panicEngine struct{}

func (panicEngine) Step(*domain.Session, domain.Event) (*domain.Session, domain.Reply, error) {
	panic("boom")
}

func newTestDispatcher(sender Sender) (*Dispatcher, *store.Store, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	st := store.New()
	engine := flow.New(flow.Questions, flow.Bands)
	return New(ctx, st, engine, sender, flow.FailureReply()), st, cancel
}

// drain stops the dispatcher and waits for workers to finish their queues.
func drain(d *Dispatcher, cancel context.CancelFunc) {
	cancel()
	d.Wait()
}

func TestPerUserOrdering(t *testing.T) {
	sender := newFakeSender()
	d, _, cancel := newTestDispatcher(sender)

	d.Dispatch(domain.Event{UserID: 1, UpdateID: 1, Text: "/start"})
	for i, a := range []string{"5", "4", "3", "2", "1"} {
		d.Dispatch(domain.Event{UserID: 1, UpdateID: 2 + i, Text: a})
	}
	drain(d, cancel)

	replies := sender.replies(1)
	if len(replies) != 6 {
		t.Fatalf("Expected 6 replies, got %d", len(replies))
	}
	for i := 0; i < 5; i++ {
		if replies[i].Text != flow.Questions[i] {
			t.Errorf("Reply %d: expected question %d, got %q", i, i, replies[i].Text)
		}
	}
	if !strings.Contains(replies[5].Text, "15/25") {
		t.Errorf("Expected final score 15/25, got %q", replies[5].Text)
	}
}

func TestTwoUsersInterleavedKeepIndependentScores(t *testing.T) {
	sender := newFakeSender()
	d, _, cancel := newTestDispatcher(sender)

	d.Dispatch(domain.Event{UserID: 1, UpdateID: 1, Text: "/start"})
	d.Dispatch(domain.Event{UserID: 2, UpdateID: 2, Text: "/start"})
	for i := 0; i < 5; i++ {
		d.Dispatch(domain.Event{UserID: 1, UpdateID: 3 + 2*i, Text: "5"})
		d.Dispatch(domain.Event{UserID: 2, UpdateID: 4 + 2*i, Text: "1"})
	}
	drain(d, cancel)

	last := func(userID int64) string {
		replies := sender.replies(userID)
		if len(replies) == 0 {
			t.Fatalf("No replies for user %d", userID)
		}
		return replies[len(replies)-1].Text
	}

	if got := last(1); !strings.Contains(got, "25/25") {
		t.Errorf("User 1: expected score 25/25, got %q", got)
	}
	if got := last(2); !strings.Contains(got, "5/25") {
		t.Errorf("User 2: expected score 5/25, got %q", got)
	}
}

func TestDuplicateUpdateNotDoubleCounted(t *testing.T) {
	sender := newFakeSender()
	d, st, cancel := newTestDispatcher(sender)

	d.Dispatch(domain.Event{UserID: 1, UpdateID: 10, Text: "/start"})
	d.Dispatch(domain.Event{UserID: 1, UpdateID: 11, Text: "4"})
	// At-least-once redelivery of the same update.
	d.Dispatch(domain.Event{UserID: 1, UpdateID: 11, Text: "4"})
	drain(d, cancel)

	s := st.Get(1)
	if len(s.Answers) != 1 {
		t.Errorf("Expected 1 answer after duplicate delivery, got %v", s.Answers)
	}
	if s.QuestionIndex != 1 {
		t.Errorf("Expected question index 1, got %d", s.QuestionIndex)
	}
	if replies := sender.replies(1); len(replies) != 2 {
		t.Errorf("Expected 2 replies (no re-send for duplicate), got %d", len(replies))
	}
}

func TestSendFailureLeavesSessionUnchanged(t *testing.T) {
	sender := newFakeSender()
	d, st, cancel := newTestDispatcher(sender)

	sender.setFail(true)
	d.Dispatch(domain.Event{UserID: 1, UpdateID: 1, Text: "/start"})
	drain(d, cancel)

	if got := st.Get(1).State(); got != domain.StateIdle {
		t.Errorf("Expected session unchanged at %q, got %q", domain.StateIdle, got)
	}
	// Reply attempt plus best-effort apology.
	if sender.calls != 2 {
		t.Errorf("Expected 2 send attempts, got %d", sender.calls)
	}
}

func TestSendFailureAllowsRetryOnRedelivery(t *testing.T) {
	sender := newFakeSender()
	d, st, cancel := newTestDispatcher(sender)

	sender.setFail(true)
	d.Dispatch(domain.Event{UserID: 1, UpdateID: 5, Text: "/start"})
	sender.waitCalls(t, 2)

	// The failed update was never marked as applied, so its redelivery
	// is processed once the transport recovers.
	sender.setFail(false)
	d.Dispatch(domain.Event{UserID: 1, UpdateID: 5, Text: "/start"})
	drain(d, cancel)

	if got := st.Get(1).State(); got != domain.StateAsking {
		t.Errorf("Expected state %q after retry, got %q", domain.StateAsking, got)
	}
}

func TestPanicRecovered(t *testing.T) {
	sender := newFakeSender()
	ctx, cancel := context.WithCancel(context.Background())
	st := store.New()
	d := New(ctx, st, panicEngine{}, sender, flow.FailureReply())

	// Put the user mid-survey first so the reset is observable.
	s := st.Get(1)
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	s.Record(5)

	d.Dispatch(domain.Event{UserID: 1, UpdateID: 1, Text: "5"})
	drain(d, cancel)

	fresh := st.Get(1)
	if fresh.State() != domain.StateIdle || len(fresh.Answers) != 0 {
		t.Errorf("Expected session reset to idle, got state=%q answers=%v", fresh.State(), fresh.Answers)
	}
	replies := sender.replies(1)
	if len(replies) != 1 || replies[0].Text != flow.FailureReply().Text {
		t.Errorf("Expected one failure notice, got %v", replies)
	}
}

func TestManyUsersConcurrently(t *testing.T) {
	sender := newFakeSender()
	d, _, cancel := newTestDispatcher(sender)

	var wg sync.WaitGroup
	for u := int64(1); u <= 8; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			base := int(userID) * 100
			d.Dispatch(domain.Event{UserID: userID, UpdateID: base, Text: "/start"})
			for i := 0; i < 5; i++ {
				d.Dispatch(domain.Event{UserID: userID, UpdateID: base + 1 + i, Text: strconv.Itoa(int(userID%5) + 1)})
			}
		}(u)
	}
	wg.Wait()
	drain(d, cancel)

	for u := int64(1); u <= 8; u++ {
		answer := int(u%5) + 1
		want := strconv.Itoa(answer*5) + "/25"
		replies := sender.replies(u)
		if len(replies) != 6 {
			t.Fatalf("User %d: expected 6 replies, got %d", u, len(replies))
		}
		if got := replies[5].Text; !strings.Contains(got, want) {
			t.Errorf("User %d: expected score %s, got %q", u, want, got)
		}
	}
}
