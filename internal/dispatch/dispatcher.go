// Package dispatch routes inbound events to per-user serial workers and
// contains failures so one user's turn can never corrupt another user's
// session or crash the process.
package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/dfursa/qapolls-bot/internal/domain"
	"github.com/dfursa/qapolls-bot/internal/store"
)

// workerQueueSize bounds the per-user backlog. Enqueueing blocks when the
// queue is full rather than dropping events, preserving per-user order.
const workerQueueSize = 16

// Engine advances a session by one inbound event.
type Engine interface {
	Step(s *domain.Session, ev domain.Event) (*domain.Session, domain.Reply, error)
}

// Sender delivers a reply to a user via the messaging platform.
type Sender interface {
	Send(userID int64, reply domain.Reply) error
}

// Dispatcher owns one worker goroutine per active user. Events for the
// same user are applied in arrival order; events for different users run
// concurrently.
type Dispatcher struct {
	ctx     context.Context
	store   *store.Store
	engine  Engine
	sender  Sender
	failure domain.Reply

	mu      sync.Mutex
	workers map[int64]*worker
	wg      sync.WaitGroup
}

type worker struct {
	jobs chan domain.Event

	// lastUpdateID is the highest update ID already applied for this user.
	// Only the worker goroutine touches it.
	lastUpdateID int
}

// New creates a dispatcher. Workers exit once ctx is cancelled; call Wait
// to block until they have drained their queues.
func New(ctx context.Context, st *store.Store, engine Engine, sender Sender, failure domain.Reply) *Dispatcher {
	return &Dispatcher{
		ctx:     ctx,
		store:   st,
		engine:  engine,
		sender:  sender,
		failure: failure,
		workers: make(map[int64]*worker),
	}
}

// Dispatch enqueues one event for its user's worker, starting the worker
// on first contact. During shutdown the event is dropped.
func (d *Dispatcher) Dispatch(ev domain.Event) {
	d.mu.Lock()
	w, ok := d.workers[ev.UserID]
	if !ok {
		w = &worker{jobs: make(chan domain.Event, workerQueueSize)}
		d.workers[ev.UserID] = w
		d.wg.Add(1)
		go d.run(w)
	}
	d.mu.Unlock()

	select {
	case w.jobs <- ev:
	case <-d.ctx.Done():
		slog.Info("Dropping inbound event during shutdown", "user_id", ev.UserID, "update_id", ev.UpdateID)
	}
}

// Wait blocks until all workers have stopped. Meaningful only after the
// dispatcher's context has been cancelled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(w *worker) {
	defer d.wg.Done()
	for {
		select {
		case ev := <-w.jobs:
			d.process(w, ev)
		case <-d.ctx.Done():
			// Drain whatever was already enqueued before stopping.
			for {
				select {
				case ev := <-w.jobs:
					d.process(w, ev)
				default:
					return
				}
			}
		}
	}
}

// process applies one event inside the error-containment boundary. The
// session is committed only after the reply was delivered, so a failed
// turn leaves the pre-event state intact and a redelivered update can
// retry it.
func (d *Dispatcher) process(w *worker, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered from panic while processing update",
				"user_id", ev.UserID,
				"update_id", ev.UpdateID,
				"panic", r,
				"stack", string(debug.Stack()))
			d.fail(w, ev)
		}
	}()

	if ev.UpdateID != 0 && ev.UpdateID <= w.lastUpdateID {
		slog.Debug("Skipping duplicate update", "user_id", ev.UserID, "update_id", ev.UpdateID)
		return
	}

	session := d.store.Get(ev.UserID)
	next, reply, err := d.engine.Step(session, ev)
	if err != nil {
		slog.Error("Engine step failed", "user_id", ev.UserID, "update_id", ev.UpdateID, "error", err)
		d.fail(w, ev)
		return
	}

	if err := d.sender.Send(ev.UserID, reply); err != nil {
		slog.Warn("Reply delivery failed, session unchanged", "user_id", ev.UserID, "update_id", ev.UpdateID, "error", err)
		// Best-effort apology; its own failure is swallowed.
		if aerr := d.sender.Send(ev.UserID, d.failure); aerr != nil {
			slog.Debug("Apology delivery failed", "user_id", ev.UserID, "error", aerr)
		}
		return
	}

	d.store.Put(next)
	d.mark(w, ev)
}

// fail resets the user's session to a fresh idle one so the state machine
// cannot get stuck, marks the update as consumed so a redelivery does not
// replay the poisoned input, and attempts a generic failure notice.
func (d *Dispatcher) fail(w *worker, ev domain.Event) {
	d.store.Clear(ev.UserID)
	d.mark(w, ev)
	if err := d.sender.Send(ev.UserID, d.failure); err != nil {
		slog.Warn("Failure notice delivery failed", "user_id", ev.UserID, "error", err)
	}
}

func (d *Dispatcher) mark(w *worker, ev domain.Event) {
	if ev.UpdateID > w.lastUpdateID {
		w.lastUpdateID = ev.UpdateID
	}
}
