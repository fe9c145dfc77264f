package transport

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"
)

// UpdateSource fetches one batch of updates at a cursor position.
type UpdateSource interface {
	GetUpdates(offset int, timeout time.Duration) ([]tele.Update, error)
}

// Poller is the pull source: a long-poll loop that repeatedly fetches
// update batches and hands them to the dispatcher in batch order. The
// cursor advances only after a batch's events have been handed off, so a
// crash before hand-off re-delivers the batch rather than losing it.
type Poller struct {
	source     UpdateSource
	dispatcher Dispatcher
	timeout    time.Duration
}

// NewPoller creates a pull loop with the given per-fetch timeout.
func NewPoller(source UpdateSource, d Dispatcher, timeout time.Duration) *Poller {
	return &Poller{source: source, dispatcher: d, timeout: timeout}
}

// Run polls until ctx is cancelled. Fetch timeouts yield empty batches and
// are the expected steady state; other fetch errors are logged and retried
// after a short pause.
func (p *Poller) Run(ctx context.Context) {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Update poller stopped")
			return
		default:
		}

		updates, err := p.source.GetUpdates(offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Update poller stopped")
				return
			}
			slog.Warn("Fetching updates failed", "offset", offset, "error", err)
			select {
			case <-ctx.Done():
				slog.Info("Update poller stopped")
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, u := range updates {
			if ev, ok := eventFromUpdate(u); ok {
				p.dispatcher.Dispatch(ev)
			}
			if u.ID >= offset {
				offset = u.ID + 1
			}
		}
	}
}
