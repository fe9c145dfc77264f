package domain

// Event is one normalized unit of inbound work, produced by either the
// webhook handler or the long-poll loop. UpdateID is the platform's update
// identifier; it is monotonically increasing per user and doubles as the
// deduplication key for at-least-once webhook redelivery.
type Event struct {
	UserID    int64
	UpdateID  int
	FirstName string
	Text      string
}

// Reply is an outbound message produced by the flow engine. Keyboard rows
// are plain labels; the transport converts them to platform markup.
type Reply struct {
	Text     string
	Keyboard [][]string
	Markdown bool
}
