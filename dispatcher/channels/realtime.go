package channels

import (
	"context"
	"time"

	"roomreserve/eventbus"
)

// RealtimeSender pushes the message toward the user's live sessions through
// the event-bus pusher (local hub or the Redis bridge). A push that reaches
// the bus counts as delivered: the bus itself is best-effort, and clients
// that missed it recover by polling.
type RealtimeSender struct {
	pusher eventbus.Pusher
}

func NewRealtimeSender(pusher eventbus.Pusher) *RealtimeSender {
	return &RealtimeSender{pusher: pusher}
}

func (s *RealtimeSender) Send(ctx context.Context, recipient, message string) error {
	return s.pusher.Push(recipient, eventbus.Event{
		Type:      "notification",
		Message:   message,
		Timestamp: time.Now(),
	})
}
