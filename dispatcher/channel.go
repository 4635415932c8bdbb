package dispatcher

import "context"

// ChannelSender is the single capability every notification provider exposes.
// The dispatcher treats all providers uniformly through it; implementations
// must respect ctx cancellation since sends may block on network I/O.
type ChannelSender interface {
	Send(ctx context.Context, recipient, message string) error
}
