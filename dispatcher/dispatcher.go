package dispatcher

import (
	"context"
	"sync"
	"time"

	"roomreserve/logger"
	"roomreserve/model"
	"roomreserve/repository"

	"go.uber.org/zap"
)

// Dispatcher delivers a booking event's notification tasks across their
// channels. Every task runs as an independent unit of work: one channel
// failing or blocking never delays or retries another. A task is mutated
// only by the goroutine that owns its delivery.
type Dispatcher struct {
	senders     map[string]ChannelSender
	repo        repository.NotificationRepository
	maxAttempts int
	backoffBase time.Duration
	sendTimeout time.Duration
	log         *zap.Logger
}

type Option func(*Dispatcher)

func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) { d.maxAttempts = n }
}

func WithBackoffBase(base time.Duration) Option {
	return func(d *Dispatcher) { d.backoffBase = base }
}

func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.sendTimeout = timeout }
}

func New(repo repository.NotificationRepository, senders map[string]ChannelSender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		senders:     senders,
		repo:        repo,
		maxAttempts: 3,
		backoffBase: 500 * time.Millisecond,
		sendTimeout: 10 * time.Second,
		log:         logger.Get(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers the given tasks concurrently and returns when every task
// has reached a terminal state or exhausted its retry budget. Callers that
// must not wait run it in a goroutine; delivery outcome never propagates
// back to the booking path.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []model.NotificationTask) {
	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(task model.NotificationTask) {
			defer wg.Done()
			d.deliver(ctx, task)
		}(tasks[i])
	}
	wg.Wait()
}

// deliver drives one task to a terminal state: bounded attempts with
// exponential backoff, each attempt under its own timeout.
func (d *Dispatcher) deliver(ctx context.Context, task model.NotificationTask) {
	// Re-read the durable record: a task that already reached sent or failed
	// (e.g. the recovery sweep racing the original dispatch) is never retried.
	current, err := d.repo.GetTask(task.ID)
	if err != nil {
		d.log.Error("failed to load notification task",
			zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	if current.Status != model.TaskStatusPending {
		return
	}

	sender, ok := d.senders[task.Channel]
	if !ok {
		d.log.Warn("no sender configured for channel",
			zap.String("task_id", task.ID), zap.String("channel", task.Channel))
		if err := d.repo.MarkTaskFailed(task.ID, current.Attempts, "unknown channel"); err != nil {
			d.log.Error("failed to mark task failed", zap.String("task_id", task.ID), zap.Error(err))
		}
		return
	}

	// A recovered task may already have burned its budget before the crash.
	if current.Attempts >= d.maxAttempts {
		if err := d.repo.MarkTaskFailed(task.ID, current.Attempts, "retry budget exhausted"); err != nil {
			d.log.Error("failed to mark task failed", zap.String("task_id", task.ID), zap.Error(err))
		}
		return
	}

	attempts := current.Attempts
	var lastErr error
	for attempts < d.maxAttempts {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		lastErr = sender.Send(sendCtx, task.Recipient, task.Message)
		cancel()

		if lastErr == nil {
			if err := d.repo.MarkTaskSent(task.ID, attempts+1); err != nil {
				d.log.Error("failed to mark task sent",
					zap.String("task_id", task.ID), zap.Error(err))
			}
			d.log.Info("notification delivered",
				zap.String("task_id", task.ID),
				zap.String("channel", task.Channel),
				zap.Int("attempt", attempts+1))
			return
		}

		// Record the failed attempt before backing off, so even a crash
		// mid-retry leaves an accurate count.
		n, err := d.repo.IncrementTaskAttempt(task.ID, lastErr.Error())
		if err != nil {
			d.log.Error("failed to record attempt",
				zap.String("task_id", task.ID), zap.Error(err))
			attempts++
		} else {
			attempts = n
		}

		d.log.Warn("notification attempt failed",
			zap.String("task_id", task.ID),
			zap.String("channel", task.Channel),
			zap.Int("attempt", attempts),
			zap.Error(lastErr))

		if attempts < d.maxAttempts {
			backoff := d.backoffBase << uint(attempts-1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				// Leave the task pending; the recovery sweep picks it up.
				return
			}
		}
	}

	// Retry budget exhausted: terminal failure, surfaced through the audit
	// log only. The booking itself is untouched.
	if err := d.repo.MarkTaskFailed(task.ID, attempts, lastErr.Error()); err != nil {
		d.log.Error("failed to mark task failed",
			zap.String("task_id", task.ID), zap.Error(err))
	}
	d.log.Error("notification permanently failed",
		zap.String("task_id", task.ID),
		zap.String("booking_id", task.BookingID),
		zap.String("channel", task.Channel),
		zap.Int("attempts", attempts),
		zap.Error(lastErr))
}
