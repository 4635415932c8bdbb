package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"roomreserve/dispatcher"
	"roomreserve/logger"
	"roomreserve/model"
	"roomreserve/repository"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NotificationProcessor consumes settled booking events and drives the
// dispatcher. A pool of workers keeps slow channel providers on one event
// from delaying delivery for other bookings. A periodic sweep re-dispatches
// stale pending tasks so a crash between the durable record and the send
// never loses a notification.
type NotificationProcessor struct {
	tasks      repository.NotificationRepository
	dispatcher *dispatcher.Dispatcher
	consumer   *kafka.Reader

	workerPool chan chan kafka.Message
	workers    []*notificationWorker

	sweepInterval  time.Duration
	recoveryMinAge time.Duration

	// Metrics
	processedCount int64
	activeWorkers  int64

	log *zap.Logger
}

type notificationWorker struct {
	id         int
	processor  *NotificationProcessor
	jobChannel chan kafka.Message
	workerPool chan chan kafka.Message
	quit       chan bool
}

func NewNotificationProcessor(
	tasks repository.NotificationRepository,
	disp *dispatcher.Dispatcher,
	consumer *kafka.Reader,
	maxWorkers int,
	sweepInterval time.Duration,
	recoveryMinAge time.Duration,
) *NotificationProcessor {
	processor := &NotificationProcessor{
		tasks:          tasks,
		dispatcher:     disp,
		consumer:       consumer,
		workerPool:     make(chan chan kafka.Message, maxWorkers),
		workers:        make([]*notificationWorker, maxWorkers),
		sweepInterval:  sweepInterval,
		recoveryMinAge: recoveryMinAge,
		log:            logger.Get(),
	}

	for i := 0; i < maxWorkers; i++ {
		processor.workers[i] = &notificationWorker{
			id:         i,
			processor:  processor,
			jobChannel: make(chan kafka.Message),
			workerPool: processor.workerPool,
			quit:       make(chan bool),
		}
	}

	return processor
}

// Start begins consuming notification events. It blocks until ctx is
// cancelled.
func (p *NotificationProcessor) Start(ctx context.Context) error {
	p.log.Info("starting notification processor", zap.Int("workers", len(p.workers)))

	for _, worker := range p.workers {
		worker.start()
	}

	go p.recoverPending(ctx)
	go p.reportMetrics(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("notification processor shutting down")
			p.shutdown()
			return ctx.Err()
		default:
			msg, err := p.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				p.log.Error("error reading notification event", zap.Error(err))
				continue
			}

			// Dispatch to worker pool (blocks if all workers busy)
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- msg:
				case <-ctx.Done():
					return ctx.Err()
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w *notificationWorker) start() {
	go func() {
		for {
			// Register this worker in the pool
			w.workerPool <- w.jobChannel

			select {
			case job := <-w.jobChannel:
				atomic.AddInt64(&w.processor.activeWorkers, 1)

				if err := w.processor.processEvent(job); err != nil {
					w.processor.log.Error("failed to process notification event",
						zap.Int("worker", w.id), zap.Error(err))
				}

				atomic.AddInt64(&w.processor.processedCount, 1)
				atomic.AddInt64(&w.processor.activeWorkers, -1)

			case <-w.quit:
				return
			}
		}
	}()
}

func (w *notificationWorker) stop() {
	w.quit <- true
}

// shutdown waits for in-flight deliveries to finish, with a timeout.
func (p *NotificationProcessor) shutdown() {
	for _, worker := range p.workers {
		worker.stop()
	}

	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			p.log.Warn("shutdown timeout reached, forcing exit")
			return
		case <-ticker.C:
			if atomic.LoadInt64(&p.activeWorkers) == 0 {
				p.log.Info("all workers finished gracefully")
				return
			}
		}
	}
}

// processEvent delivers every pending task recorded for the event's booking.
func (p *NotificationProcessor) processEvent(msg kafka.Message) error {
	var event model.NotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal notification event: %w", err)
	}

	p.log.Info("processing notification event",
		zap.String("type", event.Type),
		zap.String("booking_id", event.BookingID))

	tasks, err := p.tasks.GetTasksByBooking(event.BookingID)
	if err != nil {
		return fmt.Errorf("failed to load tasks for booking %s: %w", event.BookingID, err)
	}

	pending := tasks[:0]
	for _, t := range tasks {
		if t.Status == model.TaskStatusPending {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	p.dispatcher.Dispatch(context.Background(), pending)
	return nil
}

// recoverPending periodically re-dispatches tasks that have been pending
// longer than the recovery age: work orphaned by a crash or a lost event.
func (p *NotificationProcessor) recoverPending(ctx context.Context) {
	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stale, err := p.tasks.ListPendingTasks(time.Now().Add(-p.recoveryMinAge), 100)
			if err != nil {
				p.log.Error("recovery sweep failed", zap.Error(err))
				continue
			}
			if len(stale) == 0 {
				continue
			}
			p.log.Info("recovering stale pending notifications", zap.Int("count", len(stale)))
			p.dispatcher.Dispatch(ctx, stale)
		}
	}
}

// reportMetrics logs throughput counters.
func (p *NotificationProcessor) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.log.Info("notification processor metrics",
				zap.Int64("processed", atomic.LoadInt64(&p.processedCount)),
				zap.Int64("active_workers", atomic.LoadInt64(&p.activeWorkers)))
		}
	}
}
