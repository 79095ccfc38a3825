package worker

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"

	"aws-sqs-reliable-queue/config"
	"aws-sqs-reliable-queue/internal/pkg/logger"
	"aws-sqs-reliable-queue/internal/pkg/observability/metrics"
	"aws-sqs-reliable-queue/internal/pkg/queue"
)

// TaskMessage is the body every task on the queue must carry.
type TaskMessage struct {
	Job string `json:"job" validate:"required"`
	ID  int64  `json:"id" validate:"required"`
}

// Worker claims tasks from the queue and processes them with a bounded
// pool. A processed task is deleted; a failed one is released for
// redelivery.
type Worker struct {
	Queue     queue.Queue
	Validator *validator.Validate
	Config    *config.Config

	// Handler runs one task; the default handler only logs it.
	Handler func(ctx context.Context, task TaskMessage) error
}

// Run polls the queue until ctx ends.
func (w *Worker) Run(ctx context.Context) {
	jobs := make(chan *queue.Item, w.Config.QueueWorkerPoolSize)
	defer close(jobs)

	// Start worker pool
	for i := 0; i < w.Config.QueueWorkerPoolSize; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					logger.Info("Message worker exiting")
					return
				case item, ok := <-jobs:
					if !ok {
						return
					}
					w.processItem(ctx, item)
				}
			}
		}()
	}

	logger.Info("start queue polling")
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping message polling loop")
			return
		default:
			item, err := w.Queue.Claim(ctx, 0, false)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("Failed to claim message", logger.Err(err))
				time.Sleep(w.Config.PollingIntervalDuration)
				continue
			}
			if item == nil {
				// Long poll already waited; an empty claim is normal.
				metrics.ClaimMisses.Inc()
				continue
			}
			metrics.MessagesClaimed.Inc()

			if count, err := w.Queue.ApproximateCount(ctx); err == nil {
				metrics.QueueBacklog.Set(float64(count))
			}

			select {
			case jobs <- item:
			case <-ctx.Done():
				w.release(ctx, item)
				return
			}
		}
	}
}

func (w *Worker) processItem(ctx context.Context, item *queue.Item) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing message",
				logger.String("id", item.ID), logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			metrics.MessagesFailed.Inc()
			w.release(ctx, item)
		}
	}()

	start := time.Now()

	var task TaskMessage
	if err := json.Unmarshal([]byte(item.Body), &task); err != nil {
		logger.ErrorCtx(ctx, "failed to unmarshal task message",
			logger.String("id", item.ID), logger.Err(err))
		w.discard(ctx, item)
		return
	}

	if err := w.Validator.Struct(task); err != nil {
		logger.ErrorCtx(ctx, "task message validation failed",
			logger.String("id", item.ID), logger.Err(err))
		w.discard(ctx, item)
		return
	}

	if err := w.execute(ctx, task); err != nil {
		logger.ErrorCtx(ctx, "task execution failed",
			logger.String("id", item.ID), logger.String("job", task.Job), logger.Err(err))
		metrics.MessagesFailed.Inc()
		w.release(ctx, item)
		return
	}

	if err := w.Queue.Delete(ctx, item); err != nil {
		logger.ErrorCtx(ctx, "unable to delete processed message",
			logger.String("id", item.ID), logger.Err(err))
		return
	}
	metrics.MessagesDeleted.Inc()
	metrics.MessageProcessingTime.Observe(time.Since(start).Seconds())
}

func (w *Worker) execute(ctx context.Context, task TaskMessage) error {
	if w.Handler != nil {
		return w.Handler(ctx, task)
	}
	logger.InfoCtx(ctx, "processing task",
		logger.String("job", task.Job), logger.Int("taskID", int(task.ID)))
	return nil
}

// discard deletes a message that can never be processed. Releasing it
// would only redeliver the same malformed body forever.
func (w *Worker) discard(ctx context.Context, item *queue.Item) {
	metrics.MessagesFailed.Inc()
	if err := w.Queue.Delete(ctx, item); err != nil {
		logger.Error("unable to discard malformed message",
			logger.String("id", item.ID), logger.Err(err))
	}
}

func (w *Worker) release(ctx context.Context, item *queue.Item) {
	if err := w.Queue.Release(ctx, item); err != nil {
		logger.Error("unable to release message",
			logger.String("id", item.ID), logger.Err(err))
		return
	}
	metrics.MessagesReleased.Inc()
}
