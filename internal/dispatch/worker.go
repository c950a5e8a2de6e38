package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/swandust/clinic-concierge/internal/flow"
	"github.com/swandust/clinic-concierge/internal/gateway"
	"github.com/swandust/clinic-concierge/pkg/logging"
)

// MessageHandler processes one inbound message for a user. Satisfied by the
// flow engine.
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID string, msg gateway.Inbound) (flow.Result, error)
}

const (
	defaultWorkerCount = 2
	defaultWaitSeconds = 2
	defaultBatchSize   = 5
	maxWaitSeconds     = 20
	maxBatchSize       = 10
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxBatchSize {
			size = maxBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// Worker consumes inbound messages from the queue and feeds them to the
// handler. A per-user lock keeps a user's messages from being handled
// concurrently; arrival ORDER across goroutines comes from the queue's
// group ordering (SQS FIFO holds back a group until the previous message
// is deleted). The in-memory queue has no group ordering, so deployments
// using it should run a single worker goroutine.
type Worker struct {
	handler MessageHandler
	queue   queueClient
	logger  *logging.Logger
	cfg     workerConfig

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
	wg        sync.WaitGroup
}

// NewWorker constructs a queue consumer around the provided handler.
func NewWorker(handler MessageHandler, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if handler == nil {
		panic("dispatch: handler cannot be nil")
	}
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		handler:   handler,
		queue:     queue,
		logger:    logger,
		cfg:       cfg,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("receive inbound messages", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("decode inbound message", "error", err, "message_id", msg.ID)
		w.deleteMessage(ctx, msg)
		return
	}
	inbound, err := payload.inbound()
	if err != nil {
		w.logger.Error("decode inbound message", "error", err, "message_id", msg.ID)
		w.deleteMessage(ctx, msg)
		return
	}

	lock := w.lockFor(payload.UserID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := w.handler.HandleMessage(ctx, payload.UserID, inbound); err != nil {
		// The flow already told the user and reset the session; the message
		// is spent either way, so it is deleted rather than redelivered.
		w.logger.Error("handle inbound message", "error", err, "user_id", payload.UserID)
	}
	w.deleteMessage(ctx, msg)
}

func (w *Worker) deleteMessage(ctx context.Context, msg queueMessage) {
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, msg.ReceiptHandle); err != nil {
		w.logger.Warn("delete inbound message", "error", err, "message_id", msg.ID)
	}
}

func (w *Worker) lockFor(userID string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, ok := w.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		w.userLocks[userID] = lock
	}
	return lock
}
