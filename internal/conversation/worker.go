package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

const (
	defaultWorkerCount = 4
	defaultWaitSeconds = 2
	defaultBatchSize   = 5
	jobTimeout         = 2 * time.Minute
)

// InboundHandler processes one chat message.
type InboundHandler interface {
	HandleInbound(ctx context.Context, userID, text string) error
}

// Worker drains the inbound queue. One receiver hands each job to the shard
// owning its user, and every shard runs its jobs in arrival order, so messages
// from one user are never handled out of order.
type Worker struct {
	handler InboundHandler
	queue   queueClient
	workers int
	logger  *logging.Logger
	wg      sync.WaitGroup
}

type shardJob struct {
	msg queueMessage
	job InboundJob
}

// NewWorker creates a worker pool. workers <= 0 uses the default.
func NewWorker(handler InboundHandler, queue queueClient, workers int, logger *logging.Logger) *Worker {
	if handler == nil {
		panic("conversation: handler cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{handler: handler, queue: queue, workers: workers, logger: logger}
}

// Start launches the receiver and the shard goroutines. The receiver stops when
// ctx is cancelled; shards finish the jobs already handed to them.
func (w *Worker) Start(ctx context.Context) {
	shards := make([]chan shardJob, w.workers)
	for i := range shards {
		shards[i] = make(chan shardJob, defaultBatchSize)
		w.wg.Add(1)
		go w.runShard(ctx, i+1, shards[i])
	}
	w.wg.Add(1)
	go w.receive(ctx, shards)
}

// Wait blocks until every goroutine has exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func shardFor(userID string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(shards))
}

func (w *Worker) receive(ctx context.Context, shards []chan shardJob) {
	defer w.wg.Done()
	defer func() {
		for _, ch := range shards {
			close(ch)
		}
	}()
	w.logger.Debug("conversation receiver started", "shards", len(shards))

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation receiver stopping")
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, defaultBatchSize, defaultWaitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.Error("failed to receive conversation jobs", "error", err)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			var job InboundJob
			if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
				w.logger.Error("failed to decode conversation job", "error", err, "msg_id", msg.ID)
				w.deleteMessage(msg.ReceiptHandle)
				continue
			}
			shards[shardFor(job.UserID, len(shards))] <- shardJob{msg: msg, job: job}
		}
	}
}

func (w *Worker) runShard(ctx context.Context, shardID int, jobs <-chan shardJob) {
	defer w.wg.Done()
	for sj := range jobs {
		w.handleJob(ctx, sj)
	}
	w.logger.Debug("conversation shard stopped", "shard_id", shardID)
}

func (w *Worker) handleJob(ctx context.Context, sj shardJob) {
	defer w.deleteMessage(sj.msg.ReceiptHandle)
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("conversation job panicked", "msg_id", sj.msg.ID, "panic", r)
		}
	}()

	job := sj.job
	// Jobs outlive shutdown cancellation so an accepted message is not dropped halfway.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := w.handler.HandleInbound(jobCtx, job.UserID, job.Text); err != nil {
		w.logger.Error("conversation job failed", "job_id", job.ID, "user_id", job.UserID, "error", err)
		return
	}
	w.logger.Debug("conversation job done", "job_id", job.ID, "user_id", job.UserID, "duration_ms", time.Since(start).Milliseconds())
}

func (w *Worker) deleteMessage(receipt string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receipt); err != nil {
		w.logger.Warn("failed to delete conversation job", "error", err)
	}
}
