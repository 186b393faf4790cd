package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by TrySend when the buffer is exhausted.
var ErrQueueFull = errors.New("conversation: queue full")

// MemoryQueue is a queueClient backed by a buffered channel.
type MemoryQueue struct {
	ch chan queueMessage
}

// NewMemoryQueue creates a MemoryQueue holding up to buffer messages.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{ch: make(chan queueMessage, buffer)}
}

func newQueueMessage(body string) queueMessage {
	return queueMessage{ID: uuid.NewString(), Body: body, ReceiptHandle: uuid.NewString()}
}

// Send enqueues body, blocking until there is room or ctx is done.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	select {
	case q.ch <- newQueueMessage(body):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues body without blocking.
func (q *MemoryQueue) TrySend(body string) error {
	select {
	case q.ch <- newQueueMessage(body):
		return nil
	default:
		return ErrQueueFull
	}
}

// Receive waits up to waitSeconds (forever when 0) for the first message and
// then drains whatever else is ready, up to maxMessages.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	var timeout <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	var first queueMessage
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, nil
	case first = <-q.ch:
	}

	messages := append(make([]queueMessage, 0, maxMessages), first)
	for len(messages) < maxMessages {
		select {
		case msg := <-q.ch:
			messages = append(messages, msg)
		default:
			return messages, nil
		}
	}
	return messages, nil
}

// Delete is a no-op for the in-memory queue.
func (q *MemoryQueue) Delete(_ context.Context, _ string) error {
	return nil
}

// Len reports buffered messages.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}
