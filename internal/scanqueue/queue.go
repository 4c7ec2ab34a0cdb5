package scanqueue

import (
	"cardsync/internal/services"
)

// Queue is a bounded FIFO of normalized tag identifiers. It is safe for
// concurrent producers and a single consumer.
type Queue struct {
	ch chan string
}

// New returns a queue holding up to capacity tags. capacity < 1 is treated as 1.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan string, capacity)}
}

// Push enqueues a tag without blocking. It returns services.ErrQueueFull when
// the queue has no room.
func (q *Queue) Push(tagID string) error {
	select {
	case q.ch <- tagID:
		return nil
	default:
		return services.ErrQueueFull
	}
}

// TryReceive dequeues the oldest tag if one is waiting.
func (q *Queue) TryReceive() (string, bool) {
	select {
	case tagID := <-q.ch:
		return tagID, true
	default:
		return "", false
	}
}

// Len reports the number of queued tags.
func (q *Queue) Len() int { return len(q.ch) }

// Cap reports the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
