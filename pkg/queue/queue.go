package queue

import (
	"sync"
	"time"
)

// RetryRequest is a write to the loans service that failed and is replayed
// later. Only idempotent writes belong here. Requests sharing a Key target
// the same record; only the newest one is kept.
type RetryRequest struct {
	ID          string
	Key         string
	Method      string
	Path        string
	UserID      string
	Body        []byte
	RetryAt     time.Time
	Attempts    int
	MaxAttempts int
}

type Queue struct {
	items   []*RetryRequest
	mu      sync.Mutex
	now     func() time.Time
	backoff time.Duration
}

func NewQueue(backoff time.Duration) *Queue {
	return &Queue{
		items:   make([]*RetryRequest, 0),
		now:     time.Now,
		backoff: backoff,
	}
}

// Enqueue adds req, replacing any pending request with the same key.
func (q *Queue) Enqueue(req *RetryRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if req.RetryAt.IsZero() {
		req.RetryAt = q.now().Add(q.backoff)
	}
	q.dropKey(req.Key)
	q.items = append(q.items, req)
}

// DropKey discards pending requests for key and reports how many there were.
func (q *Queue) DropKey(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropKey(key)
}

func (q *Queue) dropKey(key string) int {
	if key == "" {
		return 0
	}
	kept := q.items[:0]
	for _, req := range q.items {
		if req.Key != key {
			kept = append(kept, req)
		}
	}
	dropped := len(q.items) - len(kept)
	clear(q.items[len(kept):])
	q.items = kept
	return dropped
}

// Dequeue removes and returns the first request that is due, or nil.
func (q *Queue) Dequeue() *RetryRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for i, req := range q.items {
		if !req.RetryAt.After(now) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return req
		}
	}
	return nil
}

// Requeue schedules another attempt with a doubling delay. It reports false
// once the request has used all of its attempts.
func (q *Queue) Requeue(req *RetryRequest) bool {
	req.Attempts++
	if req.MaxAttempts > 0 && req.Attempts >= req.MaxAttempts {
		return false
	}
	delay := q.backoff << min(req.Attempts, 6)
	q.mu.Lock()
	req.RetryAt = q.now().Add(delay)
	q.items = append(q.items, req)
	q.mu.Unlock()
	return true
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) GetAll() []*RetryRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]*RetryRequest, len(q.items))
	copy(result, q.items)
	return result
}
