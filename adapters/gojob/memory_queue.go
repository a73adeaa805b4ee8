package gojob

import (
	"context"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

const DefaultPollInterval = 250 * time.Millisecond

// MemoryQueue is an in-process go-job queue for single-node deployments
// and tests. Messages with the "drop" dedup policy are ignored while another
// message with the same idempotency key is queued or in flight.
type MemoryQueue struct {
	Now          func() time.Time
	PollInterval time.Duration
	Logger       job.Logger

	mu          sync.Mutex
	items       []*memoryItem
	keys        map[string]struct{}
	deadLetters []*job.ExecutionMessage
	notify      chan struct{}
}

type memoryItem struct {
	msg       *job.ExecutionMessage
	attempt   int
	visibleAt time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		Now:          func() time.Time { return time.Now().UTC() },
		PollInterval: DefaultPollInterval,
		keys:         map[string]struct{}{},
		notify:       make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return nil
	}
	q.mu.Lock()
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key != "" && strings.EqualFold(string(msg.DedupPolicy), "drop") {
		if _, pending := q.keys[key]; pending {
			q.mu.Unlock()
			q.log("job dropped as duplicate", "job_id", msg.JobID, "idempotency_key", key)
			return nil
		}
	}
	if key != "" {
		q.keys[key] = struct{}{}
	}
	q.items = append(q.items, &memoryItem{msg: msg, visibleAt: q.now()})
	q.mu.Unlock()
	q.wake()
	return nil
}

// Dequeue blocks until a message is visible or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	for {
		if item := q.take(); item != nil {
			return &memoryDelivery{queue: q, item: item}, nil
		}
		wait := q.PollInterval
		if wait <= 0 {
			wait = DefaultPollInterval
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Len reports queued messages, including delayed ones.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*job.ExecutionMessage, len(q.deadLetters))
	copy(out, q.deadLetters)
	return out
}

func (q *MemoryQueue) take() *memoryItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for i, item := range q.items {
		if item.visibleAt.After(now) {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		item.attempt++
		return item
	}
	return nil
}

func (q *MemoryQueue) settle(item *memoryItem, opts *queue.NackOptions) {
	if opts != nil && opts.DeadLetter && !opts.Requeue {
		q.log("job dead-lettered",
			"job_id", item.msg.JobID,
			"idempotency_key", item.msg.IdempotencyKey,
			"attempt", item.attempt,
			"reason", opts.Reason,
		)
	}
	q.mu.Lock()
	switch {
	case opts != nil && opts.Requeue:
		item.visibleAt = q.now().Add(opts.Delay)
		q.items = append(q.items, item)
	case opts != nil && opts.DeadLetter:
		q.deadLetters = append(q.deadLetters, item.msg)
		delete(q.keys, strings.TrimSpace(item.msg.IdempotencyKey))
	default:
		delete(q.keys, strings.TrimSpace(item.msg.IdempotencyKey))
	}
	q.mu.Unlock()
	if opts != nil && opts.Requeue {
		q.wake()
	}
}

func (q *MemoryQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) log(msg string, args ...any) {
	if q.Logger == nil {
		return
	}
	q.Logger.Info(msg, args...)
}

func (q *MemoryQueue) now() time.Time {
	if q.Now == nil {
		return time.Now().UTC()
	}
	return q.Now()
}

type memoryDelivery struct {
	queue *MemoryQueue
	item  *memoryItem
	once  sync.Once
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.item.msg
}

func (d *memoryDelivery) Attempt() int {
	return d.item.attempt
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.once.Do(func() { d.queue.settle(d.item, nil) })
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.once.Do(func() { d.queue.settle(d.item, &opts) })
	return nil
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
