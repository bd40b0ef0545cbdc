// Package progress delivers agent progress events to clients. Each
// session owns a bounded Queue that producers publish into without ever
// blocking; clients either poll-drain it over HTTP or receive pushes
// over a websocket. The package also ships the reconnecting websocket
// client used by Go consumers.
package progress

import (
	"sync"

	"github.com/altamira-dev/webpilot/pkg/types"
)

// DefaultCapacity is the default number of events a queue buffers before
// dropping its oldest entries.
const DefaultCapacity = 256

// Queue is a bounded FIFO of progress events. Publish never blocks the
// producer: when the buffer is full the oldest event is dropped and
// counted. Events stay buffered until a Drain, so a polling client that
// reconnects sees everything it missed, while live subscribers receive
// each event as it is published.
type Queue struct {
	mu       sync.Mutex
	events   []*types.ProgressEvent
	capacity int
	dropped  uint64
	subs     map[int]chan *types.ProgressEvent
	nextSub  int
	closed   bool
}

// NewQueue creates a queue buffering up to capacity events.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		capacity: capacity,
		subs:     make(map[int]chan *types.ProgressEvent),
	}
}

// Publish appends an event, dropping the oldest buffered event when the
// queue is full. Subscribers that cannot keep up lose the event rather
// than stalling the producer.
func (q *Queue) Publish(event *types.ProgressEvent) {
	if event == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	if len(q.events) >= q.capacity {
		drop := len(q.events) - q.capacity + 1
		q.events = append(q.events[:0], q.events[drop:]...)
		q.dropped += uint64(drop)
	}
	q.events = append(q.events, event)

	for _, sub := range q.subs {
		select {
		case sub <- event:
		default:
			q.dropped++
		}
	}
}

// Drain returns every buffered event in publish order and clears the
// buffer.
func (q *Queue) Drain() []*types.ProgressEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}
	drained := q.events
	q.events = nil
	return drained
}

// Subscribe registers a live listener. The returned cancel func must be
// called when the listener goes away; the channel is closed then, or
// when the queue itself closes.
func (q *Queue) Subscribe() (<-chan *types.ProgressEvent, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan *types.ProgressEvent, q.capacity)
	if q.closed {
		close(ch)
		return ch, func() {}
	}

	id := q.nextSub
	q.nextSub++
	q.subs[id] = ch

	cancel := func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if sub, ok := q.subs[id]; ok {
			delete(q.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped returns how many events were lost to overflow.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close discards buffered events and closes every subscriber channel.
// Publishing to a closed queue is a no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.events = nil
	for id, sub := range q.subs {
		delete(q.subs, id)
		close(sub)
	}
}
