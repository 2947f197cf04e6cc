package telemetry

import "sync"

// Queue is an unbounded FIFO of messages between the acquisition side and the
// presentation side. Push never blocks; Drain never waits.
//
// Producers inside the acquisition side share one Queue so the consumer sees
// messages in the order the lines were framed.
type Queue struct {
	mu     sync.Mutex
	data   []Message
	pushed uint64
	ready  chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends m. Nil messages are ignored.
func (q *Queue) Push(m Message) {
	if q == nil || m == nil {
		return
	}
	q.mu.Lock()
	q.data = append(q.data, m)
	q.pushed++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns everything currently queued, oldest first.
// It returns nil when the queue is empty.
func (q *Queue) Drain() []Message {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	out := q.data
	q.data = nil
	return out
}

// Ready is signalled after a Push. It is a hint for consumers that want to
// wake early; a consumer still has to Drain to see how much arrived.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Pushed is the total number of messages ever pushed.
func (q *Queue) Pushed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}
