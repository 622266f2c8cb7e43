package player

import (
	"sync"
)

// packetQueue is a FIFO of owned packets consumed by one worker.
type packetQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    [][]byte
	capacity int
	policy   QueuePolicy
	closed   bool

	pushed  uint64
	dropped uint64
}

func newPacketQueue(capacity int, policy QueuePolicy) *packetQueue {
	q := &packetQueue{capacity: capacity, policy: policy}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends b. It reports false when the packet was not queued because
// the queue is closed.
func (q *packetQueue) push(b []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.capacity > 0 && q.policy == QueueBlock {
		for len(q.items) >= q.capacity && !q.closed {
			q.cond.Wait()
		}
	}
	if q.closed {
		q.dropped++
		return false
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.items[0] = nil
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, b)
	q.pushed++
	q.cond.Broadcast()
	return true
}

// pop blocks until a packet is available or the queue is closed.
// Packets left in a closed queue are discarded.
func (q *packetQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	b := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.cond.Broadcast()
	return b, true
}

func (q *packetQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *packetQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *packetQueue) counters() (pushed, dropped uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed, q.dropped
}
