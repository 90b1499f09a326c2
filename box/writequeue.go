package box

import (
	"sync"

	"github.com/arloliu/go-mk312/internal/queue"
)

// displayKey queues a label write. It can not clash with a register name.
const displayKey = "\x00display"

type writeOp struct {
	value int
	text  string
}

// writeQueue is the FIFO of pending writes, one entry per name. A newer
// value for a queued name replaces the old one in place.
type writeQueue struct {
	mu sync.Mutex
	m  *queue.OrderedMap[string, writeOp]
}

func newWriteQueue() *writeQueue {
	return &writeQueue{m: queue.NewOrderedMap[string, writeOp]()}
}

func (q *writeQueue) put(name string, op writeOp) {
	q.mu.Lock()
	q.m.Set(name, op)
	q.mu.Unlock()
}

// front returns the oldest pending write without removing it.
func (q *writeQueue) front() (string, writeOp, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.m.Front()
}

// done removes name once op reached the device. A different value queued
// for name while op was applied stays pending.
func (q *writeQueue) done(name string, op writeOp) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cur, ok := q.m.Get(name); ok && cur == op {
		q.m.Delete(name)
	}
}

func (q *writeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.m.Len()
}

func (q *writeQueue) reset() {
	q.mu.Lock()
	q.m.Reset()
	q.mu.Unlock()
}

func (q *writeQueue) pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.m.Keys()
}
