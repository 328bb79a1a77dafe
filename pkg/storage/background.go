package storage

import (
	"errors"
	"log"
	"sync"
	"time"
)

// writeOp is one queued persistence operation. target names the snapshot it
// touches; key identifies the operation kind on that target for coalescing.
type writeOp struct {
	collection string
	target     string
	key        string
	run        func() error
}

// writeQueue is a FIFO of persistence operations drained by a single worker,
// so at most one write is in flight per engine.
type writeQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []*writeOp
	running bool
	closed  bool
	errs    []error

	onError func(op *writeOp, err error)

	backgroundWg sync.WaitGroup
}

func newWriteQueue(onError func(op *writeOp, err error)) *writeQueue {
	q := &writeQueue{onError: onError}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// start launches the single consumer
func (q *writeQueue) start() {
	q.backgroundWg.Add(1)
	go func() {
		defer q.backgroundWg.Done()
		for {
			op, ok := q.next()
			if !ok {
				return
			}
			err := op.run()
			q.finish(op, err)
		}
	}()
}

func (q *writeQueue) next() (*writeOp, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.pending) == 0 {
		return nil, false
	}
	op := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.running = true
	return op, true
}

func (q *writeQueue) finish(op *writeOp, err error) {
	q.mu.Lock()
	q.running = false
	if err != nil {
		q.errs = append(q.errs, err)
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	if err != nil && q.onError != nil {
		q.onError(op, err)
	}
}

// enqueue appends an operation. When the latest pending operation on the same
// target is the same kind of write, the new request is dropped: that pending
// write has not started yet and will read the current state when it runs.
func (q *writeQueue) enqueue(op *writeOp) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	for i := len(q.pending) - 1; i >= 0; i-- {
		if q.pending[i].target != op.target {
			continue
		}
		if q.pending[i].key == op.key {
			return true
		}
		break
	}
	q.pending = append(q.pending, op)
	q.cond.Broadcast()
	return true
}

// flush blocks until every queued operation has run and returns (and clears)
// the errors collected since the previous flush
func (q *writeQueue) flush() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) > 0 || q.running {
		q.cond.Wait()
	}
	err := errors.Join(q.errs...)
	q.errs = nil
	return err
}

// close drains the queue, stops the worker and returns outstanding errors
func (q *writeQueue) close() error {
	start := time.Now()
	q.mu.Lock()
	q.closed = true
	pending := len(q.pending)
	q.cond.Broadcast()
	q.mu.Unlock()

	q.backgroundWg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	if pending > 0 {
		log.Printf("INFO: Write queue drained %d pending operations in %v", pending, time.Since(start))
	}
	err := errors.Join(q.errs...)
	q.errs = nil
	return err
}

// depth returns the number of operations waiting to run
func (q *writeQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
