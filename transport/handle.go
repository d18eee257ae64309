// Package transport implements the cross-transport dispatcher: per-
// message bidding across the T1 (ntcp) and T2 (ntcp2) transports,
// selection of the cheapest bid, and the per-peer send/receive queues
// that decouple producers from a session's I/O loop.
package transport

import (
	"sync"

	"github.com/cvsouth/i2p-go/data"
)

// MessageItem is one queued (peer hash, message) pair.
type MessageItem struct {
	Hash data.Hash
	Msg  data.Message
}

// TimestampItem is one queued (peer hash, timestamp) pair, used for
// RTT/clock-skew observability samples rather than application traffic.
type TimestampItem struct {
	Hash    data.Hash
	Seconds uint32
}

// unboundedQueue is a goroutine-free, mutex-guarded growable queue. Go
// has no built-in unbounded channel; this is the common idiom for one:
// a slice-backed buffer behind a condition variable, with Recv blocking
// only when empty.
type unboundedQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

func newUnboundedQueue[T any]() *unboundedQueue[T] {
	q := &unboundedQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *unboundedQueue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.cond.Signal()
}

// Recv blocks until an item is available or the queue is closed, in
// which case it returns the zero value and false.
func (q *unboundedQueue[T]) Recv() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

// TryRecv returns immediately with ok=false if the queue is empty.
func (q *unboundedQueue[T]) TryRecv() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

func (q *unboundedQueue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Handle is the per-session outbound queue pair handed to message
// producers: an unbounded message channel and an independent unbounded
// timestamp channel. It is cloneable in spirit (callers may share a
// *Handle across producer goroutines freely); exactly one consumer
// drains each queue.
type Handle struct {
	message   *unboundedQueue[MessageItem]
	timestamp *unboundedQueue[TimestampItem]
}

// NewHandle builds an empty Handle.
func NewHandle() *Handle {
	return &Handle{
		message:   newUnboundedQueue[MessageItem](),
		timestamp: newUnboundedQueue[TimestampItem](),
	}
}

// Send enqueues (hash, msg) to the message channel only.
func (h *Handle) Send(hash data.Hash, msg data.Message) {
	h.message.Push(MessageItem{Hash: hash, Msg: msg})
}

// Timestamp enqueues (hash, seconds) to the timestamp channel only.
func (h *Handle) Timestamp(hash data.Hash, seconds uint32) {
	h.timestamp.Push(TimestampItem{Hash: hash, Seconds: seconds})
}

// RecvMessage blocks for the next queued message.
func (h *Handle) RecvMessage() (MessageItem, bool) { return h.message.Recv() }

// RecvTimestamp blocks for the next queued timestamp.
func (h *Handle) RecvTimestamp() (TimestampItem, bool) { return h.timestamp.Recv() }

// TryRecvMessage returns immediately, ok=false if empty.
func (h *Handle) TryRecvMessage() (MessageItem, bool) { return h.message.TryRecv() }

// TryRecvTimestamp returns immediately, ok=false if empty.
func (h *Handle) TryRecvTimestamp() (TimestampItem, bool) { return h.timestamp.TryRecv() }

// Close shuts down both queues, waking any blocked receivers.
func (h *Handle) Close() {
	h.message.Close()
	h.timestamp.Close()
}

// Bid is one transport's offer to deliver a message: a cost (lower
// preferred) plus the Handle its sink would enqueue onto if selected.
type Bid struct {
	Cost   int
	Handle *Handle
}
