package gonoisesynth

import "sync/atomic"

// NoteQueue is a fixed-capacity single-producer, single-consumer ring of note
// events. The producer (a UI or input goroutine) calls Push; the audio thread
// calls Drain. Neither side locks or allocates.
type NoteQueue struct {
	buf  []NoteEvent
	mask uint64

	head atomic.Uint64 // next slot to read
	tail atomic.Uint64 // next slot to write
}

// NewNoteQueue creates a queue holding at least capacity events
func NewNoteQueue(capacity int) *NoteQueue {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &NoteQueue{
		buf:  make([]NoteEvent, size),
		mask: uint64(size - 1),
	}
}

// Push enqueues ev. It returns false when the queue is full.
func (q *NoteQueue) Push(ev NoteEvent) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() >= uint64(len(q.buf)) {
		return false
	}
	q.buf[tail&q.mask] = ev
	q.tail.Store(tail + 1)
	return true
}

// Drain appends queued events to dst and returns it. When dst has a non-zero
// capacity, draining stops once it is full so the audio thread never
// allocates; a nil dst takes everything.
func (q *NoteQueue) Drain(dst []NoteEvent) []NoteEvent {
	head := q.head.Load()
	tail := q.tail.Load()
	for ; head != tail; head++ {
		if cap(dst) > 0 && len(dst) == cap(dst) {
			// Leave the rest for the next block
			break
		}
		dst = append(dst, q.buf[head&q.mask])
	}
	q.head.Store(head)
	return dst
}

// Len returns the number of queued events
func (q *NoteQueue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Cap returns the queue capacity
func (q *NoteQueue) Cap() int {
	return len(q.buf)
}
