// Package ringbuf provides the bounded sample buffer backing every sample set.
package ringbuf

import "fmt"

// Buffer is a fixed-capacity sequence of float64 samples. Once full, each
// push overwrites the oldest sample.
//
// A capacity of zero is legal: pushes are dropped and Len stays 0.
// Buffer is not safe for concurrent use.
type Buffer struct {
	buf  []float64
	size int // number of retained samples
	next int // index the next push lands on
}

// New creates an empty buffer holding at most capacity samples.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{buf: make([]float64, capacity)}
}

// Cap returns the capacity the buffer was created with.
func (b *Buffer) Cap() int { return len(b.buf) }

// Len returns the number of retained samples.
func (b *Buffer) Len() int { return b.size }

// Push appends v, evicting the oldest sample when the buffer is full.
func (b *Buffer) Push(v float64) {
	if len(b.buf) == 0 {
		return
	}
	b.buf[b.next] = v
	b.next = (b.next + 1) % len(b.buf)
	if b.size < len(b.buf) {
		b.size++
	}
}

// At returns the i-th oldest retained sample. It panics unless 0 <= i < Len.
func (b *Buffer) At(i int) float64 {
	if i < 0 || i >= b.size {
		panic(fmt.Sprintf("ringbuf: index %d out of range [0, %d)", i, b.size))
	}
	if b.size < len(b.buf) {
		return b.buf[i]
	}
	return b.buf[(b.next+i)%len(b.buf)]
}

// Values returns a copy of the retained samples, oldest first.
func (b *Buffer) Values() []float64 {
	out := make([]float64, b.size)
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}

// Clear empties the buffer; capacity is unchanged.
func (b *Buffer) Clear() {
	b.size = 0
	b.next = 0
}

// String describes the buffer layout for debug logs.
func (b *Buffer) String() string {
	return fmt.Sprintf("size: %d, next: %d, capacity: %d, values: %v", b.size, b.next, len(b.buf), b.Values())
}
