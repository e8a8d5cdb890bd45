// Package mailbox provides the unbounded FIFO used as the inbox of every
// owner actor and as the push channel of every stream bridge.
//
// Senders never block: a mailbox grows as needed, so an actor pushing to a
// bridge and a bridge deregistering from the actor cannot deadlock each other.
// Receivers wait on [Mailbox.Ready] inside a select, which lets them multiplex
// a mailbox with other channels.
package mailbox

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by [Mailbox.Recv] once the mailbox is closed and drained.
var ErrClosed = errors.New("mailbox closed")

// Mailbox is a thread-safe, unbounded FIFO queue.
//
// Any number of goroutines may send; a single goroutine is expected to
// receive. The zero value is not usable, create one with [New].
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{} // buffered, size 1
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		items: make([]T, 0, 16),
		ready: make(chan struct{}, 1),
	}
}

// Send appends v to the back of the mailbox.
//
// Send never blocks. Returns false if the mailbox is closed, in which case v
// is dropped.
func (m *Mailbox[T]) Send(v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	m.items = append(m.items, v)
	m.signal()
	return true
}

// TryRecv removes and returns the front item without blocking.
//
// If items remain afterwards the ready signal is re-armed, so a receiver that
// handles one item per select iteration still gets woken for the rest.
func (m *Mailbox[T]) TryRecv() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if len(m.items) == 0 {
		return zero, false
	}

	v := m.items[0]
	m.items[0] = zero // release references held by the backing array
	if len(m.items) == 1 {
		m.items = m.items[:0]
	} else {
		m.items = m.items[1:]
		m.signal()
	}
	return v, true
}

// Ready returns a channel that receives when items may be available.
//
// Wake-ups can be spurious; always follow with [Mailbox.TryRecv]:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-mb.Ready():
//	    v, ok := mb.TryRecv()
//	    ...
//	}
//
// The channel is closed when the mailbox is closed.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.ready
}

// Recv blocks until an item is available, ctx ends or the mailbox is closed
// and drained.
func (m *Mailbox[T]) Recv(ctx context.Context) (T, error) {
	for {
		if v, ok := m.TryRecv(); ok {
			return v, nil
		}

		m.mu.Lock()
		closed := m.closed && len(m.items) == 0
		m.mu.Unlock()
		if closed {
			var zero T
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-m.ready:
		}
	}
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops the mailbox from accepting new items. Items already queued can
// still be received. Safe to call multiple times.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.ready)
}

// signal must be called with mu held.
func (m *Mailbox[T]) signal() {
	if m.closed {
		return
	}
	select {
	case m.ready <- struct{}{}:
	default:
	}
}
