// Package actor runs the single-owner processing loop shared by the fact
// model and the sample model.
//
// An [Actor] owns an unbounded inbox and one goroutine that drains it in FIFO
// order. All state touched by the handler is owned by that goroutine, so the
// handler never needs locks. Sends never block.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/jpalmerr/gnos/internal/mailbox"
)

// LevelTrace is the slog level below Debug used for full state dumps.
const LevelTrace = slog.Level(-8)

// ErrStopped is returned by exchanges with an actor whose loop has ended.
var ErrStopped = errors.New("actor stopped")

// Handler processes one message. Returning true ends the loop.
//
// A handler panic is fatal: the loop recovers it only to log it with its
// stack, record it as [Actor.Err] and stop. There is no restart.
type Handler[T any] func(msg T) (stop bool)

// Actor is a single goroutine draining a mailbox of T.
type Actor[T any] struct {
	name    string
	inbox   *mailbox.Mailbox[T]
	handle  Handler[T]
	logger  *slog.Logger
	started sync.Once
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// New creates an actor. The loop does not run until [Actor.Start].
func New[T any](name string, handle Handler[T], logger *slog.Logger) *Actor[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Actor[T]{
		name:   name,
		inbox:  mailbox.New[T](),
		handle: handle,
		logger: logger.With("actor", name),
		done:   make(chan struct{}),
	}
}

// Start launches the processing goroutine. Subsequent calls are no-ops.
func (a *Actor[T]) Start() {
	a.started.Do(func() {
		go a.run()
	})
}

// Send enqueues msg. Returns false once the actor has stopped.
func (a *Actor[T]) Send(msg T) bool {
	return a.inbox.Send(msg)
}

// Done is closed when the loop has ended.
func (a *Actor[T]) Done() <-chan struct{} {
	return a.done
}

// Err returns the fault that stopped the loop, or nil after a clean exit or
// while the loop is still running.
func (a *Actor[T]) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Await blocks until reply is closed or receives, the actor stops or ctx
// ends. A reply that is ready together with the stop still counts.
func (a *Actor[T]) Await(ctx context.Context, reply <-chan struct{}) error {
	_, err := Receive(ctx, a, reply)
	return err
}

// Receive waits for the answer to a message already sent to a. It returns
// [ErrStopped] once the loop has ended without answering, unless the answer
// arrived together with the stop.
func Receive[T, R any](ctx context.Context, a *Actor[T], reply <-chan R) (R, error) {
	select {
	case r := <-reply:
		return r, nil
	case <-a.done:
		select {
		case r := <-reply:
			return r, nil
		default:
			var zero R
			return zero, ErrStopped
		}
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

func (a *Actor[T]) run() {
	defer close(a.done)
	defer a.inbox.Close()

	a.logger.Debug("actor started")
	for {
		msg, err := a.inbox.Recv(context.Background())
		if err != nil {
			return
		}

		stop, err := a.step(msg)
		if err != nil {
			a.mu.Lock()
			a.err = err
			a.mu.Unlock()
			return
		}
		if stop {
			a.logger.Debug("actor stopped", "pending", a.inbox.Len())
			return
		}
	}
}

func (a *Actor[T]) step(msg T) (stop bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			a.logger.Error("actor panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%s panic (correlation_id: %s): %v", a.name, correlationID, r)
		}
	}()
	return a.handle(msg), nil
}
