package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jpalmerr/gnos/internal/mailbox"
)

// Control is a signal from the transport to a running bridge.
type Control int

const (
	// RefreshNow re-emits the last relayed payload.
	RefreshNow Control = iota + 1

	// CloseNow deregisters the bridge and ends [Bridge.Run].
	CloseNow
)

func (c Control) String() string {
	switch c {
	case RefreshNow:
		return "refresh"
	case CloseNow:
		return "close"
	default:
		return fmt.Sprintf("Control(%d)", int(c))
	}
}

// ErrNotRegistered is returned by [Bridge.Run] when the owning model refused
// the registration, which only happens once it has stopped.
var ErrNotRegistered = errors.New("stream: model refused registration")

// Emitter writes one frame to a viewer.
type Emitter interface {
	Emit(frame []byte) error
}

// EmitterFunc adapts a function to [Emitter].
type EmitterFunc func(frame []byte) error

// Emit calls f(frame).
func (f EmitterFunc) Emit(frame []byte) error { return f(frame) }

// Source is the registration side of a model, seen from one bridge.
type Source[T any] interface {
	Register(key string, sink *mailbox.Mailbox[T]) bool
	Deregister(key string) bool
}

// Encoded is a push serialized for the viewer.
type Encoded struct {
	Data []byte
	// Err marks an evaluation error payload. It is always emitted and never
	// becomes the value replayed on refresh.
	Err bool
}

// Bridge relays pushes from one subscription to one viewer.
//
// A bridge is Active from [Bridge.Run] until it receives [CloseNow], its
// context ends or an emit fails; then it deregisters and is Closed for good.
type Bridge[T any] struct {
	key     string
	source  Source[T]
	encode  func(T) (Encoded, error)
	initial []byte
	logger  *slog.Logger
}

// Key returns the process-unique subscription key of the bridge.
func (b *Bridge[T]) Key() string { return b.key }

// Run registers the bridge and relays until it closes.
//
// The first payload is always emitted. After that a payload is emitted only
// when it differs from the last one relayed.
// [RefreshNow] re-emits the last payload, or the initial one when nothing has
// been relayed yet. A nil error means the bridge was closed normally.
func (b *Bridge[T]) Run(ctx context.Context, control <-chan Control, out Emitter) error {
	push := mailbox.New[T]()
	if !b.source.Register(b.key, push) {
		return ErrNotRegistered
	}
	defer push.Close()
	defer b.source.Deregister(b.key)

	b.logger.Debug("stream started", "key", b.key)
	defer b.logger.Debug("stream closed", "key", b.key)

	last := b.initial
	relayed := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case c, ok := <-control:
			if !ok || c == CloseNow {
				return nil
			}
			if c == RefreshNow {
				if err := out.Emit(Frame(last)); err != nil {
					return fmt.Errorf("refresh %s: %w", b.key, err)
				}
			}

		case <-push.Ready():
			v, ok := push.TryRecv()
			if !ok {
				continue
			}
			enc, err := b.encode(v)
			if err != nil {
				b.logger.Warn("failed to encode push", "key", b.key, "error", err)
				continue
			}
			if !enc.Err {
				if relayed && bytes.Equal(enc.Data, last) {
					continue
				}
				last = enc.Data
				relayed = true
			}
			if err := out.Emit(Frame(enc.Data)); err != nil {
				return fmt.Errorf("emit %s: %w", b.key, err)
			}
		}
	}
}
