package samples

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jpalmerr/gnos/internal/actor"
	"github.com/jpalmerr/gnos/internal/ringbuf"
)

// ErrStopped is returned by exchanges with a manager whose loop has ended.
var ErrStopped = actor.ErrStopped

// Sink receives the details of one owner. Send must not block.
type Sink interface {
	Send([]Detail) bool
}

type message interface{ isMessage() }

type addMsg struct {
	owner    string
	name     string
	value    float64
	capacity int
}

type getMsg struct {
	owner string
	name  string
	reply chan<- Snapshot
}

type registerMsg struct {
	key   string
	owner string
	sink  Sink
}

type deregisterMsg struct{ key string }

type syncMsg struct{ done chan struct{} }

type exitMsg struct{}

func (addMsg) isMessage()        {}
func (getMsg) isMessage()        {}
func (registerMsg) isMessage()   {}
func (deregisterMsg) isMessage() {}
func (syncMsg) isMessage()       {}
func (exitMsg) isMessage()       {}

type subscription struct {
	owner string
	sink  Sink
}

// Manager owns every sample set of the process, keyed by owner and name.
type Manager struct {
	logger *slog.Logger
	actor  *actor.Actor[message]

	// owned by the manager goroutine
	sets map[string]map[string]*ringbuf.Buffer
	adds uint64
	subs map[string]subscription
}

// NewManager creates a sample manager. Call [Manager.Start] to begin
// processing.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger: logger,
		sets:   make(map[string]map[string]*ringbuf.Buffer),
		subs:   make(map[string]subscription),
	}
	m.actor = actor.New("samples", m.handle, logger)
	return m
}

// Start launches the manager goroutine.
func (m *Manager) Start() { m.actor.Start() }

// Done is closed when the manager goroutine has ended.
func (m *Manager) Done() <-chan struct{} { return m.actor.Done() }

// Err returns the fault that stopped the manager, if any.
func (m *Manager) Err() error { return m.actor.Err() }

// AddSample appends value to the owner's set called name.
//
// The set is created on first use with room for capacity samples; the
// capacity of later calls for the same set is ignored. Every subscription
// for owner is pushed fresh details.
func (m *Manager) AddSample(owner, name string, value float64, capacity int) bool {
	return m.actor.Send(addMsg{owner: owner, name: name, value: value, capacity: capacity})
}

// GetSamples returns a copy of one sample set. Unknown sets yield an empty
// snapshot.
func (m *Manager) GetSamples(ctx context.Context, owner, name string) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !m.actor.Send(getMsg{owner: owner, name: name, reply: reply}) {
		return Snapshot{}, ErrStopped
	}
	return actor.Receive(ctx, m.actor, reply)
}

// Register subscribes sink to owner under key. The current details are sent
// at once. Registering an active key panics the manager.
func (m *Manager) Register(key, owner string, sink Sink) bool {
	return m.actor.Send(registerMsg{key: key, owner: owner, sink: sink})
}

// Deregister removes the subscription for key. Unknown keys are ignored.
func (m *Manager) Deregister(key string) bool {
	return m.actor.Send(deregisterMsg{key: key})
}

// Sync blocks until every message sent before it has been processed.
func (m *Manager) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !m.actor.Send(syncMsg{done: done}) {
		return ErrStopped
	}
	return m.actor.Await(ctx, done)
}

// Exit stops the manager once the messages sent before it are processed.
func (m *Manager) Exit() bool {
	return m.actor.Send(exitMsg{})
}

func (m *Manager) handle(msg message) bool {
	switch msg := msg.(type) {
	case addMsg:
		m.add(msg)
	case getMsg:
		msg.reply <- m.snapshot(msg.owner, msg.name)
	case registerMsg:
		if _, ok := m.subs[msg.key]; ok {
			panic(fmt.Sprintf("samples: key %q is already registered", msg.key))
		}
		m.subs[msg.key] = subscription{owner: msg.owner, sink: msg.sink}
		msg.sink.Send(m.details(msg.owner))
		m.logger.Debug("registered", "key", msg.key, "owner", msg.owner)
	case deregisterMsg:
		delete(m.subs, msg.key)
	case syncMsg:
		close(msg.done)
	case exitMsg:
		return true
	}
	return false
}

func (m *Manager) add(msg addMsg) {
	sets, ok := m.sets[msg.owner]
	if !ok {
		sets = make(map[string]*ringbuf.Buffer)
		m.sets[msg.owner] = sets
	}
	buf, ok := sets[msg.name]
	if !ok {
		buf = ringbuf.New(msg.capacity)
		sets[msg.name] = buf
	}
	buf.Push(msg.value)
	m.adds++

	if m.logger.Enabled(context.Background(), actor.LevelTrace) {
		m.logger.Log(context.Background(), actor.LevelTrace, "sample added",
			"owner", msg.owner, "name", msg.name, "buffer", buf.String())
	}

	for key, sub := range m.subs {
		if sub.owner != msg.owner {
			continue
		}
		// each sink owns the slice it is sent
		if !sub.sink.Send(m.details(msg.owner)) {
			m.logger.Debug("subscription sink closed", "key", key)
		}
	}
}

func (m *Manager) snapshot(owner, name string) Snapshot {
	s := Snapshot{Values: []float64{}, Adds: m.adds}
	if buf, ok := m.sets[owner][name]; ok {
		s.Values = buf.Values()
	}
	return s
}

// details summarizes every non-empty set of owner in no particular order.
func (m *Manager) details(owner string) []Detail {
	out := []Detail{}
	for name, buf := range m.sets[owner] {
		if d, ok := summarize(name, buf); ok {
			out = append(out, d)
		}
	}
	return out
}
