package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jpalmerr/gnos/internal/actor"
	"github.com/jpalmerr/gnos/internal/facts"
	"github.com/jpalmerr/gnos/internal/query"
)

// ErrStopped is returned by exchanges with a manager whose loop has ended.
var ErrStopped = actor.ErrStopped

// UpdateFunc mutates store using payload and reports whether it changed
// anything. It runs on the manager goroutine with exclusive access to store.
//
// Malformed payloads should be logged and reported as unchanged. A panic
// stops the manager for good.
type UpdateFunc func(store *facts.Store, payload string) bool

type message interface{ isMessage() }

type queryMsg struct {
	store string
	text  string
	reply chan<- query.ResultSet
}

type updateMsg struct {
	store   string
	fn      UpdateFunc
	payload string
}

type registerMsg struct {
	store   string
	key     string
	queries []string
	sink    Sink
}

type deregisterMsg struct {
	store string
	key   string
}

type syncMsg struct{ done chan struct{} }

type exitMsg struct{}

func (queryMsg) isMessage()      {}
func (updateMsg) isMessage()     {}
func (registerMsg) isMessage()   {}
func (deregisterMsg) isMessage() {}
func (syncMsg) isMessage()       {}
func (exitMsg) isMessage()       {}

// Manager owns every fact store of the process.
//
// All operations are messages to a single goroutine, so stores are never
// touched concurrently and every caller observes mutations in the order the
// manager applied them. Operations return false once the manager has stopped.
type Manager struct {
	cache  *query.Cache
	logger *slog.Logger
	actor  *actor.Actor[message]

	// owned by the manager goroutine
	stores map[string]*facts.Store
	subs   registry
}

// NewManager creates a manager evaluating queries through cache. Call
// [Manager.Start] to begin processing.
func NewManager(cache *query.Cache, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cache:  cache,
		logger: logger,
		stores: make(map[string]*facts.Store),
		subs:   make(registry),
	}
	m.actor = actor.New("model", m.handle, logger)
	return m
}

// Start launches the manager goroutine.
func (m *Manager) Start() { m.actor.Start() }

// Done is closed when the manager goroutine has ended.
func (m *Manager) Done() <-chan struct{} { return m.actor.Done() }

// Err returns the fault that stopped the manager, if any.
func (m *Manager) Err() error { return m.actor.Err() }

// Query evaluates text against store and sends exactly one result set on
// reply, which must have room for it. Compile and evaluation errors are
// logged and produce an empty result set.
func (m *Manager) Query(store, text string, reply chan<- query.ResultSet) bool {
	return m.actor.Send(queryMsg{store: store, text: text, reply: reply})
}

// Get is the synchronous form of [Manager.Query].
func (m *Manager) Get(ctx context.Context, store, text string) (query.ResultSet, error) {
	reply := make(chan query.ResultSet, 1)
	if !m.Query(store, text, reply) {
		return nil, ErrStopped
	}
	return actor.Receive(ctx, m.actor, reply)
}

// Update applies fn to store with payload. When fn reports a change every
// subscription on store is re-evaluated.
func (m *Manager) Update(store string, fn UpdateFunc, payload string) bool {
	return m.actor.Send(updateMsg{store: store, fn: fn, payload: payload})
}

// Register subscribes sink to queries on store under key.
//
// The queries are evaluated at once and sink receives the result sets
// unconditionally; afterwards it only receives them when they change. Key
// must not be registered on store already: doing so panics the manager.
func (m *Manager) Register(store, key string, queries []string, sink Sink) bool {
	return m.actor.Send(registerMsg{store: store, key: key, queries: queries, sink: sink})
}

// Deregister removes the subscription for key. Unknown keys are ignored.
func (m *Manager) Deregister(store, key string) bool {
	return m.actor.Send(deregisterMsg{store: store, key: key})
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
	case queryMsg:
		m.handleQuery(msg)
	case updateMsg:
		m.handleUpdate(msg)
	case registerMsg:
		m.handleRegister(msg)
	case deregisterMsg:
		if m.subs.remove(msg.store, msg.key) {
			m.logger.Debug("deregistered", "store", msg.store, "key", msg.key)
		}
	case syncMsg:
		close(msg.done)
	case exitMsg:
		return true
	}
	return false
}

// store returns the named store, creating it on first reference.
func (m *Manager) store(name string) *facts.Store {
	s, ok := m.stores[name]
	if !ok {
		s = facts.NewStore(name)
		m.stores[name] = s
	}
	return s
}

func (m *Manager) handleQuery(msg queryMsg) {
	rs, err := m.cache.Eval(m.store(msg.store), msg.text)
	if err != nil {
		m.logger.Warn("query failed", "store", msg.store, "query", msg.text, "error", err)
		rs = query.ResultSet{}
	}
	select {
	case msg.reply <- rs:
	default:
		m.logger.Warn("query reply dropped", "store", msg.store)
	}
}

func (m *Manager) handleUpdate(msg updateMsg) {
	s := m.store(msg.store)
	if !msg.fn(s, msg.payload) {
		return
	}

	m.traceStore(s)
	detectChanges(m.cache, s, m.subs[msg.store], m.logger)
}

func (m *Manager) handleRegister(msg registerMsg) {
	if m.subs.find(msg.store, msg.key) != nil {
		panic(fmt.Sprintf("model: key %q is already registered on store %q", msg.key, msg.store))
	}

	solutions, err := evaluate(m.cache, m.store(msg.store), msg.queries)
	msg.sink.Send(Notification{Solutions: solutions})
	if err != nil {
		m.logger.Warn("subscription query failed", "store", msg.store, "key", msg.key, "error", err)
		msg.sink.Send(Notification{Solutions: solutions, Err: err})
	}

	m.subs.add(msg.store, &subscription{
		key:     msg.key,
		queries: msg.queries,
		sink:    msg.sink,
		last:    solutions,
	})
	m.logger.Debug("registered", "store", msg.store, "key", msg.key, "queries", len(msg.queries))
}

func (m *Manager) traceStore(s *facts.Store) {
	if !m.logger.Enabled(context.Background(), actor.LevelTrace) {
		return
	}
	var b strings.Builder
	s.Each(func(f facts.Fact) bool {
		b.WriteString(f.String())
		b.WriteByte('\n')
		return true
	})
	m.logger.Log(context.Background(), actor.LevelTrace, "store content",
		"store", s.Name(), "facts", s.Len(), "content", b.String())
}
