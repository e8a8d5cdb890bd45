package model

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/gnos/internal/facts"
	"github.com/jpalmerr/gnos/internal/mailbox"
	"github.com/jpalmerr/gnos/internal/query"
)

const ttlQuery = `SELECT ?ttl WHERE {?s ex:ttl ?ttl}`

func setTTL(s *facts.Store, payload string) bool {
	return s.Replace("http://blah", "ex:ttl", facts.String(payload))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(query.NewCache(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.Start()
	t.Cleanup(func() { m.Exit() })
	return m
}

func syncManager(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Sync(ctx))
}

func next(t *testing.T, mb *mailbox.Mailbox[Notification]) Notification {
	t.Helper()
	n, ok := mb.TryRecv()
	require.True(t, ok, "expected a queued notification")
	return n
}

func ttlRows(values ...string) query.ResultSet {
	rs := query.ResultSet{}
	for _, v := range values {
		rs = append(rs, query.Row{"ttl": facts.String(v)})
	}
	return rs
}

func TestManager_TTLScenario(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	rs, err := m.Get(ctx, "primary", ttlQuery)
	require.NoError(t, err)
	assert.Equal(t, ttlRows(), rs)

	sink := mailbox.New[Notification]()
	require.True(t, m.Register("primary", "viewer", []string{ttlQuery}, sink))
	syncManager(t, m)
	assert.Equal(t, []query.ResultSet{ttlRows()}, next(t, sink).Solutions)

	m.Update("primary", setTTL, "50")
	rs, err = m.Get(ctx, "primary", ttlQuery)
	require.NoError(t, err)
	assert.Equal(t, ttlRows("50"), rs)
	assert.Equal(t, []query.ResultSet{ttlRows("50")}, next(t, sink).Solutions)

	m.Update("primary", setTTL, "75")
	rs, err = m.Get(ctx, "primary", ttlQuery)
	require.NoError(t, err)
	assert.Equal(t, ttlRows("75"), rs)
	assert.Equal(t, []query.ResultSet{ttlRows("75")}, next(t, sink).Solutions)

	m.Update("primary", setTTL, "75")
	syncManager(t, m)
	assert.Zero(t, sink.Len(), "no-op update must not push")
}

func TestManager_UnchangedResultIsNotPushed(t *testing.T) {
	m := newTestManager(t)
	sink := mailbox.New[Notification]()

	m.Update("primary", setTTL, "50")
	m.Register("primary", "viewer", []string{ttlQuery}, sink)
	syncManager(t, m)
	next(t, sink)

	m.Update("primary", func(s *facts.Store, _ string) bool {
		s.Add("devices:a", facts.Entry{Predicate: "gnos:name", Object: facts.String("alpha")})
		return true
	}, "")
	// restore identical state through a real mutation
	m.Update("primary", setTTL, "60")
	m.Update("primary", setTTL, "50")
	syncManager(t, m)

	assert.Equal(t, []query.ResultSet{ttlRows("60")}, next(t, sink).Solutions)
	assert.Equal(t, []query.ResultSet{ttlRows("50")}, next(t, sink).Solutions)
	assert.Zero(t, sink.Len())
}

func TestManager_RegisterTwoQueriesOnEmptyStore(t *testing.T) {
	m := newTestManager(t)
	sink := mailbox.New[Notification]()

	m.Register("primary", "viewer", []string{
		ttlQuery,
		`SELECT ?name WHERE { ?d gnos:name ?name }`,
	}, sink)
	syncManager(t, m)

	n := next(t, sink)
	assert.NoError(t, n.Err)
	assert.Equal(t, []query.ResultSet{{}, {}}, n.Solutions)
	assert.Zero(t, sink.Len(), "registration pushes exactly once")
}

func TestManager_Deregister(t *testing.T) {
	m := newTestManager(t)
	sink := mailbox.New[Notification]()

	m.Register("primary", "viewer", []string{ttlQuery}, sink)
	m.Deregister("primary", "viewer")
	m.Deregister("primary", "viewer")
	m.Deregister("primary", "unknown")
	m.Deregister("nowhere", "viewer")
	m.Update("primary", setTTL, "50")
	syncManager(t, m)

	next(t, sink)
	assert.Zero(t, sink.Len(), "deregistered key must not be pushed")

	// the key is free again
	m.Register("primary", "viewer", []string{ttlQuery}, sink)
	syncManager(t, m)
	assert.Equal(t, []query.ResultSet{ttlRows("50")}, next(t, sink).Solutions)
	assert.NoError(t, m.Err())
}

func TestManager_StoresAreIndependent(t *testing.T) {
	m := newTestManager(t)
	sink := mailbox.New[Notification]()

	m.Register("alerts", "viewer", []string{ttlQuery}, sink)
	m.Update("primary", setTTL, "50")
	syncManager(t, m)

	next(t, sink)
	assert.Zero(t, sink.Len())

	rs, err := m.Get(context.Background(), "alerts", ttlQuery)
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestManager_FailingQuery(t *testing.T) {
	m := newTestManager(t)
	sink := mailbox.New[Notification]()
	const bad = `SELECT ?x WHERE {`

	rs, err := m.Get(context.Background(), "primary", bad)
	require.NoError(t, err, "query errors are never surfaced to the caller")
	assert.Equal(t, query.ResultSet{}, rs)

	m.Register("primary", "viewer", []string{bad, ttlQuery}, sink)
	syncManager(t, m)

	first := next(t, sink)
	assert.NoError(t, first.Err)
	assert.Equal(t, []query.ResultSet{{}, {}}, first.Solutions)
	failed := next(t, sink)
	require.Error(t, failed.Err)
	assert.True(t, strings.HasPrefix(failed.Err.Error(), "expected"))

	m.Update("primary", setTTL, "50")
	syncManager(t, m)

	changed := next(t, sink)
	assert.NoError(t, changed.Err)
	assert.Equal(t, []query.ResultSet{{}, ttlRows("50")}, changed.Solutions)
	assert.Error(t, next(t, sink).Err, "the error is repeated after every mutation")
	assert.Zero(t, sink.Len())
}

func TestManager_UpdatePanicStopsManager(t *testing.T) {
	m := newTestManager(t)

	m.Update("primary", func(*facts.Store, string) bool {
		panic("corrupt payload")
	}, "")

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("manager should stop after a panicking update")
	}

	require.Error(t, m.Err())
	assert.Contains(t, m.Err().Error(), "corrupt payload")
	assert.False(t, m.Update("primary", setTTL, "50"))
	assert.ErrorIs(t, m.Sync(context.Background()), ErrStopped)

	_, err := m.Get(context.Background(), "primary", ttlQuery)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestManager_DuplicateRegistrationStopsManager(t *testing.T) {
	m := newTestManager(t)
	sink := mailbox.New[Notification]()

	m.Register("primary", "viewer", []string{ttlQuery}, sink)
	m.Register("primary", "viewer", []string{ttlQuery}, sink)

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("manager should stop on a duplicate key")
	}
	require.Error(t, m.Err())
	assert.Contains(t, m.Err().Error(), "already registered")
}

func TestManager_Exit(t *testing.T) {
	m := NewManager(query.NewCache(), nil)
	m.Start()

	m.Update("primary", setTTL, "50")
	require.True(t, m.Exit())

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not exit")
	}
	assert.NoError(t, m.Err())
	assert.False(t, m.Query("primary", ttlQuery, make(chan query.ResultSet, 1)))
}

func TestManager_GetHonoursContext(t *testing.T) {
	// never started, so the query stays queued
	m := NewManager(query.NewCache(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Get(ctx, "primary", ttlQuery)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
