package samples

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/gnos/internal/mailbox"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
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

func sorted(details []Detail) []Detail {
	slices.SortFunc(details, func(a, b Detail) int { return strings.Compare(a.SampleName, b.SampleName) })
	return details
}

func TestManager_CapacityFourScenario(t *testing.T) {
	m := newTestManager(t)
	for i := 1; i <= 5; i++ {
		m.AddSample("10.0.0.1", "eth0-in", float64(i), 4)
	}

	snap, err := m.GetSamples(context.Background(), "10.0.0.1", "eth0-in")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4, 5}, snap.Values)
	assert.Equal(t, uint64(5), snap.Adds)
}

func TestManager_CapacityFixedAtCreation(t *testing.T) {
	m := newTestManager(t)
	m.AddSample("dev", "cpu", 1, 2)
	m.AddSample("dev", "cpu", 2, 10)
	m.AddSample("dev", "cpu", 3, 10)

	snap, err := m.GetSamples(context.Background(), "dev", "cpu")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, snap.Values, "later capacities must be ignored")
}

func TestManager_UnknownSetIsEmpty(t *testing.T) {
	m := newTestManager(t)
	m.AddSample("dev", "cpu", 1, 2)

	snap, err := m.GetSamples(context.Background(), "dev", "memory")
	require.NoError(t, err)
	assert.Empty(t, snap.Values)
	assert.NotNil(t, snap.Values)
	assert.Equal(t, uint64(1), snap.Adds)

	snap, err = m.GetSamples(context.Background(), "other", "cpu")
	require.NoError(t, err)
	assert.Empty(t, snap.Values)
}

func TestManager_OwnersAreIndependent(t *testing.T) {
	m := newTestManager(t)
	m.AddSample("a", "eth0", 1, 4)
	m.AddSample("b", "eth0", 9, 4)

	snap, err := m.GetSamples(context.Background(), "a", "eth0")
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, snap.Values)
}

func TestManager_RegisterSendsDetails(t *testing.T) {
	m := newTestManager(t)
	m.AddSample("dev", "eth1", 1, 4)
	m.AddSample("dev", "eth1", 3, 4)
	m.AddSample("dev", "eth0", 10, 4)
	m.AddSample("dev", "empty", 10, 0)
	m.AddSample("other", "eth0", 99, 4)

	sink := mailbox.New[[]Detail]()
	m.Register("viewer", "dev", sink)
	syncManager(t, m)

	details, ok := sink.TryRecv()
	require.True(t, ok)
	assert.Equal(t, []Detail{
		{SampleName: "eth0", Min: 10, Mean: 10, Max: 10},
		{SampleName: "eth1", Min: 1, Mean: 2, Max: 3},
	}, sorted(details))
}

func TestManager_RegisterUnknownOwnerSendsEmpty(t *testing.T) {
	m := newTestManager(t)
	sink := mailbox.New[[]Detail]()
	m.Register("viewer", "dev", sink)
	syncManager(t, m)

	details, ok := sink.TryRecv()
	require.True(t, ok, "registration always pushes once")
	assert.Empty(t, details)
}

func TestManager_AddPushesOwnerSubscribers(t *testing.T) {
	m := newTestManager(t)
	devSink := mailbox.New[[]Detail]()
	otherSink := mailbox.New[[]Detail]()
	m.Register("dev-viewer", "dev", devSink)
	m.Register("other-viewer", "other", otherSink)
	syncManager(t, m)
	devSink.TryRecv()
	otherSink.TryRecv()

	m.AddSample("dev", "eth0", 4, 4)
	m.AddSample("dev", "eth0", 8, 4)
	syncManager(t, m)

	assert.Equal(t, 2, devSink.Len())
	assert.Zero(t, otherSink.Len())

	devSink.TryRecv()
	details, _ := devSink.TryRecv()
	assert.Equal(t, []Detail{{SampleName: "eth0", Min: 4, Mean: 6, Max: 8}}, details)
}

func TestManager_Deregister(t *testing.T) {
	m := newTestManager(t)
	sink := mailbox.New[[]Detail]()
	m.Register("viewer", "dev", sink)
	m.Deregister("viewer")
	m.Deregister("viewer")
	m.AddSample("dev", "eth0", 1, 4)
	syncManager(t, m)

	assert.Equal(t, 1, sink.Len(), "only the registration push is expected")
	assert.NoError(t, m.Err())
}

func TestManager_DuplicateKeyStopsManager(t *testing.T) {
	m := newTestManager(t)
	m.Register("viewer", "dev", mailbox.New[[]Detail]())
	m.Register("viewer", "dev", mailbox.New[[]Detail]())

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("manager should stop on a duplicate key")
	}
	assert.Error(t, m.Err())
	_, err := m.GetSamples(context.Background(), "dev", "eth0")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestSummarize(t *testing.T) {
	m := NewManager(nil)
	m.add(addMsg{owner: "dev", name: "x", value: -2, capacity: 3})
	m.add(addMsg{owner: "dev", name: "x", value: 5, capacity: 3})
	m.add(addMsg{owner: "dev", name: "x", value: 0.5, capacity: 3})
	m.add(addMsg{owner: "dev", name: "x", value: 7, capacity: 3})

	d, ok := summarize("x", m.sets["dev"]["x"])
	require.True(t, ok)
	assert.Equal(t, Detail{SampleName: "x", Min: 0.5, Mean: 12.5 / 3, Max: 7}, d)
}
