package api

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/planchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreFlow(backend *fakeBackend) *planchange.Flow {
	return planchange.NewFlow(backend.Bind("sub_1"), testSubscription(), testFlowConfig())
}

func waitClosed(t *testing.T, flow *planchange.Flow) {
	t.Helper()
	select {
	case <-flow.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("flow %s was not closed", flow.ID())
	}
}

func TestFlowStore_AddGetRemove(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store := NewFlowStore(10, time.Minute, metrics, nil)
	backend := newFakeBackend()

	flow := newStoreFlow(backend)
	urls := billing.ManagementURLs{CustomerPortal: "https://portal.example.com"}
	store.Add(flow, urls)

	session, ok := store.Get(flow.ID())
	require.True(t, ok)
	assert.Same(t, flow, session.Flow)
	assert.Equal(t, urls, session.URLs)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FlowsActive))

	// adding the same flow again does not count it twice
	store.Add(flow, urls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FlowsActive))

	assert.True(t, store.Remove(flow.ID()))
	waitClosed(t, flow)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.FlowsActive))

	_, ok = store.Get(flow.ID())
	assert.False(t, ok)
	assert.False(t, store.Remove(flow.ID()))
}

func TestFlowStore_EvictsOldest(t *testing.T) {
	store := NewFlowStore(2, time.Minute, nil, nil)
	backend := newFakeBackend()

	first := newStoreFlow(backend)
	store.Add(first, billing.ManagementURLs{})
	store.Add(newStoreFlow(backend), billing.ManagementURLs{})
	store.Add(newStoreFlow(backend), billing.ManagementURLs{})

	assert.Equal(t, 2, store.Len())
	waitClosed(t, first)
}

func TestFlowStore_Sweep(t *testing.T) {
	store := NewFlowStore(10, time.Hour, nil, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	backend := newFakeBackend()

	finished := newStoreFlow(backend)
	recent := newStoreFlow(backend)
	active := newStoreFlow(backend)
	store.Add(finished, billing.ManagementURLs{}).markFinished(now.Add(-2 * FinishedFlowGrace))
	store.Add(recent, billing.ManagementURLs{}).markFinished(now.Add(-FinishedFlowGrace / 2))
	store.Add(active, billing.ManagementURLs{})

	assert.Equal(t, 1, store.Sweep())
	waitClosed(t, finished)

	_, ok := store.Get(recent.ID())
	assert.True(t, ok)
	_, ok = store.Get(active.ID())
	assert.True(t, ok)

	now = now.Add(FinishedFlowGrace)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestFlowStore_Purge(t *testing.T) {
	store := NewFlowStore(10, time.Minute, nil, nil)
	backend := newFakeBackend()
	a, b := newStoreFlow(backend), newStoreFlow(backend)
	store.Add(a, billing.ManagementURLs{})
	store.Add(b, billing.ManagementURLs{})

	require.NoError(t, store.Purge(context.Background()))

	assert.Equal(t, 0, store.Len())
	waitClosed(t, a)
	waitClosed(t, b)
}
