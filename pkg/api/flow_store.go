package api

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/saazpayhq/saazpay/pkg/async"
	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/planchange"
)

// Flow store defaults
const (
	DefaultMaxFlows = 10000
	DefaultFlowTTL  = 30 * time.Minute
	// FinishedFlowGrace keeps completed flows readable for a while so
	// clients that missed the stream can still fetch the result
	FinishedFlowGrace = time.Minute
)

// Session is a flow together with what its pages need besides the snapshot
type Session struct {
	Flow      *planchange.Flow
	URLs      billing.ManagementURLs
	CreatedAt time.Time

	mu         sync.Mutex
	finishedAt time.Time
}

func (s *Session) markFinished(at time.Time) {
	s.mu.Lock()
	s.finishedAt = at
	s.mu.Unlock()
}

func (s *Session) finishedBefore(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.finishedAt.IsZero() && s.finishedAt.Before(t)
}

// FlowStore keeps live flows in an LRU with an idle TTL. Evicted flows are
// closed.
type FlowStore struct {
	cache   *lru.LRU[string, *Session]
	metrics *observability.Metrics
	otel    *observability.OTelMetrics
	closer  *async.Runner
	now     func() time.Time
}

// NewFlowStore creates a store holding at most size flows, each evicted after
// ttl without access
func NewFlowStore(size int, ttl time.Duration, metrics *observability.Metrics, otel *observability.OTelMetrics) *FlowStore {
	if size <= 0 {
		size = DefaultMaxFlows
	}
	if ttl <= 0 {
		ttl = DefaultFlowTTL
	}
	s := &FlowStore{metrics: metrics, otel: otel, closer: async.NewRunner(nil), now: time.Now}
	s.cache = lru.NewLRU[string, *Session](size, s.onEvict, ttl)
	return s
}

func (s *FlowStore) onEvict(_ string, session *Session) {
	s.addActive(-1)
	// evictions run under the LRU lock
	s.closer.Go(context.Background(), 0, "close evicted flow", func(context.Context) error {
		session.Flow.Close()
		return nil
	})
}

func (s *FlowStore) addActive(delta int64) {
	if s.metrics != nil {
		s.metrics.FlowsActive.Add(float64(delta))
	}
	if s.otel != nil {
		s.otel.AddActiveFlows(context.Background(), delta)
	}
}

// Add stores a new flow
func (s *FlowStore) Add(flow *planchange.Flow, urls billing.ManagementURLs) *Session {
	session := &Session{Flow: flow, URLs: urls, CreatedAt: s.now()}
	flow.OnComplete(func(planchange.Completion) {
		session.markFinished(s.now())
	})
	if !s.cache.Contains(flow.ID()) {
		s.addActive(1)
	}
	s.cache.Add(flow.ID(), session)
	return session
}

// Get returns the flow with id and refreshes its idle timer
func (s *FlowStore) Get(id string) (*Session, bool) {
	session, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	s.cache.Add(id, session)
	return session, true
}

// Remove closes and forgets the flow with id
func (s *FlowStore) Remove(id string) bool {
	return s.cache.Remove(id)
}

// Len returns the number of stored flows
func (s *FlowStore) Len() int {
	return s.cache.Len()
}

// Sweep removes flows that completed more than FinishedFlowGrace ago and
// returns how many were removed
func (s *FlowStore) Sweep() int {
	cutoff := s.now().Add(-FinishedFlowGrace)
	removed := 0
	for _, id := range s.cache.Keys() {
		session, ok := s.cache.Peek(id)
		if !ok || !session.finishedBefore(cutoff) {
			continue
		}
		if s.cache.Remove(id) {
			removed++
		}
	}
	return removed
}

// Purge removes every stored flow and waits until they are closed. It is
// meant for shutdown: flows evicted later are no longer closed.
func (s *FlowStore) Purge(ctx context.Context) error {
	s.cache.Purge()
	if !s.closer.CloseContext(ctx) {
		return ctx.Err()
	}
	return nil
}
