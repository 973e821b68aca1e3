package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryJournal keeps the journal in process memory
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []*Entry
	nextID  int64
}

// NewMemoryJournal creates an empty journal
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{nextID: 1}
}

// Record stores a copy of e
func (j *MemoryJournal) Record(ctx context.Context, e *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	e.ID = j.nextID
	j.nextID++
	stored := *e
	j.entries = append(j.entries, &stored)
	return nil
}

// Search returns matching entries, newest first
func (j *MemoryJournal) Search(ctx context.Context, filter SearchFilter) ([]*Entry, error) {
	j.mu.RLock()
	matched := make([]*Entry, 0)
	for _, e := range j.entries {
		if filter.Matches(e) {
			c := *e
			matched = append(matched, &c)
		}
	}
	j.mu.RUnlock()

	sort.SliceStable(matched, func(a, b int) bool {
		if matched[a].Timestamp.Equal(matched[b].Timestamp) {
			return matched[a].ID > matched[b].ID
		}
		return matched[a].Timestamp.After(matched[b].Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*Entry{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Get returns the entry with id
func (j *MemoryJournal) Get(ctx context.Context, id int64) (*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, e := range j.entries {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, ErrEntryNotFound
}

// GetStats summarises the journal
func (j *MemoryJournal) GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	stats := newStats(startTime, endTime)
	filter := SearchFilter{StartTime: startTime, EndTime: endTime}
	flows := make(map[string]struct{})
	subs := make(map[string]struct{})

	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, e := range j.entries {
		if !filter.Matches(e) {
			continue
		}
		stats.TotalEntries++
		stats.EntriesByType[e.EventType]++
		if e.FlowID != "" {
			flows[e.FlowID] = struct{}{}
		}
		if e.SubscriptionID != "" {
			subs[e.SubscriptionID] = struct{}{}
		}
	}
	stats.UniqueFlows = int64(len(flows))
	stats.UniqueSubscriptions = int64(len(subs))
	stats.FailedCommits = stats.EntriesByType["commit.failed"]
	return stats, nil
}

// Cleanup removes entries older than the retention period
func (j *MemoryJournal) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -policy.RetentionDays)

	j.mu.Lock()
	defer j.mu.Unlock()

	kept := j.entries[:0]
	var removed int64
	for _, e := range j.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	j.entries = kept
	return removed, nil
}

// Close is a no-op
func (j *MemoryJournal) Close() error {
	return nil
}
