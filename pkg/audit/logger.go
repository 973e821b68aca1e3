package audit

import (
	"context"
	"errors"
	"time"
)

// ErrEntryNotFound is returned by Get for unknown ids
var ErrEntryNotFound = errors.New("journal entry not found")

// Journal records plan change entries
type Journal interface {
	// Record stores e and assigns its ID
	Record(ctx context.Context, e *Entry) error

	// Close releases the journal's resources
	Close() error
}

// Store provides methods for querying and managing the journal
type Store interface {
	Journal

	// Search returns entries matching filter, newest first
	Search(ctx context.Context, filter SearchFilter) ([]*Entry, error)

	// Get retrieves a specific entry by ID
	Get(ctx context.Context, id int64) (*Entry, error)

	// GetStats summarises entries between startTime and endTime
	GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error)

	// Cleanup removes entries older than the retention period
	Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error)
}

// Export renders the entries matching filter in format
func Export(ctx context.Context, store Store, filter SearchFilter, format ExportFormat) ([]byte, error) {
	entries, err := store.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportFormatCSV:
		return exportCSV(entries)
	case ExportFormatNDJSON:
		return exportNDJSON(entries)
	default:
		return exportJSON(entries)
	}
}

func newStats(startTime, endTime *time.Time) *Stats {
	stats := &Stats{EntriesByType: make(map[string]int64)}
	if startTime != nil || endTime != nil {
		stats.TimeRange = &TimeRange{}
		if startTime != nil {
			stats.TimeRange.Start = *startTime
		}
		if endTime != nil {
			stats.TimeRange.End = *endTime
		}
	}
	return stats
}
