package audit

import (
	"context"
	"fmt"
)

// MultiJournal records every entry in several journals. The first journal
// assigns the entry ID.
type MultiJournal struct {
	journals []Journal
}

// NewMultiJournal fans out to journals in order
func NewMultiJournal(journals ...Journal) *MultiJournal {
	return &MultiJournal{journals: journals}
}

// Record writes e to every journal, continuing past failures. The first
// error is returned.
func (m *MultiJournal) Record(ctx context.Context, e *Entry) error {
	var firstErr error
	for _, j := range m.journals {
		if err := j.Record(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes all journals
func (m *MultiJournal) Close() error {
	var firstErr error
	for _, j := range m.journals {
		if err := j.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close journal: %w", err)
		}
	}
	return firstErr
}
