package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingJournal struct {
	err    error
	closed bool
}

func (f *failingJournal) Record(ctx context.Context, e *Entry) error { return f.err }
func (f *failingJournal) Close() error {
	f.closed = true
	return f.err
}

func TestMultiJournal(t *testing.T) {
	primary := NewMemoryJournal()
	broken := &failingJournal{err: errors.New("disk full")}
	mirror := NewMemoryJournal()

	m := NewMultiJournal(primary, broken, mirror)
	e := &Entry{Timestamp: time.Now(), Source: SourceFlow, EventType: "plan.selected"}

	err := m.Record(context.Background(), e)
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, int64(1), e.ID)

	mirrored, err := mirror.Search(context.Background(), SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, mirrored, 1)

	assert.Error(t, m.Close())
	assert.True(t, broken.closed)
}
