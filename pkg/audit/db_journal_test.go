package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

var journalColumns = []string{
	"id", "timestamp", "source", "event_type",
	"flow_id", "subscription_id", "customer_id",
	"phase", "plan_id", "generation", "duration_ms",
	"error_message", "metadata",
}

func TestNewSQLJournal(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS plan_change_journal").WillReturnResult(sqlmock.NewResult(0, 0))

		j, err := NewSQLJournal(db, DriverPostgres)
		require.NoError(t, err)
		assert.NotNil(t, j)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil database", func(t *testing.T) {
		j, err := NewSQLJournal(nil, DriverPostgres)
		assert.Error(t, err)
		assert.Nil(t, j)
		assert.Contains(t, err.Error(), "database connection is required")
	})

	t.Run("unknown driver", func(t *testing.T) {
		db, _ := setupMockDB(t)
		defer db.Close()

		_, err := NewSQLJournal(db, "mysql")
		assert.Error(t, err)
	})

	t.Run("table creation error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS plan_change_journal").WillReturnError(errors.New("permission denied"))

		j, err := NewSQLJournal(db, DriverPostgres)
		assert.Error(t, err)
		assert.Nil(t, j)
		assert.Contains(t, err.Error(), "failed to ensure plan_change_journal table")
	})
}

func TestSQLJournal_Record_Postgres(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	j := &SQLJournal{db: db, driver: DriverPostgres}
	e := &Entry{
		Timestamp:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Source:         SourceFlow,
		EventType:      "commit.succeeded",
		FlowID:         "flow_1",
		SubscriptionID: "sub_1",
		Phase:          "committing",
		PlanID:         "pri_pro",
		DurationMs:     120,
	}

	mock.ExpectQuery(`INSERT INTO plan_change_journal .* RETURNING id`).
		WithArgs(e.Timestamp, "flow", "commit.succeeded", "flow_1", "sub_1", "", "committing", "pri_pro", int64(0), int64(120), "", sql.NullString{}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	require.NoError(t, j.Record(context.Background(), e))
	assert.Equal(t, int64(42), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLJournal_Record_Error(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	j := &SQLJournal{db: db, driver: DriverPostgres}
	mock.ExpectQuery("INSERT INTO plan_change_journal").WillReturnError(errors.New("connection refused"))

	err := j.Record(context.Background(), &Entry{Timestamp: time.Now(), Source: SourceFlow, EventType: "plan.selected"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert journal entry")
}

func TestSQLJournal_Search_Postgres(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	j := &SQLJournal{db: db, driver: DriverPostgres}
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows(journalColumns).
		AddRow(int64(2), ts, "flow", "commit.failed", "flow_1", "sub_1", "", "committing", "pri_pro", int64(0), int64(30000), "commit timed out", nil).
		AddRow(int64(1), ts, "webhook", "customer.subscription.updated", "", "sub_1", "cus_1", "", "", int64(0), int64(0), "", []byte(`{"event_id":"evt_1"}`))

	mock.ExpectQuery(`SELECT .* FROM plan_change_journal WHERE 1=1 AND subscription_id = \$1 AND event_type = ANY\(\$2\) ORDER BY timestamp DESC, id DESC LIMIT \$3`).
		WillReturnRows(rows)

	entries, err := j.Search(context.Background(), SearchFilter{
		SubscriptionID: "sub_1",
		EventTypes:     []string{"commit.failed", "customer.subscription.updated"},
		Limit:          10,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, SourceFlow, entries[0].Source)
	assert.Equal(t, "commit timed out", entries[0].ErrorMessage)
	assert.Equal(t, "evt_1", entries[1].Metadata["event_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLJournal_Get_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	j := &SQLJournal{db: db, driver: DriverPostgres}
	mock.ExpectQuery(`SELECT .* FROM plan_change_journal WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(journalColumns))

	_, err := j.Get(context.Background(), 7)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestSQLJournal_Cleanup(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	j := &SQLJournal{db: db, driver: DriverPostgres}
	mock.ExpectExec(`DELETE FROM plan_change_journal WHERE timestamp < \$1`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := j.Cleanup(context.Background(), DefaultRetentionPolicy())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func openSQLite(t *testing.T) *SQLJournal {
	t.Helper()
	store, err := Open(Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store.(*SQLJournal)
}

func TestSQLJournal_SQLite(t *testing.T) {
	j := openSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []*Entry{
		{Timestamp: base, Source: SourceFlow, EventType: "plan.selected", FlowID: "flow_1", SubscriptionID: "sub_1", PlanID: "pri_pro", Generation: 1},
		{Timestamp: base.Add(time.Second), Source: SourceFlow, EventType: "commit.failed", FlowID: "flow_1", SubscriptionID: "sub_1", ErrorMessage: "declined"},
		{Timestamp: base.Add(2 * time.Second), Source: SourceWebhook, EventType: "customer.subscription.updated", SubscriptionID: "sub_2", Metadata: map[string]interface{}{"event_id": "evt_9"}},
	}
	for _, e := range records {
		require.NoError(t, j.Record(ctx, e))
		assert.NotZero(t, e.ID)
	}

	all, err := j.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "customer.subscription.updated", all[0].EventType)
	assert.Equal(t, "evt_9", all[0].Metadata["event_id"])
	assert.Equal(t, uint64(1), all[2].Generation)
	assert.True(t, all[2].Timestamp.Equal(base))

	flow, err := j.Search(ctx, SearchFilter{FlowID: "flow_1", EventTypes: []string{"commit.failed"}})
	require.NoError(t, err)
	require.Len(t, flow, 1)
	assert.Equal(t, "declined", flow[0].ErrorMessage)

	since := base.Add(time.Second)
	recent, err := j.Search(ctx, SearchFilter{StartTime: &since, Offset: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "commit.failed", recent[0].EventType)

	got, err := j.Get(ctx, records[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "flow_1", got.FlowID)

	stats, err := j.GetStats(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.UniqueFlows)
	assert.Equal(t, int64(2), stats.UniqueSubscriptions)
	assert.Equal(t, int64(1), stats.FailedCommits)

	assert.NoError(t, j.Ping(ctx))
}

func TestSQLJournal_SQLiteCleanup(t *testing.T) {
	j := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, &Entry{Timestamp: time.Now().AddDate(0, 0, -200), Source: SourceFlow, EventType: "flow.opened"}))
	require.NoError(t, j.Record(ctx, &Entry{Timestamp: time.Now(), Source: SourceFlow, EventType: "flow.opened"}))

	n, err := j.Cleanup(ctx, DefaultRetentionPolicy())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpen(t *testing.T) {
	store, err := Open(Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryJournal{}, store)

	_, err = Open(Config{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)

	_, err = Open(Config{Driver: DriverPostgres})
	assert.Error(t, err)
}
