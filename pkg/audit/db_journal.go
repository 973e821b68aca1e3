package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/saazpayhq/saazpay/pkg/observability"
)

// Supported SQL drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS plan_change_journal (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		source VARCHAR(20) NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		flow_id VARCHAR(64) NOT NULL DEFAULT '',
		subscription_id VARCHAR(255) NOT NULL DEFAULT '',
		customer_id VARCHAR(255) NOT NULL DEFAULT '',
		phase VARCHAR(32) NOT NULL DEFAULT '',
		plan_id VARCHAR(255) NOT NULL DEFAULT '',
		generation BIGINT NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_plan_change_journal_timestamp ON plan_change_journal(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_plan_change_journal_flow_id ON plan_change_journal(flow_id);
	CREATE INDEX IF NOT EXISTS idx_plan_change_journal_subscription_id ON plan_change_journal(subscription_id);
	CREATE INDEX IF NOT EXISTS idx_plan_change_journal_event_type ON plan_change_journal(event_type);
	`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS plan_change_journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		source TEXT NOT NULL,
		event_type TEXT NOT NULL,
		flow_id TEXT NOT NULL DEFAULT '',
		subscription_id TEXT NOT NULL DEFAULT '',
		customer_id TEXT NOT NULL DEFAULT '',
		phase TEXT NOT NULL DEFAULT '',
		plan_id TEXT NOT NULL DEFAULT '',
		generation INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_plan_change_journal_timestamp ON plan_change_journal(timestamp);
	CREATE INDEX IF NOT EXISTS idx_plan_change_journal_flow_id ON plan_change_journal(flow_id);
	CREATE INDEX IF NOT EXISTS idx_plan_change_journal_subscription_id ON plan_change_journal(subscription_id);
	`

const selectColumns = `
		id, timestamp, source, event_type,
		flow_id, subscription_id, customer_id,
		phase, plan_id, generation, duration_ms,
		error_message, metadata`

// SQLJournal stores the journal in PostgreSQL or SQLite
type SQLJournal struct {
	db     *sql.DB
	driver string
	owned  bool
}

// NewSQLJournal wraps db and creates the journal table if needed
func NewSQLJournal(db *sql.DB, driver string) (*SQLJournal, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}

	j := &SQLJournal{db: db, driver: driver}
	if err := j.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure plan_change_journal table: %w", err)
	}
	return j, nil
}

func (j *SQLJournal) ensureTable() error {
	schema := postgresSchema
	if j.driver == DriverSQLite {
		schema = sqliteSchema
	}
	_, err := j.db.Exec(schema)
	return err
}

// placeholder returns the n-th bind parameter of the driver
func (j *SQLJournal) placeholder(n int) string {
	if j.driver == DriverSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// Record inserts e and sets its ID
func (j *SQLJournal) Record(ctx context.Context, e *Entry) error {
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	args := []interface{}{
		e.Timestamp.UTC(), string(e.Source), e.EventType,
		e.FlowID, e.SubscriptionID, e.CustomerID,
		e.Phase, e.PlanID, int64(e.Generation), e.DurationMs,
		e.ErrorMessage, metadata,
	}
	params := make([]string, len(args))
	for i := range args {
		params[i] = j.placeholder(i + 1)
	}

	query := `
		INSERT INTO plan_change_journal (
			timestamp, source, event_type,
			flow_id, subscription_id, customer_id,
			phase, plan_id, generation, duration_ms,
			error_message, metadata
		) VALUES (` + strings.Join(params, ", ") + `)`

	if j.driver == DriverSQLite {
		res, err := j.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert journal entry: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read journal entry id: %w", err)
		}
		e.ID = id
		return nil
	}

	if err := j.db.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&e.ID); err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// where builds the WHERE clause of filter starting at bind parameter 1
func (j *SQLJournal) where(filter SearchFilter) (string, []interface{}) {
	clause := " WHERE 1=1"
	var args []interface{}
	next := func(v interface{}) string {
		args = append(args, v)
		return j.placeholder(len(args))
	}

	if filter.StartTime != nil {
		clause += " AND timestamp >= " + next(filter.StartTime.UTC())
	}
	if filter.EndTime != nil {
		clause += " AND timestamp <= " + next(filter.EndTime.UTC())
	}
	if filter.FlowID != "" {
		clause += " AND flow_id = " + next(filter.FlowID)
	}
	if filter.SubscriptionID != "" {
		clause += " AND subscription_id = " + next(filter.SubscriptionID)
	}
	if filter.Source != "" {
		clause += " AND source = " + next(string(filter.Source))
	}
	if len(filter.EventTypes) > 0 {
		if j.driver == DriverPostgres {
			clause += " AND event_type = ANY(" + next(pq.Array(filter.EventTypes)) + ")"
		} else {
			params := make([]string, len(filter.EventTypes))
			for i, t := range filter.EventTypes {
				params[i] = next(t)
			}
			clause += " AND event_type IN (" + strings.Join(params, ", ") + ")"
		}
	}
	return clause, args
}

// Search returns matching entries, newest first
func (j *SQLJournal) Search(ctx context.Context, filter SearchFilter) ([]*Entry, error) {
	clause, args := j.where(filter)
	query := "SELECT" + selectColumns + " FROM plan_change_journal" + clause + " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT " + j.placeholder(len(args))
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 && j.driver == DriverSQLite {
			query += " LIMIT -1"
		}
		args = append(args, filter.Offset)
		query += " OFFSET " + j.placeholder(len(args))
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search journal: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e          Entry
		source     string
		generation int64
		metadata   []byte
	)
	err := row.Scan(
		&e.ID, &e.Timestamp, &source, &e.EventType,
		&e.FlowID, &e.SubscriptionID, &e.CustomerID,
		&e.Phase, &e.PlanID, &generation, &e.DurationMs,
		&e.ErrorMessage, &metadata,
	)
	if err != nil {
		return nil, err
	}
	e.Source = Source(source)
	e.Generation = uint64(generation)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &e, nil
}

// Get returns the entry with id
func (j *SQLJournal) Get(ctx context.Context, id int64) (*Entry, error) {
	query := "SELECT" + selectColumns + " FROM plan_change_journal WHERE id = " + j.placeholder(1)
	e, err := scanEntry(j.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}
	return e, nil
}

// GetStats summarises the journal
func (j *SQLJournal) GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	stats := newStats(startTime, endTime)
	clause, args := j.where(SearchFilter{StartTime: startTime, EndTime: endTime})

	err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plan_change_journal"+clause, args...).Scan(&stats.TotalEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to get total entries: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, "SELECT event_type, COUNT(*) FROM plan_change_journal"+clause+" GROUP BY event_type", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		stats.EntriesByType[eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.FailedCommits = stats.EntriesByType["commit.failed"]

	err = j.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT flow_id) FROM plan_change_journal"+clause+" AND flow_id <> ''", args...).Scan(&stats.UniqueFlows)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique flows: %w", err)
	}

	err = j.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT subscription_id) FROM plan_change_journal"+clause+" AND subscription_id <> ''", args...).Scan(&stats.UniqueSubscriptions)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique subscriptions: %w", err)
	}

	return stats, nil
}

// Cleanup removes entries older than the retention period
func (j *SQLJournal) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -policy.RetentionDays)

	result, err := j.db.ExecContext(ctx, "DELETE FROM plan_change_journal WHERE timestamp < "+j.placeholder(1), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up journal: %w", err)
	}
	return result.RowsAffected()
}

// DB returns the underlying connection pool
func (j *SQLJournal) DB() *sql.DB {
	return j.db
}

// Ping checks the database connection
func (j *SQLJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// ReportPoolStats publishes connection pool gauges
func (j *SQLJournal) ReportPoolStats(m *observability.Metrics) {
	if m == nil {
		return
	}
	s := j.db.Stats()
	m.DBConnectionsActive.Set(float64(s.InUse))
	m.DBConnectionsIdle.Set(float64(s.Idle))
}

// Close closes the journal. A database handle supplied by the caller is
// left open.
func (j *SQLJournal) Close() error {
	if j.owned {
		return j.db.Close()
	}
	return nil
}
