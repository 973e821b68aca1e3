// Package audit keeps the plan change journal.
//
// Every flow event (selection, preview, confirmation, commit, settle) and
// every verified provider webhook becomes an Entry. Entries are stored in
// PostgreSQL, SQLite or memory (Store), optionally mirrored to rotating
// NDJSON files (FileJournal via MultiJournal), and can be searched, exported
// as JSON, NDJSON or CSV, and summarised over HTTP.
//
// Recorder connects a journal to flows: it implements planchange.Observer and
// writes entries from a background queue so that flows never wait on the
// database.
//
//	store, err := audit.Open(audit.Config{Driver: "postgres", DSN: dsn})
//	recorder := audit.NewRecorder(store, 0, metrics, logger)
//	defer recorder.Close()
//	flow := planchange.NewFlow(client, sub, cfg, planchange.WithObserver(recorder))
package audit
