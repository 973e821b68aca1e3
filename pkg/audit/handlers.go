package audit

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/saazpayhq/saazpay/pkg/httputil"
)

const defaultSearchLimit = 100

// Handlers provides HTTP handlers for the journal API
type Handlers struct {
	store Store
}

// NewHandlers creates new journal handlers
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers journal routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/journal/entries", h.listEntries).Methods("GET")
	router.HandleFunc("/journal/entries/{id}", h.getEntry).Methods("GET")
	router.HandleFunc("/journal/export", h.exportEntries).Methods("GET")
	router.HandleFunc("/journal/stats", h.getStats).Methods("GET")
}

// listEntries handles GET /journal/entries
func (h *Handlers) listEntries(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	entries, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// getEntry handles GET /journal/entries/{id}
func (h *Handlers) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.store.Get(r.Context(), id)
	if errors.Is(err, ErrEntryNotFound) {
		httputil.WriteNotFoundError(w, "entry not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, entry)
}

// exportEntries handles GET /journal/export
func (h *Handlers) exportEntries(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	format := ExportFormat(httputil.ParseQueryString(r, "format", string(ExportFormatJSON)))

	data, err := Export(r.Context(), h.store, filter, format)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	switch format {
	case ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=plan-change-journal.csv")
	case ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", "attachment; filename=plan-change-journal.ndjson")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=plan-change-journal.json")
	}

	w.Write(data)
}

// getStats handles GET /journal/stats
func (h *Handlers) getStats(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	stats, err := h.store.GetStats(r.Context(), filter.StartTime, filter.EndTime)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, stats)
}

// parseFilter parses a search filter from query parameters. Malformed values
// are ignored.
func parseFilter(r *http.Request) SearchFilter {
	query := r.URL.Query()
	filter := SearchFilter{
		FlowID:         query.Get("flow_id"),
		SubscriptionID: query.Get("subscription_id"),
		Source:         Source(query.Get("source")),
		Limit:          defaultSearchLimit,
	}

	if t, err := time.Parse(time.RFC3339, query.Get("start_time")); err == nil {
		filter.StartTime = &t
	}
	if t, err := time.Parse(time.RFC3339, query.Get("end_time")); err == nil {
		filter.EndTime = &t
	}

	for _, t := range strings.Split(query.Get("event_types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter.EventTypes = append(filter.EventTypes, t)
		}
	}

	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil {
		filter.Offset = offset
	}

	return filter
}
