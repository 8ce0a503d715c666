package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilbhutani/labocr/internal/audit"
)

type RunStore interface {
	List(ctx context.Context, q audit.Query) ([]audit.Run, error)
	Summary(ctx context.Context, since *time.Time) ([]audit.StatusCount, error)
}

type RunHandler struct {
	store RunStore
}

// NewRunHandler accepts a nil store; the endpoints then answer 503.
func NewRunHandler(store RunStore) *RunHandler {
	return &RunHandler{store: store}
}

func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeFailure(w, http.StatusServiceUnavailable, "run history requires a database")
		return
	}

	query := r.URL.Query()
	q := audit.Query{
		Status: query.Get("status"),
		Source: query.Get("source"),
	}
	q.Limit, _ = strconv.Atoi(query.Get("limit"))
	q.Offset, _ = strconv.Atoi(query.Get("offset"))

	var ok bool
	if q.StartDate, ok = parseTime(w, query.Get("start_date")); !ok {
		return
	}
	if q.EndDate, ok = parseTime(w, query.Get("end_date")); !ok {
		return
	}

	runs, err := h.store.List(r.Context(), q)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (h *RunHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeFailure(w, http.StatusServiceUnavailable, "run history requires a database")
		return
	}

	since, ok := parseTime(w, r.URL.Query().Get("since"))
	if !ok {
		return
	}

	summary, err := h.store.Summary(r.Context(), since)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func parseTime(w http.ResponseWriter, s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "timestamps must be RFC 3339")
		return nil, false
	}
	return &t, true
}
