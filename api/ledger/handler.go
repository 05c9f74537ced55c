// Package ledger exposes settlement records over HTTP.
package ledger

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kilianp07/wsd/core/ledger"
)

// NewLogHandler returns an HTTP handler exposing settlement records via GET /api/ledger.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewLogHandler(store ledger.LogStore, token string) http.Handler {
	return authorize(token, func(w http.ResponseWriter, r *http.Request) {
		records, err := store.Query(r.Context(), parseQuery(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, records)
	})
}

// NewSummaryHandler returns per-building totals for the matching records via
// GET /api/ledger/summary.
func NewSummaryHandler(store ledger.LogStore, token string) http.Handler {
	return authorize(token, func(w http.ResponseWriter, r *http.Request) {
		records, err := store.Query(r.Context(), parseQuery(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, ledger.Summarize(records))
	})
}

func authorize(token string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	})
}

func parseQuery(r *http.Request) ledger.LogQuery {
	q := ledger.LogQuery{
		Building: r.URL.Query().Get("building"),
		Consumer: r.URL.Query().Get("consumer"),
	}
	if s := r.URL.Query().Get("start"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			q.Start = t
		}
	}
	if s := r.URL.Query().Get("end"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			q.End = t
		}
	}
	return q
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
