package actors

import (
	"encoding/json"
	"net/http"

	"github.com/kilianp07/wsd/core/status"
)

// NewStatusHandler returns an HTTP handler exposing actor snapshots via
// GET /api/actors/status. The kind and building query parameters filter the
// list.
func NewStatusHandler(store status.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := status.Filter{
			Kind:     r.URL.Query().Get("kind"),
			Building: r.URL.Query().Get("building"),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(store.List(f)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
