package indexer

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"percolat/internal/observability"
)

// QueryServer answers read-only JSON queries over archived snapshots. It
// never touches the live slab; every response reflects whatever was last
// archived, which may lag the on-chain state by up to one crank interval.
type QueryServer struct {
	store   *SnapshotStore
	metrics *observability.Metrics
}

func NewQueryServer(store *SnapshotStore, metrics *observability.Metrics) *QueryServer {
	return &QueryServer{store: store, metrics: metrics}
}

// Handler returns the mux serving /snapshots/latest and /snapshots/{slot}.
func (q *QueryServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshots/latest", q.handleLatest)
	mux.HandleFunc("/snapshots/", q.handleBySlot)
	return mux
}

func (q *QueryServer) handleLatest(w http.ResponseWriter, r *http.Request) {
	q.metrics.QueryRequests.WithLabelValues("latest", "ok")
	snap, err := q.store.LoadLatest(r.Context())
	if err != nil {
		q.writeError(w, "latest", http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		q.writeError(w, "latest", http.StatusNotFound, "no snapshots archived yet")
		return
	}
	q.writeJSON(w, snap)
}

func (q *QueryServer) handleBySlot(w http.ResponseWriter, r *http.Request) {
	slotStr := strings.TrimPrefix(r.URL.Path, "/snapshots/")
	slot, err := strconv.ParseUint(slotStr, 10, 64)
	if err != nil {
		q.writeError(w, "by_slot", http.StatusBadRequest, "invalid slot")
		return
	}
	row := q.store.db.QueryRowContext(r.Context(), `SELECT data FROM percolat.snapshots WHERE slot = $1`, slot)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			q.writeError(w, "by_slot", http.StatusNotFound, "no snapshot at that slot")
			return
		}
		q.writeError(w, "by_slot", http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (q *QueryServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (q *QueryServer) writeError(w http.ResponseWriter, endpoint string, code int, msg string) {
	q.metrics.QueryErrors.WithLabelValues(endpoint, strconv.Itoa(code))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
