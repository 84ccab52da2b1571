// Package adminapi exposes the daemon's small operator-facing HTTP surface:
// a liveness probe, per-OFC queue depth, Prometheus metrics, and a
// WebSocket event stream, routed with gorilla/mux.
package adminapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ofcd/internal/adminauth"
	"ofcd/internal/eventhub"
	"ofcd/internal/ldap"
	"ofcd/internal/metrics"
	"ofcd/internal/worker"
)

// Registry tracks the live workers so /status/{ofc} can report queue depth
// without every worker needing to know about the HTTP layer.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*worker.Worker
}

func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]*worker.Worker)}
}

func (reg *Registry) Add(ofcUUID string, w *worker.Worker) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.workers[ofcUUID] = w
}

func (reg *Registry) Get(ofcUUID string) (*worker.Worker, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	w, ok := reg.workers[ofcUUID]
	return w, ok
}

// NewRouter builds the admin HTTP surface. ldapCfg may be nil to disable
// Basic Auth (suitable for local/test deployments).
func NewRouter(reg *Registry, m *metrics.Metrics, hub *eventhub.Hub, ldapCfg *ldap.Config) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", healthzHandler).Methods("GET")
	r.HandleFunc("/status/{ofc}", statusHandler(reg)).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/events", eventsHandler(hub)).Methods("GET")

	return adminauth.BasicAuth(ldapCfg, "ofcd admin", r)
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusResponse struct {
	OFCUUID    string `json:"ofc_uuid"`
	QueueDepth int    `json:"queue_depth"`
}

func statusHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ofc := mux.Vars(r)["ofc"]
		wk, ok := reg.Get(ofc)
		if !ok {
			http.Error(w, "unknown ofc", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(statusResponse{
			OFCUUID:    ofc,
			QueueDepth: wk.QueueDepth(),
		})
	}
}
