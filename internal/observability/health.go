package observability

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthChecker backs the /healthz and /readyz probes. Liveness is
// unconditional; readiness flips on after migrations, state reload and
// broker connect finish, and can flip off again during shutdown.
type HealthChecker struct {
	ready   atomic.Bool
	started time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{started: time.Now()}
}

func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// LivenessHandler answers 200 whenever the process can serve HTTP.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, "alive")
}

// ReadinessHandler answers 200 once the ledger accepts traffic, 503
// before startup completes or after shutdown begins.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		h.respond(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	h.respond(w, http.StatusOK, "ready")
}

func (h *HealthChecker) respond(w http.ResponseWriter, status int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"status": state,
		"uptime": time.Since(h.started).Truncate(time.Second).String(),
	})
}
