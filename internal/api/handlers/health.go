package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is a dependency whose connectivity is reported by /health
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service and dependency status
type HealthHandler struct {
	service string
	deps    map[string]Pinger
}

// NewHealthHandler creates a health handler; nil dependencies are skipped
func NewHealthHandler(service string, deps map[string]Pinger) *HealthHandler {
	live := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			live[name] = p
		}
	}
	return &HealthHandler{service: service, deps: live}
}

// Check returns 200 when every dependency answers, 503 otherwise
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.deps))
	for name, p := range h.deps {
		if err := p.Ping(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":       state,
		"service":      h.service,
		"dependencies": deps,
	})
}
