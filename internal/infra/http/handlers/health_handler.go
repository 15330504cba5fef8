package handlers

import (
	"context"
	"net/http"
	"time"
)

// Check reports one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

type HealthHandler struct {
	StoreKind string
	Notifier  string
	Checks    map[string]Check
	StartTime time.Time
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Uptime       string            `json:"uptime"`
	Store        string            `json:"store"`
	Notifier     string            `json:"notifier"`
	Dependencies map[string]string `json:"dependencies"`
}

func NewHealthHandler(storeKind, notifier string, checks map[string]Check) *HealthHandler {
	if notifier == "" {
		notifier = "not configured"
	}
	return &HealthHandler{
		StoreKind: storeKind,
		Notifier:  notifier,
		Checks:    checks,
		StartTime: time.Now(),
	}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	deps := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			deps[name] = "unhealthy: " + err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "healthy"
	}

	code := http.StatusOK
	if status == "degraded" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:       status,
		Version:      "1.0.0",
		Uptime:       time.Since(h.StartTime).Round(time.Second).String(),
		Store:        h.StoreKind,
		Notifier:     h.Notifier,
		Dependencies: deps,
	})
}
