package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/lead-relay/internal/entity"
	"github.com/xavierca1/lead-relay/internal/infra/http/middleware"
	"github.com/xavierca1/lead-relay/internal/usecase"
)

const maxLeadBodyBytes = 64 << 10

type LeadCapturer interface {
	Execute(ctx context.Context, input entity.LeadSubmission) (entity.IntakeResult, error)
}

type LeadHandler struct {
	capture     LeadCapturer
	storeKind   string
	rateLimiter *RateLimiter
}

// NewLeadHandler builds the /lead handler. A nil limiter disables rate limiting.
func NewLeadHandler(capture LeadCapturer, storeKind string, limiter *RateLimiter) *LeadHandler {
	return &LeadHandler{
		capture:     capture,
		storeKind:   storeKind,
		rateLimiter: limiter,
	}
}

type CaptureLeadRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Note   string `json:"note,omitempty"`
	Source string `json:"source,omitempty"`
}

type CaptureLeadResponse struct {
	entity.IntakeResult
	Stored string `json:"stored,omitempty"`
}

type leadUsageResponse struct {
	OK    bool              `json:"ok"`
	Usage string            `json:"usage"`
	Body  map[string]string `json:"body"`
}

func (h *LeadHandler) Usage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, leadUsageResponse{
		OK:    true,
		Usage: "POST /lead with a JSON body",
		Body: map[string]string{
			"email":  "required",
			"name":   "optional",
			"note":   "optional",
			"source": "optional",
		},
	})
}

func (h *LeadHandler) CaptureLead(w http.ResponseWriter, r *http.Request) {
	if h.rateLimiter != nil && !h.rateLimiter.Allow(getClientIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, CaptureLeadResponse{IntakeResult: entity.IntakeResult{
			Error:  "RateLimited",
			Detail: "Too many requests. Please try again later.",
		}})
		return
	}

	var req CaptureLeadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxLeadBodyBytes)).Decode(&req); err != nil {
		middleware.RecordLeadOutcome("rejected")
		writeJSON(w, http.StatusBadRequest, CaptureLeadResponse{IntakeResult: entity.IntakeResult{
			Error:  usecase.CodeInvalidInput,
			Detail: "invalid JSON body",
		}})
		return
	}

	result, err := h.capture.Execute(r.Context(), entity.LeadSubmission{
		Email:  req.Email,
		Name:   req.Name,
		Note:   req.Note,
		Source: req.Source,
	})

	resp := CaptureLeadResponse{IntakeResult: result}
	if err != nil {
		status := http.StatusInternalServerError
		if usecase.IsDomainError(err) {
			status = http.StatusBadRequest
			middleware.RecordLeadOutcome("rejected")
		} else {
			middleware.RecordLeadOutcome("failed")
			middleware.RecordStoreError(usecase.ErrorCode(err))
			zap.L().Error("lead intake failed", zap.String("store", h.storeKind), zap.Error(err))
		}
		writeJSON(w, status, resp)
		return
	}

	resp.Stored = h.storeKind
	if result.Duplicate {
		middleware.RecordLeadOutcome("duplicate")
	} else {
		middleware.RecordLeadOutcome("created")
	}
	middleware.RecordNotification(notificationLabel(result.Notification))

	writeJSON(w, http.StatusOK, resp)
}

func notificationLabel(n entity.NotificationOutcome) string {
	switch {
	case n.Skipped:
		return "skipped"
	case n.Pending:
		return "pending"
	case n.Delivered:
		return "delivered"
	default:
		return "failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// getClientIP keys the limiter. Forwarded headers are trusted only through
// middleware.RealIP, which has already rewritten RemoteAddr.
func getClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimiter is a fixed window counter per client key.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type visitor struct {
	count     int
	lastReset time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	v, exists := rl.visitors[key]
	if !exists {
		rl.visitors[key] = &visitor{count: 1, lastReset: now}
		return true
	}

	if now.Sub(v.lastReset) > rl.window {
		v.count = 1
		v.lastReset = now
		return true
	}

	v.count++
	return v.count <= rl.limit
}

// sweep drops idle visitors. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window*2 {
		return
	}
	rl.lastSweep = now
	for key, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, key)
		}
	}
}
