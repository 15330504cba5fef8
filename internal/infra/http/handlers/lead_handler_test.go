package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/lead-relay/internal/entity"
	"github.com/xavierca1/lead-relay/internal/usecase"
)

type MockCapture struct {
	mock.Mock
}

func (m *MockCapture) Execute(ctx context.Context, input entity.LeadSubmission) (entity.IntakeResult, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(entity.IntakeResult), args.Error(1)
}

func postLead(t *testing.T, h *LeadHandler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/lead", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()

	h.CaptureLead(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestCaptureLeadCreated(t *testing.T) {
	capture := new(MockCapture)
	capture.On("Execute", mock.Anything, entity.LeadSubmission{Email: "a@x.com", Name: "Ann", Source: "ads"}).
		Return(entity.IntakeResult{OK: true, RecordID: "r1", Notification: entity.NotificationOutcome{Delivered: true}}, nil)

	rec, body := postLead(t, NewLeadHandler(capture, "notion", nil), `{"email":"a@x.com","name":"Ann","source":"ads"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, false, body["duplicate"])
	assert.Equal(t, "r1", body["id"])
	assert.Equal(t, "notion", body["stored"])
	assert.Equal(t, map[string]any{"delivered": true}, body["notification"])
	capture.AssertExpectations(t)
}

func TestCaptureLeadDuplicate(t *testing.T) {
	capture := new(MockCapture)
	capture.On("Execute", mock.Anything, mock.Anything).
		Return(entity.IntakeResult{OK: true, Duplicate: true, RecordID: "r1", Notification: entity.NotificationOutcome{Skipped: true}}, nil)

	rec, body := postLead(t, NewLeadHandler(capture, "postgres", nil), `{"email":"a@x.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["duplicate"])
	assert.Equal(t, "postgres", body["stored"])
}

func TestCaptureLeadInvalidInputIs400(t *testing.T) {
	capture := new(MockCapture)
	capture.On("Execute", mock.Anything, mock.Anything).
		Return(entity.IntakeResult{Error: usecase.CodeInvalidInput, Detail: "email: invalid format"},
			&usecase.DomainError{Code: usecase.CodeInvalidInput, Message: "email: invalid format"})

	rec, body := postLead(t, NewLeadHandler(capture, "notion", nil), `{"email":"nope"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "InvalidInput", body["error"])
	assert.Equal(t, "email: invalid format", body["detail"])
	assert.NotContains(t, body, "stored")
}

func TestCaptureLeadStoreErrorIs500(t *testing.T) {
	capture := new(MockCapture)
	techErr := &usecase.TechnicalError{Code: usecase.CodeStoreError, Message: "create failed", Err: errors.New("boom")}
	capture.On("Execute", mock.Anything, mock.Anything).
		Return(entity.IntakeResult{Error: techErr.Error()}, techErr)

	rec, body := postLead(t, NewLeadHandler(capture, "notion", nil), `{"email":"a@x.com"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "StoreError: create failed", body["error"])
}

func TestCaptureLeadBadJSON(t *testing.T) {
	capture := new(MockCapture)

	rec, body := postLead(t, NewLeadHandler(capture, "notion", nil), `{"email":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidInput", body["error"])
	capture.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestCaptureLeadRateLimited(t *testing.T) {
	capture := new(MockCapture)
	capture.On("Execute", mock.Anything, mock.Anything).Return(entity.IntakeResult{OK: true, RecordID: "r1"}, nil)
	h := NewLeadHandler(capture, "notion", NewRateLimiter(1, time.Minute))

	first, _ := postLead(t, h, `{"email":"a@x.com"}`)
	second, body := postLead(t, h, `{"email":"a@x.com"}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RateLimited", body["error"])
	capture.AssertNumberOfCalls(t, "Execute", 1)
}

func TestCaptureLeadRateLimitIgnoresRotatedForwardedFor(t *testing.T) {
	capture := new(MockCapture)
	capture.On("Execute", mock.Anything, mock.Anything).Return(entity.IntakeResult{OK: true, RecordID: "r1"}, nil)
	h := NewLeadHandler(capture, "notion", NewRateLimiter(1, time.Minute))

	codes := make([]int, 0, 3)
	for _, xff := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		req := httptest.NewRequest(http.MethodPost, "/lead", strings.NewReader(`{"email":"a@x.com"}`))
		req.RemoteAddr = "203.0.113.7:51234"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.CaptureLead(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	capture.AssertNumberOfCalls(t, "Execute", 1)
}

func TestLeadUsage(t *testing.T) {
	rec := httptest.NewRecorder()
	NewLeadHandler(new(MockCapture), "notion", nil).Usage(rec, httptest.NewRequest(http.MethodGet, "/lead", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "POST /lead")
}

func TestNotificationLabel(t *testing.T) {
	assert.Equal(t, "skipped", notificationLabel(entity.NotificationOutcome{Skipped: true}))
	assert.Equal(t, "pending", notificationLabel(entity.NotificationOutcome{Pending: true}))
	assert.Equal(t, "delivered", notificationLabel(entity.NotificationOutcome{Delivered: true}))
	assert.Equal(t, "failed", notificationLabel(entity.NotificationOutcome{Error: "smtp down"}))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/lead", nil)
	req.RemoteAddr = "198.51.100.2:4000"
	assert.Equal(t, "198.51.100.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("X-Real-IP", "203.0.113.10")
	assert.Equal(t, "198.51.100.2", getClientIP(req), "raw forwarded headers are ignored")
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are counted separately")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("a"), "a new window resets the count")
}

func TestRateLimiterSweepsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	now = now.Add(3 * time.Minute)
	rl.Allow("c")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.visitors, 1)
}
