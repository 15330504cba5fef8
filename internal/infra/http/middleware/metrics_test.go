package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestMetricsLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Post("/lead", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/lead", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))

	out := scrape(t)
	assert.Contains(t, out, `http_requests_total{method="POST",path="/lead",status="400"}`)
	assert.Contains(t, out, `http_requests_total{method="GET",path="unmatched",status="404"}`)
	assert.NotContains(t, out, "wp-login")
}

func TestRecordCounters(t *testing.T) {
	RecordLeadOutcome("duplicate")
	RecordNotification("pending")
	RecordStoreError("StoreError")

	out := scrape(t)
	assert.Contains(t, out, `leads_captured_total{outcome="duplicate"}`)
	assert.Contains(t, out, `lead_notifications_total{result="pending"}`)
	assert.Contains(t, out, `lead_store_errors_total{code="StoreError"}`)
}
