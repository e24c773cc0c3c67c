package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ProviderCall("create", 200, time.Second)
	m.Submitted("image")
	m.Outcome("image", "SUCCEEDED")
	m.Debited(5)
	m.Refunded(5)
	m.RefundSkipped("redis")
	m.Leased(3)
	m.Reconciled("processing")
	m.Inflight(1)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("nil middleware should pass through, got %d", rec.Code)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	t.Parallel()
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/generations/{taskId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/generations/"+id, nil))
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/api/v1/generations/{taskId}", "404"))
	if got != 2 {
		t.Fatalf("requests_total = %v, want 2", got)
	}
}

func TestLedgerCounters(t *testing.T) {
	t.Parallel()
	m := New()
	m.Debited(5)
	m.Debited(0)
	m.Refunded(5)
	m.RefundSkipped("ledger")
	m.RefundSkipped("ledger")

	if v := testutil.ToFloat64(m.creditsDebited); v != 5 {
		t.Fatalf("debited = %v", v)
	}
	if v := testutil.ToFloat64(m.creditsRefunded); v != 5 {
		t.Fatalf("refunded = %v", v)
	}
	if v := testutil.ToFloat64(m.refundsSkipped.WithLabelValues("ledger")); v != 2 {
		t.Fatalf("skipped = %v", v)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()
	m := New()
	m.Submitted("text")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `shapeshift_generation_submissions_total{kind="text"} 1`) {
		t.Fatalf("exposition missing counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("runtime collectors missing")
	}
}
