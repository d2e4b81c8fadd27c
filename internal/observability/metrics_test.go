package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	_ = metrics.Jobs().Track("ledger_reconcile").End(errors.New("boom"))

	body := scrape(t, metrics)
	if !strings.Contains(body, `ledger_jobs_total{job="ledger_reconcile",status="failure"} 1`) {
		t.Fatalf("expected job run to be recorded, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "ledger_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "ledger_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestLedgerCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObservePosting("sales_invoice", "posted")
	metrics.ObservePosting("sales_invoice", "posted")
	metrics.ObserveAllocation("ar", "allocate", "rejected")

	body := scrape(t, metrics)
	if !strings.Contains(body, `ledger_postings_total{document_type="sales_invoice",result="posted"} 2`) {
		t.Fatalf("expected posting counter, got: %s", body)
	}
	if !strings.Contains(body, `ledger_allocations_total{book="ar",op="allocate",result="rejected"} 1`) {
		t.Fatalf("expected allocation counter, got: %s", body)
	}

	var nilMetrics *Metrics
	nilMetrics.ObservePosting("manual", "posted")
	nilMetrics.ObserveAllocation("ap", "allocate", "ok")
}
