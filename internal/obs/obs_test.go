package obs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ChecksTotal.WithLabelValues("ONLINE").Inc()
	m.FetchBlocked.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `storewatch_checks_total{status="ONLINE"} 1`) {
		t.Fatalf("missing checks counter:\n%s", body)
	}
	if !strings.Contains(body, "storewatch_fetch_blocked_total 1") {
		t.Fatalf("missing blocked counter:\n%s", body)
	}
}

func TestHealthz(t *testing.T) {
	m := NewMetrics()

	healthy := StartServer("127.0.0.1:0", m, func(context.Context) error { return nil }, zerolog.Nop())
	defer healthy.Close()
	rec := httptest.NewRecorder()
	healthy.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy status = %d", rec.Code)
	}

	unhealthy := StartServer("127.0.0.1:0", m, func(context.Context) error { return errors.New("db down") }, zerolog.Nop())
	defer unhealthy.Close()
	rec = httptest.NewRecorder()
	unhealthy.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status = %d", rec.Code)
	}
}
