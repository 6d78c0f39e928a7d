package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/output", 200, 0.001)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "app_build_info") || !strings.Contains(body, "http_requests_total") {
		t.Fatalf("metrics payload did not contain expected metric names; got:\n%s", body)
	}
}

func TestInit_CustomRegistryReceivesSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)
	// registering twice must be tolerated
	Init(reg, true)

	IncGeocode("failed")
	ObserveRecompute("gapminder-table", nil, 0.0002)
	ObserveRecompute("country-summary", errors.New("x"), 0.0001)
	IncLogin(false)

	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	for _, want := range []string{
		`geocode_lookups_total{outcome="failed"}`,
		`reactive_recompute_total{output="gapminder-table",result="ok"}`,
		`reactive_recompute_total{output="country-summary",result="error"}`,
		`login_attempts_total{result="failed"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in:\n%s", want, body)
		}
	}
}
