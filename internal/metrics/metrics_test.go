package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveLoad(t *testing.T) {
	r := NewRegistry()

	r.ObserveLoad("toolkit", 10*time.Millisecond, nil)
	r.ObserveLoad("toolkit", 5*time.Millisecond, errors.New("boom"))
	r.ObserveLoad("toolkit", 5*time.Millisecond, nil)

	if got := testutil.ToFloat64(r.LoadsTotal.WithLabelValues("toolkit", "success")); got != 2 {
		t.Errorf("success loads = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.LoadsTotal.WithLabelValues("toolkit", "error")); got != 1 {
		t.Errorf("failed loads = %v, want 1", got)
	}
}

func TestObserveSimulation(t *testing.T) {
	r := NewRegistry()

	r.ObserveSimulation("toolkit", time.Second, nil)

	if got := testutil.ToFloat64(r.SimulationsTotal.WithLabelValues("toolkit", "success")); got != 1 {
		t.Errorf("simulations = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(r.SimulationDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestHTTPMetrics(t *testing.T) {
	r := NewRegistry()

	r.IncHTTPRequestsInFlight()
	r.IncHTTPRequestsInFlight()
	r.DecHTTPRequestsInFlight()
	r.RecordHTTPRequest("GET", "/statistics", "200", 3*time.Millisecond)
	r.IncRateLimited()

	if got := testutil.ToFloat64(r.HTTPRequestsInFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.HTTPRequestsTotal.WithLabelValues("GET", "/statistics", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.RateLimited); got != 1 {
		t.Errorf("rate limited = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveSimulation("topology", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "epaview_simulations_total") {
		t.Errorf("metrics output missing simulations counter:\n%s", body)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	a.ObserveLoad("toolkit", 0, nil)

	if got := testutil.ToFloat64(b.LoadsTotal.WithLabelValues("toolkit", "success")); got != 0 {
		t.Errorf("second registry saw %v loads, want 0", got)
	}
}
