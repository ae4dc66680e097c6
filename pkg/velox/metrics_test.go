package velox

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestPrometheus_CountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := PrometheusWithConfig(PrometheusConfig{Registerer: reg})

	h := mw(HandlerFunc(func(ctx *Context) error {
		return ctx.String(200, "ok")
	}))
	for i := 0; i < 3; i++ {
		if err := h.Serve(routerContext("GET", "/counted")); err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	}

	mf := gatherMetric(t, reg, "velox_requests_total")
	if mf == nil {
		t.Fatal("Expected velox_requests_total to be registered")
	}
	metric := mf.GetMetric()
	if len(metric) != 1 {
		t.Fatalf("Expected one label combination, got %d", len(metric))
	}
	if got := metric[0].GetCounter().GetValue(); got != 3 {
		t.Errorf("Expected 3 requests counted, got %v", got)
	}
	for _, label := range metric[0].GetLabel() {
		switch label.GetName() {
		case "method":
			if label.GetValue() != "GET" {
				t.Errorf("Expected method label GET, got %q", label.GetValue())
			}
		case "status":
			if label.GetValue() != "200" {
				t.Errorf("Expected status label 200, got %q", label.GetValue())
			}
		}
	}
}

func TestPrometheus_ErrorCountsAs500(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := PrometheusWithConfig(PrometheusConfig{Registerer: reg})

	h := mw(HandlerFunc(func(ctx *Context) error {
		return errors.New("boom")
	}))
	if err := h.Serve(routerContext("GET", "/err")); err == nil {
		t.Fatal("Expected error propagated")
	}

	mf := gatherMetric(t, reg, "velox_requests_total")
	if mf == nil {
		t.Fatal("Expected velox_requests_total to be registered")
	}
	for _, label := range mf.GetMetric()[0].GetLabel() {
		if label.GetName() == "status" && label.GetValue() != "500" {
			t.Errorf("Expected status label 500, got %q", label.GetValue())
		}
	}
}

func TestPrometheus_ObservesDurationAndSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := PrometheusWithConfig(PrometheusConfig{Registerer: reg})

	h := mw(HandlerFunc(func(ctx *Context) error {
		return ctx.String(200, "four")
	}))
	if err := h.Serve(routerContext("GET", "/sized")); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	duration := gatherMetric(t, reg, "velox_request_duration_seconds")
	if duration == nil || duration.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Error("Expected one duration observation")
	}

	size := gatherMetric(t, reg, "velox_response_size_bytes")
	if size == nil {
		t.Fatal("Expected velox_response_size_bytes to be registered")
	}
	if got := size.GetMetric()[0].GetHistogram().GetSampleSum(); got != 4 {
		t.Errorf("Expected response size sum 4, got %v", got)
	}
}

func TestPrometheus_SkipPaths(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := PrometheusWithConfig(PrometheusConfig{Registerer: reg, SkipPaths: []string{"/metrics"}})

	h := mw(HandlerFunc(func(ctx *Context) error {
		return ctx.String(200, "ok")
	}))
	if err := h.Serve(routerContext("GET", "/metrics")); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	mf := gatherMetric(t, reg, "velox_requests_total")
	if mf != nil && len(mf.GetMetric()) > 0 {
		t.Error("Expected skipped path not counted")
	}
}
