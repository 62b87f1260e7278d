package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/technoshop/technoshop-backend/pkg/metrics"
)

func TestMetricsLabelsByRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(Metrics(metrics.NewHTTPMetrics(registry)))
	r.Get("/api/public/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/public/products/"+id, nil))
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, family := range families {
		if family.GetName() != "technoshop_http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["route"] == "/api/public/products/{id}" && labels["status"] == "404" {
				found = true
				if got := metric.GetCounter().GetValue(); got != 2 {
					t.Fatalf("expected 2 requests got %v", got)
				}
			}
		}
	}
	if !found {
		t.Fatal("expected request counter for route pattern")
	}
}
