package metrics_test

import (
	"testing"

	"github.com/alcp-iot/hapcanbridge/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRegisterExposesEndpointState(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	metrics.EndpointState.WithLabelValues("mqtt").Set(1)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "hapcanbridge_endpoint_state" {
			found = true
			var got float64
			for _, m := range mf.Metric {
				if labelValue(m, "endpoint") == "mqtt" {
					got = m.GetGauge().GetValue()
				}
			}
			if got != 1 {
				t.Fatalf("expected endpoint_state{endpoint=mqtt}=1, got %v", got)
			}
		}
	}
	if !found {
		t.Fatal("expected hapcanbridge_endpoint_state to be registered")
	}
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.Label {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
