package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, r *Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestRecordRun(t *testing.T) {
	r := NewRegistry()
	r.RecordRun("ok", 2*time.Second)
	r.RecordRun("ok", time.Second)
	r.RecordRun("error", time.Second)

	mf := gatherFamily(t, r, "sybilrank_runs_total")
	if mf == nil {
		t.Fatal("sybilrank_runs_total not registered")
	}
	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status" {
				counts[lp.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if counts["ok"] != 2 || counts["error"] != 1 {
		t.Errorf("Unexpected run counts: %v", counts)
	}

	hist := gatherFamily(t, r, "sybilrank_run_duration_seconds")
	if hist == nil {
		t.Fatal("sybilrank_run_duration_seconds not registered")
	}
	if got := hist.GetMetric()[0].GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("Expected 3 duration samples, got %d", got)
	}
}

func TestGauges(t *testing.T) {
	r := NewRegistry()
	r.BorderValue.Set(0.12)
	r.NodesRanked.Set(6)

	mf := gatherFamily(t, r, "sybilrank_border_value")
	if mf == nil {
		t.Fatal("sybilrank_border_value not registered")
	}
	if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 0.12 {
		t.Errorf("Expected border gauge 0.12, got %v", got)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.PersistFailed.Inc()

	mf := gatherFamily(t, b, "sybilrank_persist_failures_total")
	if mf == nil {
		t.Fatal("sybilrank_persist_failures_total not registered")
	}
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 0 {
		t.Errorf("Registries share state: got %v", got)
	}
}

func TestDefaultRegistrySingleton(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Error("DefaultRegistry must return the same instance")
	}
}
