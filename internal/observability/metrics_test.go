package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecording(t *testing.T) {
	m, _ := NewMetrics()

	m.RecordRequest("bug_fixing", true)
	m.RecordRequest("bug_fixing", false)
	m.RecordToolExecution("read_file", true, 50*time.Millisecond)
	m.RecordCredentialRotation("groq")
	m.RecordFallbackAdvance("chat", "groq", "cerebras")

	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("bug_fixing", "success")); got != 1 {
		t.Errorf("success requests = %v", got)
	}
	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("bug_fixing", "error")); got != 1 {
		t.Errorf("error requests = %v", got)
	}
	if got := testutil.ToFloat64(m.ToolExecutionCounter.WithLabelValues("read_file", "success")); got != 1 {
		t.Errorf("tool executions = %v", got)
	}
	if got := testutil.ToFloat64(m.CredentialRotations.WithLabelValues("groq")); got != 1 {
		t.Errorf("rotations = %v", got)
	}
	if got := testutil.ToFloat64(m.FallbackAdvances.WithLabelValues("chat", "groq", "cerebras")); got != 1 {
		t.Errorf("fallback advances = %v", got)
	}
}

func TestNewMetricsRegistriesAreIndependent(t *testing.T) {
	// Two instances must not collide on registration.
	m1, r1 := NewMetrics()
	m2, _ := NewMetrics()
	m1.RecordRequest("chat", true)
	m2.RecordRequest("chat", true)

	families, err := r1.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Error("registry gathered no metric families")
	}
}
