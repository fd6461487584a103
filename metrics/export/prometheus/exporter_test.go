package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	otpgate "github.com/hexleaf/otpgate"
)

type fakeSource struct {
	snapshot otpgate.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() otpgate.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: otpgate.MetricsSnapshot{Counters: map[otpgate.MetricID]uint64{}},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounters(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: otpgate.MetricsSnapshot{
			Counters: map[otpgate.MetricID]uint64{
				otpgate.MetricCodeRequested: 7,
				otpgate.MetricVerifyLocked:  2,
			},
		},
		dropped: 3,
	})

	out := exp.Render()
	if !strings.Contains(out, "otpgate_code_requested_total 7") {
		t.Fatalf("expected requested counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "otpgate_verify_locked_total 2") {
		t.Fatalf("expected locked counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "otpgate_audit_dropped_total 3") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE otpgate_code_requested_total counter") {
		t.Fatalf("expected TYPE line in output, got:\n%s", out)
	}
}

func TestHandlerServesTextExposition(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: otpgate.MetricsSnapshot{
			Counters: map[otpgate.MetricID]uint64{otpgate.MetricVerifySuccess: 1},
		},
	})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "otpgate_verify_success_total 1") {
		t.Fatalf("expected counter in body, got:\n%s", rec.Body.String())
	}
}
