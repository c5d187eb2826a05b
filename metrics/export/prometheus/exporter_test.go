package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	identity "github.com/shahramvafadar/darwin-identity"
)

type fakeSource struct {
	snapshot identity.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() identity.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: identity.MetricsSnapshot{
			Counters: map[identity.MetricID]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounters(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: identity.MetricsSnapshot{
			Counters: map[identity.MetricID]uint64{
				identity.MetricLoginSuccess: 7,
				identity.MetricTokensIssued: 12,
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "identity_login_success_total 7") {
		t.Fatalf("expected login_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "identity_tokens_issued_total 12") {
		t.Fatalf("expected tokens_issued counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE identity_login_success_total counter") {
		t.Fatalf("expected TYPE line in output, got:\n%s", out)
	}
	if !strings.Contains(out, "identity_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestRenderListsEveryDefinedCounter(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: identity.MetricsSnapshot{
			Counters: map[identity.MetricID]uint64{identity.MetricLoginSuccess: 1},
		},
	})

	out := exp.Render()
	// Zero-valued counters are still exposed so scrapes see a stable series
	// set.
	if !strings.Contains(out, "identity_refresh_failure_total 0") {
		t.Fatalf("expected zero-valued counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "identity_permission_denied_total 0") {
		t.Fatalf("expected zero-valued counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: identity.MetricsSnapshot{
			Counters: map[identity.MetricID]uint64{identity.MetricLoginSuccess: 1},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRenderNilExporter(t *testing.T) {
	var exp *PrometheusExporter
	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: identity.MetricsSnapshot{
			Counters: map[identity.MetricID]uint64{
				identity.MetricLoginSuccess:   1000,
				identity.MetricLoginFailure:   40,
				identity.MetricTokensIssued:   900,
				identity.MetricRefreshSuccess: 800,
				identity.MetricRefreshFailure: 10,
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
