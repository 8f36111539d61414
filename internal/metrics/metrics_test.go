package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.ObserveRPC("/splitsmart.v1.SplitService/CalculateSplit", "ok", 5*time.Millisecond)
	m.SettlementComputed("MANUAL")
	m.SettlementComputed("MANUAL")
	m.AssistantCall("extract_receipt", OutcomeError)
	m.SetActiveSessions(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`splitsmart_rpc_requests_total{code="ok",procedure="/splitsmart.v1.SplitService/CalculateSplit"} 1`,
		`splitsmart_settlements_computed_total{method="MANUAL"} 2`,
		"splitsmart_active_sessions 3",
		`splitsmart_assistant_calls_total{operation="extract_receipt",outcome="error"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRPC("p", "ok", time.Second)
	m.SettlementComputed("EQUAL")
	m.AssistantCall("chat", OutcomeOK)
	m.SetActiveSessions(1)
	m.SplitSaved()
}
