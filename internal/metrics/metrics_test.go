package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名のメトリクスファミリーを取り出す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordOrderCreated_IncrementsCounter は注文作成カウンタと品目数が記録されることを検証する。
func TestRecordOrderCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOrderCreated(2)
	c.RecordOrderCreated(3)

	mf := findMetric(t, reg, "lunchman_orders_created_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("orders_created_total = %v, want 2", val)
	}

	hist := findMetric(t, reg, "lunchman_order_items").GetMetric()[0].GetHistogram()
	if hist.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", hist.GetSampleCount())
	}
	if hist.GetSampleSum() != 5 {
		t.Errorf("sample sum = %v, want 5", hist.GetSampleSum())
	}
}

// TestRecordLogin_CountsSignups は新規作成時のみsignupsが増えることを検証する。
func TestRecordLogin_CountsSignups(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("google", true)
	c.RecordLogin("google", false)
	c.RecordLogin("facebook", false)

	logins := findMetric(t, reg, "lunchman_logins_total")
	got := map[string]float64{}
	for _, m := range logins.GetMetric() {
		got[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	if got["google"] != 2 || got["facebook"] != 1 {
		t.Errorf("logins = %v, want google=2 facebook=1", got)
	}

	signups := findMetric(t, reg, "lunchman_signups_total")
	if len(signups.GetMetric()) != 1 || signups.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Errorf("signups should count only the created login")
	}
}

// TestRecordHTTPStatus_LabelsByCode はステータスコード別に記録されることを検証する。
func TestRecordHTTPStatus_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(403)

	mf := findMetric(t, reg, "lunchman_http_status_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label values, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		code := m.GetLabel()[0].GetValue()
		want := map[string]float64{"200": 2, "403": 1}[code]
		if m.GetCounter().GetValue() != want {
			t.Errorf("status %s = %v, want %v", code, m.GetCounter().GetValue(), want)
		}
	}
}

func TestRecordSessionsPurged_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsPurged(4)
	c.RecordSessionsPurged(0)

	mf := findMetric(t, reg, "lunchman_sessions_purged_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 4 {
		t.Errorf("sessions_purged_total = %v, want 4", val)
	}
}

func TestRecordRequestLatency_Observes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)
	c.RecordMenuNotFound()
	c.RecordOrderDeleted()

	hist := findMetric(t, reg, "lunchman_request_latency_seconds").GetMetric()[0].GetHistogram()
	if hist.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", hist.GetSampleCount())
	}
	if v := findMetric(t, reg, "lunchman_menu_not_found_total").GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("menu_not_found_total = %v, want 1", v)
	}
}

// 二重登録はMustRegisterでpanicする
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}
