// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordOrderCreated(itemCount int)
	RecordOrderDeleted()
	RecordLogin(provider string, created bool)
	RecordMenuNotFound()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	ordersCreated  prometheus.Counter
	orderItems     prometheus.Histogram
	ordersDeleted  prometheus.Counter
	logins         *prometheus.CounterVec
	signups        *prometheus.CounterVec
	menuNotFound   prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	sessionsPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lunchman_orders_created_total",
			Help: "作成された注文の合計数",
		}),
		orderItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lunchman_order_items",
			Help:    "1注文あたりの品目数",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),
		ordersDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lunchman_orders_deleted_total",
			Help: "削除された注文の合計数",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchman_logins_total",
			Help: "プロバイダ別のログイン数",
		}, []string{"provider"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchman_signups_total",
			Help: "プロバイダ別の新規ユーザー作成数",
		}, []string{"provider"}),
		menuNotFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lunchman_menu_not_found_total",
			Help: "有効な日替わりメニューが見つからなかった回数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lunchman_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lunchman_sessions_purged_total",
			Help: "期限切れで削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.ordersCreated,
		c.orderItems,
		c.ordersDeleted,
		c.logins,
		c.signups,
		c.menuNotFound,
		c.httpStatus,
		c.requestLatency,
		c.sessionsPurged,
	)

	return c
}

// RecordOrderCreated は注文作成と品目数を記録する。
func (c *Collector) RecordOrderCreated(itemCount int) {
	c.ordersCreated.Inc()
	c.orderItems.Observe(float64(itemCount))
}

// RecordOrderDeleted は注文削除を記録する。
func (c *Collector) RecordOrderDeleted() {
	c.ordersDeleted.Inc()
}

// RecordLogin はログインを記録する。createdが真なら新規作成としても数える。
func (c *Collector) RecordLogin(provider string, created bool) {
	c.logins.WithLabelValues(provider).Inc()
	if created {
		c.signups.WithLabelValues(provider).Inc()
	}
}

// RecordMenuNotFound はメニュー未登録を記録する。
func (c *Collector) RecordMenuNotFound() {
	c.menuNotFound.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionsPurged は削除したセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordOrderCreated(int)             {}
func (NopCollector) RecordOrderDeleted()                {}
func (NopCollector) RecordLogin(string, bool)           {}
func (NopCollector) RecordMenuNotFound()                {}
func (NopCollector) RecordHTTPStatus(int)               {}
func (NopCollector) RecordRequestLatency(time.Duration) {}
func (NopCollector) RecordSessionsPurged(int64)         {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
