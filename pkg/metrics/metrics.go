// Package metrics はゲートウェイのPrometheusメトリクスを定義する。
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal はルート分類・ステータスコード別のリクエスト数。
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "requests_total",
			Help:      "ルート分類・ステータス別のリクエスト数",
		},
		[]string{"class", "status"},
	)

	// RequestDuration はルート分類別のリクエスト処理時間。
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gateway",
			Name:      "request_duration_seconds",
			Help:      "ルート分類別のリクエスト処理時間",
			// 上流のLLM処理を含むため30秒まで見る
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"class"},
	)

	// PaymentVerifications は検証結果（verified/provisional/拒否コード）別の件数。
	PaymentVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "payment_verifications_total",
			Help:      "支払い検証の結果別件数",
		},
		[]string{"outcome"},
	)

	// UpstreamRequests は上流エンドポイント・結果別の呼び出し数。
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "upstream_requests_total",
			Help:      "上流グラフエンジンへの呼び出し数",
		},
		[]string{"endpoint", "result"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, RequestDuration, PaymentVerifications, UpstreamRequests)
}

// ObserveRequest はリクエスト1件の結果を記録する。
func ObserveRequest(class, status string, seconds float64) {
	RequestsTotal.WithLabelValues(class, status).Inc()
	RequestDuration.WithLabelValues(class).Observe(seconds)
}

// IncVerification は支払い検証の結果を記録する。
func IncVerification(outcome string) {
	PaymentVerifications.WithLabelValues(outcome).Inc()
}

// IncUpstream は上流呼び出しの結果を記録する。
func IncUpstream(endpoint, result string) {
	UpstreamRequests.WithLabelValues(endpoint, result).Inc()
}
