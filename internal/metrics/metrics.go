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
// GitHubブリッジ、アクセス制御、HTTPミドルウェア、クリーンアップジョブから利用する。
type MetricsCollector interface {
	RecordGitHubCall(endpoint, outcome string, duration time.Duration)
	RecordAccessDenied(resource string)
	RecordHTTPStatus(statusCode int)
	RecordSessionsCleaned(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	githubCalls     *prometheus.CounterVec
	githubLatency   *prometheus.HistogramVec
	accessDenied    *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		githubCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclone_github_calls_total",
			Help: "GitHub API呼び出しの結果別の合計数",
		}, []string{"endpoint", "outcome"}),
		githubLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cyclone_github_call_duration_seconds",
			Help:    "GitHub API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclone_access_denied_total",
			Help: "所有チェーン判定で拒否したリクエストの合計数",
		}, []string{"resource"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclone_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cyclone_sessions_cleaned_total",
			Help: "削除した期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.githubCalls,
		c.githubLatency,
		c.accessDenied,
		c.httpStatus,
		c.sessionsCleaned,
	)

	return c
}

// RecordGitHubCall はGitHub API呼び出しの結果とレイテンシを記録する。
// endpointは "access_tokens" または "repositories"。
func (c *Collector) RecordGitHubCall(endpoint, outcome string, duration time.Duration) {
	c.githubCalls.WithLabelValues(endpoint, outcome).Inc()
	c.githubLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAccessDenied はアクセス拒否を記録する。resourceは "organization" または "repository"。
func (c *Collector) RecordAccessDenied(resource string) {
	c.accessDenied.WithLabelValues(resource).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsCleaned は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int) {
	c.sessionsCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 一部のメトリクスの収集に失敗しても、残りは返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
