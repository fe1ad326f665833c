// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhookの処理結果ラベル
const (
	WebhookRejected        = "rejected"
	WebhookIgnored         = "ignored"
	WebhookMissingMetadata = "missing_metadata"
	WebhookEnrolled        = "enrolled"
	WebhookFailed          = "failed"
)

// WebhookRecorder はWebhookの処理結果を記録するインターフェース。
type WebhookRecorder interface {
	RecordWebhook(outcome string)
	RecordEnrollmentUpserted()
}

// NavigationRecorder は画面遷移の結果を記録するインターフェース。
type NavigationRecorder interface {
	RecordNavigation(page, outcome string)
	RecordPostView()
}

// BlogSyncRecorder はブログ同期ワーカーの結果を記録するインターフェース。
type BlogSyncRecorder interface {
	RecordSyncSuccess()
	RecordSyncFailure(reason string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordPostsUpserted(count int)
}

// CleanupRecorder はセッションクリーンアップの結果を記録するインターフェース。
type CleanupRecorder interface {
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	webhookEvents       *prometheus.CounterVec
	enrollmentsUpserted prometheus.Counter
	navigations         *prometheus.CounterVec
	postViews           prometheus.Counter
	syncSuccess         prometheus.Counter
	syncFail            *prometheus.CounterVec
	httpStatus          *prometheus.CounterVec
	fetchLatency        prometheus.Histogram
	postsUpserted       prometheus.Counter
	sessionsPurged      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_webhook_events_total",
			Help: "処理結果別のPaystack Webhook受信数",
		}, []string{"outcome"}),
		enrollmentsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_enrollments_upserted_total",
			Help: "書き込まれた受講登録の合計数",
		}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_navigations_total",
			Help: "画面と結果別のナビゲーションサイクル数",
		}, []string{"page", "outcome"}),
		postViews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_blog_post_views_total",
			Help: "表示されたブログ記事の合計数",
		}),
		syncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_blog_sync_success_total",
			Help: "ブログフィード同期成功の合計数",
		}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_blog_sync_fail_total",
			Help: "原因別のブログフィード同期失敗数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_blog_fetch_http_status_total",
			Help: "ブログフィード取得のHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexus_blog_fetch_latency_seconds",
			Help:    "ブログフィード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		postsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_blog_posts_upserted_total",
			Help: "アップサートされたブログ記事の合計数",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_sessions_purged_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.webhookEvents,
		c.enrollmentsUpserted,
		c.navigations,
		c.postViews,
		c.syncSuccess,
		c.syncFail,
		c.httpStatus,
		c.fetchLatency,
		c.postsUpserted,
		c.sessionsPurged,
	)

	return c
}

// RecordWebhook はWebhookの処理結果を記録する。
func (c *Collector) RecordWebhook(outcome string) {
	c.webhookEvents.WithLabelValues(outcome).Inc()
}

// RecordEnrollmentUpserted は受講登録の書き込みを記録する。
func (c *Collector) RecordEnrollmentUpserted() {
	c.enrollmentsUpserted.Inc()
}

// RecordNavigation はナビゲーションサイクルの結果を記録する。
// 未解決のパスはpageが空になるため"none"として記録する。
func (c *Collector) RecordNavigation(page, outcome string) {
	if page == "" {
		page = "none"
	}
	c.navigations.WithLabelValues(page, outcome).Inc()
}

// RecordPostView はブログ記事の表示を記録する。
func (c *Collector) RecordPostView() {
	c.postViews.Inc()
}

// RecordSyncSuccess は同期成功を記録する。
func (c *Collector) RecordSyncSuccess() {
	c.syncSuccess.Inc()
}

// RecordSyncFailure は同期失敗を原因付きで記録する。
func (c *Collector) RecordSyncFailure(reason string) {
	c.syncFail.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフィード取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordPostsUpserted はアップサートされた記事数を記録する。
func (c *Collector) RecordPostsUpserted(count int) {
	c.postsUpserted.Add(float64(count))
}

// RecordSessionsPurged は削除したセッション数を加算する。
func (c *Collector) RecordSessionsPurged(count int64) {
	if count > 0 {
		c.sessionsPurged.Add(float64(count))
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ WebhookRecorder    = (*Collector)(nil)
	_ NavigationRecorder = (*Collector)(nil)
	_ BlogSyncRecorder   = (*Collector)(nil)
	_ CleanupRecorder    = (*Collector)(nil)
)
