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
// サービス層と外部サービスクライアントから利用する。
type MetricsCollector interface {
	RecordChatTransition(event, to string)
	RecordTransitionRejected(event, reason string)
	RecordCheckin()
	RecordMatchesSuggested(count int)
	RecordMatchDecision(decision string)
	RecordAnalysisLatency(operation string, duration time.Duration)
	RecordAnalysisFailure(operation string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	chatTransitions    *prometheus.CounterVec
	transitionRejected *prometheus.CounterVec
	checkins           prometheus.Counter
	matchesSuggested   prometheus.Counter
	matchDecisions     *prometheus.CounterVec
	analysisLatency    *prometheus.HistogramVec
	analysisFail       *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		chatTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "founderhub_chat_transitions_total",
			Help: "コーヒーチャットの状態遷移数（イベント・遷移先別）",
		}, []string{"event", "to"}),
		transitionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "founderhub_chat_transition_rejected_total",
			Help: "拒否されたコーヒーチャット状態遷移数（理由別）",
		}, []string{"event", "reason"}),
		checkins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "founderhub_checkins_total",
			Help: "受け付けたチェックインの合計数",
		}),
		matchesSuggested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "founderhub_matches_suggested_total",
			Help: "保存したマッチ候補の合計数",
		}),
		matchDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "founderhub_match_decisions_total",
			Help: "エキスパートによるマッチ応答数（承認・辞退別）",
		}, []string{"decision"}),
		analysisLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "founderhub_analysis_latency_seconds",
			Help:    "外部分析サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		analysisFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "founderhub_analysis_fail_total",
			Help: "外部分析サービス呼び出し失敗の合計数",
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "founderhub_analysis_http_status_total",
			Help: "外部分析サービスのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.chatTransitions,
		c.transitionRejected,
		c.checkins,
		c.matchesSuggested,
		c.matchDecisions,
		c.analysisLatency,
		c.analysisFail,
		c.httpStatus,
	)

	return c
}

// RecordChatTransition は成功した状態遷移を記録する。
func (c *Collector) RecordChatTransition(event, to string) {
	c.chatTransitions.WithLabelValues(event, to).Inc()
}

// RecordTransitionRejected は拒否された状態遷移を記録する。
func (c *Collector) RecordTransitionRejected(event, reason string) {
	c.transitionRejected.WithLabelValues(event, reason).Inc()
}

// RecordCheckin はチェックインの受け付けを記録する。
func (c *Collector) RecordCheckin() {
	c.checkins.Inc()
}

// RecordMatchesSuggested は保存したマッチ候補数を記録する。
func (c *Collector) RecordMatchesSuggested(count int) {
	c.matchesSuggested.Add(float64(count))
}

// RecordMatchDecision はマッチへの応答を記録する。
func (c *Collector) RecordMatchDecision(decision string) {
	c.matchDecisions.WithLabelValues(decision).Inc()
}

// RecordAnalysisLatency は外部分析サービス呼び出しのレイテンシを記録する。
func (c *Collector) RecordAnalysisLatency(operation string, duration time.Duration) {
	c.analysisLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAnalysisFailure は外部分析サービス呼び出しの失敗を記録する。
func (c *Collector) RecordAnalysisFailure(operation string) {
	c.analysisFail.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus は外部分析サービスのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。メトリクス未設定時とテストで使用する。
type Nop struct{}

func (Nop) RecordChatTransition(string, string)         {}
func (Nop) RecordTransitionRejected(string, string)     {}
func (Nop) RecordCheckin()                              {}
func (Nop) RecordMatchesSuggested(int)                  {}
func (Nop) RecordMatchDecision(string)                  {}
func (Nop) RecordAnalysisLatency(string, time.Duration) {}
func (Nop) RecordAnalysisFailure(string)                {}
func (Nop) RecordHTTPStatus(int)                        {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
