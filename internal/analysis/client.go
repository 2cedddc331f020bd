// Package analysis は外部分析サービス（ニーズ・ラーニング抽出とマッチ候補算出）との連携を提供する。
// サービス未設定時や呼び出し失敗時の抽出はキーワードベースの簡易ルールで代替する。
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/founderhub/internal/metrics"
	"github.com/hitoshi/founderhub/internal/model"
)

const (
	extractPath = "/extract"
	matchPath   = "/match"
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 1 << 20
	limiterBurst     = 5
)

// ErrNotConfigured は分析サービスのURLが設定されていないことを表す。
var ErrNotConfigured = errors.New("analysis service is not configured")

// Client は外部分析サービスのHTTP JSONクライアント。
// 呼び出しはトークンバケットで流量制限する。
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合、各呼び出しはErrNotConfiguredを返す。
func NewClient(httpClient *http.Client, baseURL string, callsPerMinute int, collector metrics.MetricsCollector, logger *slog.Logger) *Client {
	if callsPerMinute <= 0 {
		callsPerMinute = 60
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(callsPerMinute)), limiterBurst),
		metrics:    collector,
		logger:     logger,
	}
}

// Configured は分析サービスのURLが設定されているかを返す。
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

type extractRequest struct {
	Text   string `json:"text"`
	UserID string `json:"user_id"`
}

// Extract はチェックイン本文からニーズとラーニングを抽出する。
func (c *Client) Extract(ctx context.Context, text, userID string) (*model.Extraction, error) {
	var out model.Extraction
	if err := c.post(ctx, "extract", extractPath, extractRequest{Text: text, UserID: userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type entry struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

type matchRequest struct {
	Needs     []entry `json:"needs"`
	Learnings []entry `json:"learnings"`
	Limit     int     `json:"limit"`
}

type matchResponse struct {
	Matches []model.MatchSuggestion `json:"matches"`
}

// Match はニーズとラーニングの組み合わせからマッチ候補を取得する。
// limitはニーズ1件あたりの候補数。
func (c *Client) Match(ctx context.Context, needs []*model.Need, learnings []*model.Learning, limit int) ([]model.MatchSuggestion, error) {
	req := matchRequest{
		Needs:     make([]entry, len(needs)),
		Learnings: make([]entry, len(learnings)),
		Limit:     limit,
	}
	for i, n := range needs {
		req.Needs[i] = entry{ID: n.ID, UserID: n.UserID, Label: n.Label, Category: n.Category}
	}
	for i, l := range learnings {
		req.Learnings[i] = entry{ID: l.ID, UserID: l.UserID, Label: l.Label, Category: l.Category}
	}

	var out matchResponse
	if err := c.post(ctx, "match", matchPath, req, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

func (c *Client) post(ctx context.Context, operation, path string, body, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("分析サービスの呼び出し待機が中断されました: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "FounderHub/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordAnalysisLatency(operation, time.Since(start))
	if err != nil {
		c.metrics.RecordAnalysisFailure(operation)
		c.logger.ErrorContext(ctx, "分析サービスの呼び出しに失敗しました",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()
	c.metrics.RecordHTTPStatus(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordAnalysisFailure(operation)
		c.logger.ErrorContext(ctx, "分析サービスがエラーステータスを返しました",
			slog.String("operation", operation),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("分析サービスがステータス %d を返しました", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.RecordAnalysisFailure(operation)
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.metrics.RecordAnalysisFailure(operation)
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}
