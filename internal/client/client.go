// Package client はfounderhubバックエンドAPIのHTTP JSONクライアントを提供する。
// セッションCookieはCookieJarで保持し、状態を変更するリクエストにはCSRFトークンを付与する。
// 失敗時の自動リトライは行わない。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfTokenPath  = "/api/csrf-token"

	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 4 << 20

	defaultTimeout = 10 * time.Second
)

// StatusError はAPIが2xx以外のステータスを返したことを表す。
// 呼び出し元はステータスに関わらず「操作に失敗した」として扱う。
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s がステータス %d を返しました (%s): %s", e.Method, e.Path, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s がステータス %d を返しました", e.Method, e.Path, e.StatusCode)
}

// IsStatus はerrが指定したHTTPステータスのStatusErrorかどうかを返す。
func IsStatus(err error, statusCode int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == statusCode
}

// errorBody はAPIのエラーレスポンス。
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client はバックエンドAPIのクライアント。複数のgoroutineから同時に使用できる。
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	validate   *validator.Validate
	group      singleflight.Group
	logger     *slog.Logger
}

// New はClientの新しいインスタンスを生成する。
// httpClientがnilの場合はタイムアウト付きのクライアントを使用する。
// CookieJarが未設定の場合は新しいJarを割り当てる。
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("APIベースURLのパースに失敗しました: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("APIベースURLが不正です: %q", baseURL)
	}

	hc := &http.Client{Timeout: defaultTimeout}
	if httpClient != nil {
		copied := *httpClient
		hc = &copied
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("CookieJarの作成に失敗しました: %w", err)
		}
		hc.Jar = jar
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: hc,
		baseURL:    u,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
	}, nil
}

// get はGETリクエストを送信し、レスポンスをoutにデコードする。
// 同じパスへの同時リクエストは1回の通信にまとめる。
func (c *Client) get(ctx context.Context, path string, out any) error {
	v, err, shared := c.group.Do(path, func() (any, error) {
		return c.do(ctx, http.MethodGet, path, nil, "")
	})
	if err != nil {
		return err
	}
	if shared {
		c.logger.Debug("shared in-flight request", slog.String("path", path))
	}
	return decode(v.([]byte), out)
}

// send は状態を変更するリクエストを送信する。CSRFトークンが未取得の場合は先に取得する。
func (c *Client) send(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		if err := c.validate.Struct(in); err != nil {
			return fmt.Errorf("リクエストが不正です: %w", err)
		}
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
		}
		body = b
	}

	token, err := c.csrfToken(ctx)
	if err != nil {
		return err
	}

	respBody, err := c.do(ctx, method, path, body, token)
	if err != nil {
		return err
	}
	return decode(respBody, out)
}

// csrfToken はCookieJarに保持されたCSRFトークンを返す。
// 未保持の場合はトークン取得エンドポイントを呼び出してCookieを受け取る。
func (c *Client) csrfToken(ctx context.Context) (string, error) {
	if token := c.cookie(csrfCookieName); token != "" {
		return token, nil
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.get(ctx, csrfTokenPath, &resp); err != nil {
		return "", fmt.Errorf("CSRFトークンの取得に失敗しました: %w", err)
	}
	if token := c.cookie(csrfCookieName); token != "" {
		return token, nil
	}
	return resp.Token, nil
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, csrf string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if csrf != "" {
		req.Header.Set(csrfHeaderName, csrf)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("API request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s %s の送信に失敗しました: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil {
			se.Code = eb.Code
			se.Message = eb.Message
		}
		c.logger.Warn("API returned error status",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("code", se.Code),
		)
		return nil, se
	}

	return respBody, nil
}

func decode(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}
