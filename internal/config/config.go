package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Admin
	AdminPasswordHash string
	AdminPassword     string

	// Session
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitCheckin int

	// Scheduling
	MeetingBaseURL string

	// Analysis
	AnalysisServiceURL     string
	AnalysisTimeout        time.Duration
	AnalysisCallsPerMinute int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// WatchConfig は watch サブコマンド（APIクライアント側）の設定を保持する。
// サーバー用の必須設定には依存しない。
type WatchConfig struct {
	APIBaseURL      string
	Email           string
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
}

// loadDotEnv はカレントディレクトリの.envファイルを読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルが無い場合は何もしない。
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to load .env file", slog.String("error", err.Error()))
		}
	}
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	// 管理者パスワードはbcryptハッシュを優先し、平文は開発用として受け付ける
	cfg.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	if cfg.AdminPasswordHash == "" && cfg.AdminPassword == "" {
		missing = append(missing, "ADMIN_PASSWORD_HASH")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCheckin = getEnvInt("RATE_LIMIT_CHECKIN", 10)
	cfg.MeetingBaseURL = strings.TrimRight(getEnvString("MEETING_BASE_URL", "https://meet.jit.si"), "/")
	cfg.AnalysisServiceURL = strings.TrimRight(getEnvString("ANALYSIS_SERVICE_URL", ""), "/")
	cfg.AnalysisTimeout = getEnvDuration("ANALYSIS_TIMEOUT", 15*time.Second)
	cfg.AnalysisCallsPerMinute = getEnvInt("ANALYSIS_CALLS_PER_MINUTE", 60)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// LoadWatch は watch サブコマンド用の設定を読み込む。
// WATCH_EMAILはログインに使用するため必須。
func LoadWatch() (*WatchConfig, error) {
	loadDotEnv()

	cfg := &WatchConfig{
		APIBaseURL:      strings.TrimRight(getEnvString("API_BASE_URL", "http://localhost:8080"), "/"),
		Email:           os.Getenv("WATCH_EMAIL"),
		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 30*time.Second),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
	}
	if cfg.Email == "" {
		return nil, fmt.Errorf("required environment variables are not set: [WATCH_EMAIL]")
	}
	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvDuration は期間を読み込む。解析できない値や0以下の値はデフォルト値に置き換える。
// 間隔はtime.NewTickerに渡すため正の値でなければならない。
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
