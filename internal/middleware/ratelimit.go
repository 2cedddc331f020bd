package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/founderhub/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralPerMinute int           // API全般の上限（req/min/user）
	CheckinPerMinute int           // チェックイン送信・抽出テストの上限（req/min/user）
	CleanupInterval  time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、チェックイン 10 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralPerMinute: 120,
		CheckinPerMinute: 10,
		CleanupInterval:  5 * time.Minute,
	}
}

type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はキー（ユーザーIDまたはクライアントIP）ごとのトークンバケット集合。
type limiterSet struct {
	name  string
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*keyedLimiter
}

func newLimiterSet(name string, perMinute int) *limiterSet {
	if perMinute < 1 {
		perMinute = 1
	}
	return &limiterSet{
		name:     name,
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		limiters: make(map[string]*keyedLimiter),
	}
}

func (s *limiterSet) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kl, ok := s.limiters[key]; ok {
		kl.lastAccess = now
		return kl.limiter
	}
	limiter := rate.NewLimiter(s.limit, s.burst)
	s.limiters[key] = &keyedLimiter{limiter: limiter, lastAccess: now}
	return limiter
}

func (s *limiterSet) evictIdle(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, kl := range s.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// middleware はユーザーIDをキーにレート制限する。未認証リクエストはクライアントIPで数える。
func (s *limiterSet) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := UserIDFromContext(r.Context())
		if err != nil {
			key = "ip:" + clientIP(r)
		}

		if !s.get(key, time.Now()).Allow() {
			slog.Warn("rate limit exceeded",
				slog.String("key", key),
				slog.String("limit_type", s.name),
			)
			writeRateLimitResponse(w, s.limit)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimiter はAPI全般とチェックインの2種類のレート制限を管理する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterSet
	checkin *limiterSet

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}
	rl := &RateLimiter{
		config:  config,
		general: newLimiterSet("general", config.GeneralPerMinute),
		checkin: newLimiterSet("checkin", config.CheckinPerMinute),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.general.middleware
}

// CheckinMiddleware はチェックイン系エンドポイント専用のレート制限ミドルウェアを返す。
// 分析サービスへの呼び出しを伴うため、API全般より厳しい上限を独立に適用する。
func (rl *RateLimiter) CheckinMiddleware() func(next http.Handler) http.Handler {
	return rl.checkin.middleware
}

// GeneralLimiterCount は管理中のAPI全般リミッター数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// CheckinLimiterCount は管理中のチェックインリミッター数を返す。
func (rl *RateLimiter) CheckinLimiterCount() int {
	return rl.checkin.len()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.evictIdle(now, ttl)
	rl.checkin.evictIdle(now, ttl)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが1つ補充されるまでの秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
