package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/founderhub/internal/middleware"
	"github.com/hitoshi/founderhub/internal/model"
)

// RealtimeHub はWebSocket接続を受け付けるインターフェース。realtime.Hubが満たす。
type RealtimeHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string)
}

// Pinger はヘルスチェックでDB疎通を確認するインターフェース。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder

	AuthService       AuthServiceInterface
	AuthConfig        AuthHandlerConfig
	CheckinService    CheckinServiceInterface
	MatchService      MatchServiceInterface
	CoffeeChatService CoffeeChatServiceInterface
	UserService       UserServiceInterface
	AdminService      AdminServiceInterface

	Hub            RealtimeHub
	MetricsHandler http.Handler
	DB             Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → CSRF → Session → RateLimit
//
// ログイン系のルートはセッション検証の外に置き、クライアントIP単位でレート制限する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	csrfConfig := deps.CSRFConfig
	csrfConfig.ExemptPaths = append(csrfConfig.ExemptPaths, "/login", "/admin/login")

	r := chi.NewRouter()
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewCSRFMiddleware(csrfConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	checkinHandler := NewCheckinHandler(deps.CheckinService)
	matchHandler := NewMatchHandler(deps.MatchService)
	chatHandler := NewCoffeeChatHandler(deps.CoffeeChatService)
	userHandler := NewUserHandler(deps.UserService)
	adminHandler := NewAdminHandler(deps.AdminService)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/admin/login", authHandler.AdminLogin)
		r.Post("/admin/logout", authHandler.Logout)
		r.Get("/api/current-user", authHandler.CurrentUser)
	})

	// --- ファウンダーのセッションが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.CheckinMiddleware())
			r.Post("/api/submit-checkin", checkinHandler.Submit)
			r.Post("/api/test-extraction", checkinHandler.TestExtraction)
		})

		r.Route("/api/matches", func(r chi.Router) {
			r.Get("/expert/{id}", matchHandler.ListForExpert)
			r.Get("/{id}", matchHandler.ListForRequester)
			r.Post("/{id}/accept", matchHandler.Accept)
			r.Post("/{id}/decline", matchHandler.Decline)
		})

		r.Route("/api/coffee-chats", func(r chi.Router) {
			r.Get("/{id}", chatHandler.List)
			r.Post("/{id}/propose-slots", chatHandler.ProposeSlots)
			r.Post("/{id}/select-slot", chatHandler.SelectSlot)
			r.Post("/{id}/complete", chatHandler.Complete)
			r.Post("/{id}/cancel", chatHandler.Cancel)
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.Get)
				r.Get("/skills", userHandler.Skills)
				r.Get("/profile", userHandler.Profile)
				r.Put("/profile", userHandler.UpdateProfile)
			})
		})

		r.Get("/api/leaderboard", userHandler.Leaderboard)
		r.Get("/api/community/stats", userHandler.CommunityStats)

		if deps.Hub != nil {
			r.Get("/api/ws", wsHandler(deps.Hub))
		}
	})

	// --- 管理者セッションが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAdminSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/stats", adminHandler.Stats)
			r.Get("/needs", adminHandler.Needs)
			r.Get("/learnings", adminHandler.Learnings)
			r.Get("/matches", adminHandler.Matches)
			r.Get("/coffee-chats", adminHandler.CoffeeChats)
		})
	})

	return r
}

// wsHandler はセッションユーザーのWebSocket接続を開始する。
// GET /api/ws
func wsHandler(hub RealtimeHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := sessionUserID(w, r)
		if !ok {
			return
		}
		hub.ServeWS(w, r, userID)
	}
}

// healthHandler はプロセスとDBの疎通を返す。
// GET /health
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewInternalError())
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
