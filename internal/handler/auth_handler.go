package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/founderhub/internal/auth"
	"github.com/hitoshi/founderhub/internal/middleware"
	"github.com/hitoshi/founderhub/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, in auth.LoginInput) (*model.Session, *model.User, error)
	AdminLogin(ctx context.Context, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type loginRequest struct {
	Email   string `json:"email" validate:"required,email,max=254"`
	Name    string `json:"name" validate:"max=100"`
	Company string `json:"company" validate:"max=100"`
}

type loginResponse struct {
	Success bool          `json:"success"`
	User    *userResponse `json:"user"`
}

type adminLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

type currentUserResponse struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Login はメールアドレスでログインする。未登録の場合はアカウントを作成する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	session, user, err := h.service.Login(r.Context(), auth.LoginInput{
		Email:   req.Email,
		Name:    req.Name,
		Company: req.Company,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID, h.config.SessionMaxAge)
	writeJSON(w, http.StatusOK, loginResponse{Success: true, User: toUserResponse(user)})
}

// Logout はセッションを破棄する。
// POST /logout と POST /admin/logout で共用する。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	h.setSessionCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

// AdminLogin は管理者パスワードを検証し、管理者セッションを発行する。
// POST /admin/login
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.AdminLogin(r.Context(), req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID, h.config.SessionMaxAge)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// CurrentUser は現在のログインユーザーを返す。
// GET /api/current-user
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.CurrentUser(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, currentUserResponse{UserID: user.ID, UserName: user.Name})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
