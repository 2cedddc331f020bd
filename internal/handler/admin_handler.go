package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/founderhub/internal/admin"
	"github.com/hitoshi/founderhub/internal/matching"
	"github.com/hitoshi/founderhub/internal/repository"
	"github.com/hitoshi/founderhub/internal/scheduling"
)

// AdminServiceInterface は管理ダッシュボードハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	Stats(ctx context.Context) (*repository.DashboardStats, error)
	Needs(ctx context.Context) ([]admin.NeedView, error)
	Learnings(ctx context.Context) ([]admin.LearningView, error)
	Matches(ctx context.Context) ([]matching.MatchView, error)
	CoffeeChats(ctx context.Context) ([]scheduling.ChatView, error)
}

// AdminHandler は管理ダッシュボード向けの読み取り専用HTTPハンドラー。
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

type dashboardStatsResponse struct {
	TotalUsers         int            `json:"total_users"`
	TotalNeeds         int            `json:"total_needs"`
	TotalLearnings     int            `json:"total_learnings"`
	TotalMatches       int            `json:"total_matches"`
	PendingMatches     int            `json:"pending_matches"`
	TotalChats         int            `json:"total_chats"`
	ConfirmedChats     int            `json:"confirmed_chats"`
	NeedCategories     map[string]int `json:"need_categories"`
	LearningCategories map[string]int `json:"learning_categories"`
}

// Stats はダッシュボードの集計値を返す。
// GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := dashboardStatsResponse{
		TotalUsers:         stats.TotalUsers,
		TotalNeeds:         stats.TotalNeeds,
		TotalLearnings:     stats.TotalLearnings,
		TotalMatches:       stats.TotalMatches,
		PendingMatches:     stats.PendingMatches,
		TotalChats:         stats.TotalChats,
		ConfirmedChats:     stats.ConfirmedChats,
		NeedCategories:     stats.NeedCategories,
		LearningCategories: stats.LearningCategories,
	}
	if resp.NeedCategories == nil {
		resp.NeedCategories = map[string]int{}
	}
	if resp.LearningCategories == nil {
		resp.LearningCategories = map[string]int{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Needs はactiveなニーズを持ち主付きで返す。
// GET /api/admin/needs
func (h *AdminHandler) Needs(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.Needs(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"needs": toNeedViews(views)})
}

// Learnings はactiveなラーニングを持ち主付きで返す。
// GET /api/admin/learnings
func (h *AdminHandler) Learnings(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.Learnings(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"learnings": toLearningViews(views)})
}

// Matches は全マッチを返す。
// GET /api/admin/matches
func (h *AdminHandler) Matches(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.Matches(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchListResponse{Matches: toMatchResponses(views)})
}

// CoffeeChats は全コーヒーチャットを返す。
// GET /api/admin/coffee-chats
func (h *AdminHandler) CoffeeChats(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.CoffeeChats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatListResponse{CoffeeChats: toChatResponses(views)})
}
