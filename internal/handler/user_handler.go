package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/repository"
	"github.com/hitoshi/founderhub/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context) ([]*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	Profile(ctx context.Context, id string) (*user.Profile, error)
	UpdateBio(ctx context.Context, sessionUserID, id, bio string) (*model.User, error)
	Leaderboard(ctx context.Context, limit int) ([]*model.User, error)
	CommunityStats(ctx context.Context) (*repository.CommunityStats, error)
}

// UserHandler はユーザー・コミュニティ情報のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

type userListResponse struct {
	Users []*userResponse `json:"users"`
}

type skillsResponse struct {
	UserID string        `json:"user_id"`
	Skills []model.Skill `json:"skills"`
}

type profileBlock struct {
	NeedsCount         int     `json:"needs_count"`
	LearningsCount     int     `json:"learnings_count"`
	XPProgress         int     `json:"xp_progress"`
	XPNeeded           int     `json:"xp_needed"`
	ProgressPercentage float64 `json:"progress_percentage"`
	NextLevel          int     `json:"next_level"`
}

type profileResponse struct {
	*userResponse
	Profile profileBlock `json:"profile"`
}

type updateProfileRequest struct {
	Bio string `json:"bio" validate:"max=2000"`
}

type leaderboardResponse struct {
	Leaderboard []*userResponse `json:"leaderboard"`
}

type categoryCountResponse struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type activeUserResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ActivityScore int    `json:"activity_score"`
	Level         int    `json:"level"`
	XP            int    `json:"xp"`
}

type communityStatsResponse struct {
	TotalUsers        int                     `json:"total_users"`
	NewUsersThisWeek  int                     `json:"new_users_this_week"`
	NeedsThisWeek     int                     `json:"needs_this_week"`
	LearningsThisWeek int                     `json:"learnings_this_week"`
	MatchesThisWeek   int                     `json:"matches_this_week"`
	ChatsThisWeek     int                     `json:"chats_this_week"`
	TopSkills         []categoryCountResponse `json:"top_skills"`
	MostActiveUsers   []activeUserResponse    `json:"most_active_users"`
	TotalXPAwarded    int                     `json:"total_xp_awarded"`
}

// List は全ユーザーを返す。
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userListResponse{Users: toUserResponses(users)})
}

// Get は指定ユーザーを返す。
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Skills はユーザーの推定スキルを返す。
// GET /api/users/{id}/skills
func (h *UserHandler) Skills(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := toUserResponse(u)
	writeJSON(w, http.StatusOK, skillsResponse{UserID: resp.ID, Skills: resp.Skills})
}

// Profile はレベル進捗を含むプロフィールを返す。
// GET /api/users/{id}/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		userResponse: toUserResponse(p.User),
		Profile: profileBlock{
			NeedsCount:         p.NeedsCount,
			LearningsCount:     p.LearningsCount,
			XPProgress:         p.Progress.XPProgress,
			XPNeeded:           p.Progress.XPNeeded,
			ProgressPercentage: p.Progress.ProgressPercentage,
			NextLevel:          p.Progress.NextLevel,
		},
	})
}

// UpdateProfile は自己紹介文を更新する。
// PUT /api/users/{id}/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	u, err := h.service.UpdateBio(r.Context(), userID, chi.URLParam(r, "id"), req.Bio)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Leaderboard はXP上位のユーザーを返す。
// GET /api/leaderboard?limit=N
func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			handleServiceError(w, model.NewInvalidRequestError("limitは整数で指定してください"))
			return
		}
		limit = n
	}

	users, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Leaderboard: toUserResponses(users)})
}

// CommunityStats は直近1週間のコミュニティ統計を返す。
// GET /api/community/stats
func (h *UserHandler) CommunityStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.CommunityStats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := communityStatsResponse{
		TotalUsers:        stats.TotalUsers,
		NewUsersThisWeek:  stats.NewUsersThisWeek,
		NeedsThisWeek:     stats.NeedsThisWeek,
		LearningsThisWeek: stats.LearningsThisWeek,
		MatchesThisWeek:   stats.MatchesThisWeek,
		ChatsThisWeek:     stats.ChatsThisWeek,
		TopSkills:         make([]categoryCountResponse, 0, len(stats.TopSkills)),
		MostActiveUsers:   make([]activeUserResponse, 0, len(stats.MostActiveUsers)),
		TotalXPAwarded:    stats.TotalXPAwarded,
	}
	for _, c := range stats.TopSkills {
		resp.TopSkills = append(resp.TopSkills, categoryCountResponse{Category: c.Category, Count: c.Count})
	}
	for _, u := range stats.MostActiveUsers {
		resp.MostActiveUsers = append(resp.MostActiveUsers, activeUserResponse{
			ID:            u.ID,
			Name:          u.Name,
			ActivityScore: u.ActivityScore,
			Level:         u.Level,
			XP:            u.XP,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
