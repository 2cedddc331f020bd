package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/founderhub/internal/matching"
)

// MatchServiceInterface はマッチハンドラーが必要とするサービスインターフェース。
type MatchServiceInterface interface {
	ListForRequester(ctx context.Context, userID string) ([]matching.MatchView, error)
	ListForExpert(ctx context.Context, userID string) ([]matching.MatchView, error)
	Accept(ctx context.Context, userID, matchID string) (*matching.AcceptResult, error)
	Decline(ctx context.Context, userID, matchID string) error
}

// MatchHandler はマッチのHTTPハンドラー。
type MatchHandler struct {
	service MatchServiceInterface
}

// NewMatchHandler はMatchHandlerを生成する。
func NewMatchHandler(service MatchServiceInterface) *MatchHandler {
	return &MatchHandler{service: service}
}

type matchListResponse struct {
	Matches []matchResponse `json:"matches"`
}

type acceptResponse struct {
	Message    string        `json:"message"`
	CoffeeChat *chatResponse `json:"coffee_chat"`
	XPGained   int           `json:"xp_gained"`
}

// ListForRequester はリクエスターとしてのマッチ一覧を返す。
// GET /api/matches/{userId}
func (h *MatchHandler) ListForRequester(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSelf(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	views, err := h.service.ListForRequester(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchListResponse{Matches: toMatchResponses(views)})
}

// ListForExpert はエキスパートとしてのマッチ一覧をスキルで絞り込んで返す。
// GET /api/matches/expert/{userId}
func (h *MatchHandler) ListForExpert(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSelf(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	views, err := h.service.ListForExpert(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchListResponse{Matches: toMatchResponses(views)})
}

// Accept はマッチを承認し、作成されたコーヒーチャットを返す。
// POST /api/matches/{id}/accept
func (h *MatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}

	result, err := h.service.Accept(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acceptResponse{
		Message:    "マッチを承認しました。候補日時を提案してください。",
		CoffeeChat: toChatResponse(result.Chat, nil, nil),
		XPGained:   result.XPGained,
	})
}

// Decline はマッチを辞退する。
// POST /api/matches/{id}/decline
func (h *MatchHandler) Decline(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Decline(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "マッチを辞退しました。"})
}
