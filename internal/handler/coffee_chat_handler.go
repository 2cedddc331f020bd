package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/scheduling"
)

// CoffeeChatServiceInterface はコーヒーチャットハンドラーが必要とするサービスインターフェース。
type CoffeeChatServiceInterface interface {
	ListForUser(ctx context.Context, userID string) ([]scheduling.ChatView, error)
	ProposeSlots(ctx context.Context, userID, chatID string, times []time.Time) (*model.CoffeeChat, error)
	SelectSlot(ctx context.Context, userID, chatID, slotID string) (*scheduling.Confirmation, error)
	Complete(ctx context.Context, userID, chatID string) (*model.CoffeeChat, error)
	Cancel(ctx context.Context, userID, chatID string) (*model.CoffeeChat, error)
}

// CoffeeChatHandler はコーヒーチャットの日程調整のHTTPハンドラー。
type CoffeeChatHandler struct {
	service CoffeeChatServiceInterface
}

// NewCoffeeChatHandler はCoffeeChatHandlerを生成する。
func NewCoffeeChatHandler(service CoffeeChatServiceInterface) *CoffeeChatHandler {
	return &CoffeeChatHandler{service: service}
}

type chatListResponse struct {
	CoffeeChats []*chatResponse `json:"coffee_chats"`
}

// proposeSlotsRequest の候補日時はISO-8601（RFC 3339）文字列。件数と時刻の検証はサービス層で行う。
type proposeSlotsRequest struct {
	Slots []time.Time `json:"slots" validate:"required,max=10"`
}

type proposeSlotsResponse struct {
	Message string         `json:"message"`
	Slots   []slotResponse `json:"slots"`
}

type selectSlotRequest struct {
	SlotID string `json:"slot_id" validate:"required"`
}

type selectSlotResponse struct {
	Message       string    `json:"message"`
	ScheduledTime time.Time `json:"scheduled_time"`
	MeetingLink   string    `json:"meeting_link"`
}

type chatStatusResponse struct {
	Message string           `json:"message"`
	Status  model.ChatStatus `json:"status"`
}

// List はユーザーが参加しているコーヒーチャット一覧を返す。
// GET /api/coffee-chats/{userId}
func (h *CoffeeChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSelf(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	views, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatListResponse{CoffeeChats: toChatResponses(views)})
}

// ProposeSlots はエキスパートが3件の候補日時を提案する。
// POST /api/coffee-chats/{id}/propose-slots
func (h *CoffeeChatHandler) ProposeSlots(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}

	var req proposeSlotsRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	chat, err := h.service.ProposeSlots(r.Context(), userID, chi.URLParam(r, "id"), req.Slots)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := toChatResponse(chat, nil, nil)
	writeJSON(w, http.StatusOK, proposeSlotsResponse{
		Message: "候補日時を提案しました。",
		Slots:   resp.ProposedSlots,
	})
}

// SelectSlot はリクエスターが候補日時を選択し、確定した日時とミーティングリンクを返す。
// POST /api/coffee-chats/{id}/select-slot
func (h *CoffeeChatHandler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}

	var req selectSlotRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	conf, err := h.service.SelectSlot(r.Context(), userID, chi.URLParam(r, "id"), req.SlotID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, selectSlotResponse{
		Message:       "日時が確定しました。",
		ScheduledTime: conf.ScheduledTime.UTC(),
		MeetingLink:   conf.MeetingLink,
	})
}

// Complete はコーヒーチャットを完了にする。完了済みへの再送は成功として扱う。
// POST /api/coffee-chats/{id}/complete
func (h *CoffeeChatHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Complete, "コーヒーチャットを完了にしました。")
}

// Cancel はコーヒーチャットをキャンセルする。
// POST /api/coffee-chats/{id}/cancel
func (h *CoffeeChatHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel, "コーヒーチャットをキャンセルしました。")
}

func (h *CoffeeChatHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, userID, chatID string) (*model.CoffeeChat, error),
	message string,
) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}

	chat, err := apply(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatStatusResponse{Message: message, Status: chat.Status})
}
