package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/founderhub/internal/checkin"
	"github.com/hitoshi/founderhub/internal/model"
)

// CheckinServiceInterface はチェックインハンドラーが必要とするサービスインターフェース。
type CheckinServiceInterface interface {
	Submit(ctx context.Context, userID, text string) (*checkin.Result, error)
	TestExtraction(ctx context.Context, userID, text string) (model.Extraction, error)
}

// CheckinHandler はチェックインのHTTPハンドラー。
type CheckinHandler struct {
	service CheckinServiceInterface
}

// NewCheckinHandler はCheckinHandlerを生成する。
func NewCheckinHandler(service CheckinServiceInterface) *CheckinHandler {
	return &CheckinHandler{service: service}
}

type checkinRequest struct {
	Text string `json:"text" validate:"max=10000"`
}

type checkinMatchResponse struct {
	MatchID string            `json:"match_id"`
	Expert  *userResponse     `json:"expert"`
	Score   float64           `json:"score"`
	Reason  string            `json:"reason"`
	Status  model.MatchStatus `json:"status"`
}

type checkinResponse struct {
	Summary   string                 `json:"summary"`
	Needs     []*entryResponse       `json:"needs"`
	Learnings []*entryResponse       `json:"learnings"`
	Skills    []model.Skill          `json:"skills"`
	Matches   []checkinMatchResponse `json:"matches"`
	XPGained  int                    `json:"xp_gained"`
	TotalXP   int                    `json:"total_xp"`
	Level     int                    `json:"level"`
	LeveledUp bool                   `json:"leveled_up"`
	NewBadges []string               `json:"new_badges"`
}

// Submit はチェックイン本文を分析し、ニーズ・ラーニング・マッチ候補を登録する。
// POST /api/submit-checkin
func (h *CheckinHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}

	var req checkinRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Submit(r.Context(), userID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCheckinResponse(result))
}

// TestExtraction は保存せずに抽出結果のみを返す。
// POST /api/test-extraction
func (h *CheckinHandler) TestExtraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}

	var req checkinRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	extraction, err := h.service.TestExtraction(r.Context(), userID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, extraction)
}

func toCheckinResponse(result *checkin.Result) checkinResponse {
	resp := checkinResponse{
		Summary:   result.Summary(),
		Needs:     make([]*entryResponse, 0, len(result.Needs)),
		Learnings: make([]*entryResponse, 0, len(result.Learnings)),
		Skills:    result.Skills,
		Matches:   make([]checkinMatchResponse, 0, len(result.Matches)),
		XPGained:  result.XP.XPGained,
		TotalXP:   result.XP.TotalXP,
		Level:     result.XP.Level,
		LeveledUp: result.XP.LeveledUp,
		NewBadges: result.XP.NewBadges,
	}
	for _, n := range result.Needs {
		resp.Needs = append(resp.Needs, toNeedResponse(n, nil))
	}
	for _, l := range result.Learnings {
		resp.Learnings = append(resp.Learnings, toLearningResponse(l, nil))
	}
	for _, m := range result.Matches {
		resp.Matches = append(resp.Matches, checkinMatchResponse{
			MatchID: m.Match.ID,
			Expert:  toUserResponse(m.Expert),
			Score:   m.Match.Score,
			Reason:  m.Match.Reason,
			Status:  m.Match.Status,
		})
	}
	if resp.Skills == nil {
		resp.Skills = []model.Skill{}
	}
	if resp.NewBadges == nil {
		resp.NewBadges = []string{}
	}
	return resp
}
