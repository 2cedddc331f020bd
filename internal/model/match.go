package model

import "time"

// MatchStatus はマッチの状態を表す。
type MatchStatus string

const (
	// MatchStatusPending はエキスパートの応答待ち。
	MatchStatusPending MatchStatus = "pending"
	// MatchStatusAccepted はエキスパートが承認済み。コーヒーチャットが作成される。
	MatchStatusAccepted MatchStatus = "accepted"
	// MatchStatusDeclined はエキスパートが辞退済み。終端状態。
	MatchStatusDeclined MatchStatus = "declined"
)

// Match はリクエスターのニーズとエキスパートのスキルの組み合わせを表す。
// Scoreは外部のマッチングサービスが算出した値で、[0,1]に正規化して保存する。
type Match struct {
	ID           string
	NeedID       string
	NeedUserID   string
	ExpertUserID string
	Score        float64
	Reason       string
	Status       MatchStatus
	CreatedAt    time.Time
}

// MatchSuggestion は外部マッチングサービスから返されたマッチ候補。
type MatchSuggestion struct {
	NeedID       string  `json:"need_id"`
	ExpertUserID string  `json:"expert_user_id"`
	Score        float64 `json:"score"`
	Reason       string  `json:"reason"`
}

// ClampScore はスコアを[0,1]の範囲に丸める。
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
