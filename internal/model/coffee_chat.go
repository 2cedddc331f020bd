package model

import "time"

// ChatStatus はコーヒーチャットの状態を表す。
type ChatStatus string

const (
	// ChatStatusPendingSlots はエキスパートの候補日時提案待ち。
	ChatStatusPendingSlots ChatStatus = "pending_slots"
	// ChatStatusPendingConfirmation はリクエスターの候補選択待ち。
	ChatStatusPendingConfirmation ChatStatus = "pending_confirmation"
	// ChatStatusConfirmed は日時とミーティングリンクが確定済み。
	ChatStatusConfirmed ChatStatus = "confirmed"
	// ChatStatusCompleted は実施済み。終端状態。
	ChatStatusCompleted ChatStatus = "completed"
	// ChatStatusCancelled はキャンセル済み。終端状態。
	ChatStatusCancelled ChatStatus = "cancelled"
)

// IsTerminal は終端状態かどうかを返す。
func (s ChatStatus) IsTerminal() bool {
	return s == ChatStatusCompleted || s == ChatStatusCancelled
}

// SlotStatus は候補日時の状態を表す。
type SlotStatus string

const (
	// SlotStatusPending は選択待ち。
	SlotStatusPending SlotStatus = "pending"
	// SlotStatusSelected はリクエスターが選択した候補。
	SlotStatusSelected SlotStatus = "selected"
	// SlotStatusRejected は他の候補が選択されたことで暗黙的に却下された候補。
	SlotStatusRejected SlotStatus = "rejected"
)

// RequiredSlotCount は1回の提案で必要な候補日時の数。
const RequiredSlotCount = 3

// DefaultChatDurationMinutes はコーヒーチャットの標準時間（分）。
const DefaultChatDurationMinutes = 30

// CoffeeChat はマッチしたリクエスターとエキスパートの日程調整ワークフローを表す。
type CoffeeChat struct {
	ID              string
	MatchID         string
	RequesterID     string
	ExpertID        string
	Status          ChatStatus
	ScheduledTime   *time.Time
	DurationMinutes int
	MeetingLink     *string
	ProposedSlots   []ProposedSlot
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsParticipant は指定ユーザーがチャットの参加者かどうかを返す。
func (c *CoffeeChat) IsParticipant(userID string) bool {
	return userID != "" && (c.RequesterID == userID || c.ExpertID == userID)
}

// ProposedSlot はエキスパートが提案した候補日時を表す。
type ProposedSlot struct {
	ID           string
	CoffeeChatID string
	ProposedBy   string
	SlotTime     time.Time
	Status       SlotStatus
	CreatedAt    time.Time
}
