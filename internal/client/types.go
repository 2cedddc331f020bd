package client

import (
	"time"

	"github.com/hitoshi/founderhub/internal/model"
)

// User はAPIが返すユーザー。
type User struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Company       string        `json:"company"`
	Role          string        `json:"role"`
	Bio           string        `json:"bio"`
	Skills        []model.Skill `json:"skills"`
	XP            int           `json:"xp"`
	Level         int           `json:"level"`
	Badges        []string      `json:"badges"`
	TotalCheckins int           `json:"total_checkins"`
	TotalMatches  int           `json:"total_matches"`
	TotalChats    int           `json:"total_chats"`
	CreatedAt     time.Time     `json:"created_at"`
}

// CurrentUser はセッションに紐づくユーザー。
type CurrentUser struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Entry はニーズまたはラーニング。
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Label     string    `json:"label"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	User      *User     `json:"user,omitempty"`
}

// Match はマッチ。一覧の種類に応じてRequesterかExpertが設定される。
type Match struct {
	ID           string            `json:"id"`
	NeedID       string            `json:"need_id"`
	NeedUserID   string            `json:"need_user_id"`
	ExpertUserID string            `json:"expert_user_id"`
	Score        float64           `json:"score"`
	Reason       string            `json:"reason"`
	Status       model.MatchStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	Need         *Entry            `json:"need,omitempty"`
	Requester    *User             `json:"requester,omitempty"`
	Expert       *User             `json:"expert,omitempty"`
}

// Slot はコーヒーチャットの候補日時。
type Slot struct {
	ID           string           `json:"id"`
	CoffeeChatID string           `json:"coffee_chat_id"`
	ProposedBy   string           `json:"proposed_by"`
	SlotTime     time.Time        `json:"slot_time"`
	Status       model.SlotStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

// CoffeeChat はコーヒーチャット。
type CoffeeChat struct {
	ID              string           `json:"id"`
	MatchID         string           `json:"match_id"`
	RequesterID     string           `json:"requester_id"`
	ExpertID        string           `json:"expert_id"`
	Status          model.ChatStatus `json:"status"`
	ScheduledTime   *time.Time       `json:"scheduled_time"`
	DurationMinutes int              `json:"duration_minutes"`
	MeetingLink     *string          `json:"meeting_link"`
	ProposedSlots   []Slot           `json:"proposed_slots"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Requester       *User            `json:"requester,omitempty"`
	Expert          *User            `json:"expert,omitempty"`
}

// AcceptResult はマッチ承認の結果。
type AcceptResult struct {
	Message    string      `json:"message"`
	CoffeeChat *CoffeeChat `json:"coffee_chat"`
	XPGained   int         `json:"xp_gained"`
}

// Confirmation は候補選択の結果。ミーティングリンクは選択と同時に返る。
type Confirmation struct {
	Message       string    `json:"message"`
	ScheduledTime time.Time `json:"scheduled_time"`
	MeetingLink   string    `json:"meeting_link"`
}

// CheckinMatch はチェックイン結果に含まれるマッチ。
type CheckinMatch struct {
	MatchID string            `json:"match_id"`
	Expert  *User             `json:"expert"`
	Score   float64           `json:"score"`
	Reason  string            `json:"reason"`
	Status  model.MatchStatus `json:"status"`
}

// CheckinResult はチェックインの結果。
type CheckinResult struct {
	Summary   string         `json:"summary"`
	Needs     []Entry        `json:"needs"`
	Learnings []Entry        `json:"learnings"`
	Skills    []model.Skill  `json:"skills"`
	Matches   []CheckinMatch `json:"matches"`
	XPGained  int            `json:"xp_gained"`
	TotalXP   int            `json:"total_xp"`
	Level     int            `json:"level"`
	LeveledUp bool           `json:"leveled_up"`
	NewBadges []string       `json:"new_badges"`
}

// ProfileDetails はプロフィール画面向けの集計値。
type ProfileDetails struct {
	NeedsCount         int     `json:"needs_count"`
	LearningsCount     int     `json:"learnings_count"`
	XPProgress         int     `json:"xp_progress"`
	XPNeeded           int     `json:"xp_needed"`
	ProgressPercentage float64 `json:"progress_percentage"`
	NextLevel          int     `json:"next_level"`
}

// Profile はユーザー情報とプロフィール集計値。
type Profile struct {
	User
	Profile ProfileDetails `json:"profile"`
}

// CategoryCount はカテゴリ別の件数。
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ActiveUser は直近の活動量が多いユーザー。
type ActiveUser struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ActivityScore int    `json:"activity_score"`
	Level         int    `json:"level"`
	XP            int    `json:"xp"`
}

// CommunityStats はコミュニティ全体の集計値。
type CommunityStats struct {
	TotalUsers        int             `json:"total_users"`
	NewUsersThisWeek  int             `json:"new_users_this_week"`
	NeedsThisWeek     int             `json:"needs_this_week"`
	LearningsThisWeek int             `json:"learnings_this_week"`
	MatchesThisWeek   int             `json:"matches_this_week"`
	ChatsThisWeek     int             `json:"chats_this_week"`
	TopSkills         []CategoryCount `json:"top_skills"`
	MostActiveUsers   []ActiveUser    `json:"most_active_users"`
	TotalXPAwarded    int             `json:"total_xp_awarded"`
}

// DashboardStats は管理ダッシュボードの集計値。
type DashboardStats struct {
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
