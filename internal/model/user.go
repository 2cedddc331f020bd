// Package model はドメインモデルを定義する。
package model

import "time"

// User はマッチングに参加するファウンダーを表す。
// XP・レベル・バッジはゲーミフィケーションの状態を保持する。
type User struct {
	ID            string
	Email         string
	Name          string
	Company       string
	Role          string
	Bio           string
	Skills        []Skill
	XP            int
	Level         int
	Badges        []string
	TotalCheckins int
	TotalMatches  int
	TotalChats    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Skill はラーニングから推定されたユーザーのスキルを表す。
type Skill struct {
	Label    string `json:"label"`
	Category string `json:"category"`
}

// UserStat はインクリメント可能なユーザー活動統計の列を表す。
type UserStat string

const (
	// StatTotalCheckins はチェックイン提出数。
	StatTotalCheckins UserStat = "total_checkins"
	// StatTotalMatches は承認したマッチ数。
	StatTotalMatches UserStat = "total_matches"
	// StatTotalChats は確定したコーヒーチャット数。
	StatTotalChats UserStat = "total_chats"
)

// SessionKind はセッションの種別を表す。
type SessionKind string

const (
	// SessionKindUser はファウンダーのログインセッション。
	SessionKindUser SessionKind = "user"
	// SessionKindAdmin は管理ダッシュボードのセッション。UserIDを持たない。
	SessionKindAdmin SessionKind = "admin"
)

// Session はログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	Kind      SessionKind
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Progress はユーザーのゲーミフィケーション状態（XP・レベル・バッジ）。
type Progress struct {
	XP     int
	Level  int
	Badges []string
}
