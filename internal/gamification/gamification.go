// Package gamification はXP・レベル・バッジの計算と付与を提供する。
package gamification

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/hitoshi/founderhub/internal/model"
)

// XP付与量
const (
	XPCheckin         = 10
	XPMatchAccepted   = 10
	XPChatAsRequester = 10
	XPChatAsExpert    = 20
)

// Badge はXPの閾値に到達すると付与されるバッジ。
type Badge struct {
	Name      string
	Threshold int
}

// Badges は付与順に並んだバッジ定義。
var Badges = []Badge{
	{Name: "First Steps", Threshold: 100},
	{Name: "Rising Star", Threshold: 500},
	{Name: "Community Leader", Threshold: 1000},
}

// LevelForXP はXPからレベルを算出する。
// レベルnに必要な累計XPは25(n-1)(n+2)で、1→2は100、2→3は150と50ずつ増える。
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	level := int(math.Floor((-1 + math.Sqrt(225+4*float64(xp))/5) / 2))
	return max(level, 1)
}

// XPForLevel はレベルに到達するために必要な累計XPを返す。
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return 25 * (level - 1) * (level + 2)
}

// XPNeededForNext は現在のレベルから次のレベルまでに必要なXPを返す。
func XPNeededForNext(level int) int {
	return 50 + 50*level
}

// Advance はamountのXPを加算した後の状態と、新たに獲得したバッジを返す。
// 既に所持しているバッジは重複して付与しない。
func Advance(p model.Progress, amount int) (model.Progress, []string) {
	next := model.Progress{
		XP:     p.XP + amount,
		Badges: slices.Clone(p.Badges),
	}
	next.Level = LevelForXP(next.XP)

	var earned []string
	for _, b := range Badges {
		if next.XP >= b.Threshold && !slices.Contains(next.Badges, b.Name) {
			next.Badges = append(next.Badges, b.Name)
			earned = append(earned, b.Name)
		}
	}
	return next, earned
}

// Progression はプロフィール画面に表示するレベル進捗。
type Progression struct {
	XPProgress         int
	XPNeeded           int
	ProgressPercentage float64
	NextLevel          int
}

// ProgressFor は現在のレベル内での進捗を算出する。
// 割合は小数第1位に丸める。
func ProgressFor(xp, level int) Progression {
	level = max(level, 1)
	needed := XPNeededForNext(level)
	progress := xp - XPForLevel(level)
	pct := float64(progress) / float64(needed) * 100
	return Progression{
		XPProgress:         progress,
		XPNeeded:           needed,
		ProgressPercentage: math.Round(pct*10) / 10,
		NextLevel:          level + 1,
	}
}

// Result はXP付与の結果。
type Result struct {
	XPGained  int
	TotalXP   int
	Level     int
	LeveledUp bool
	NewBadges []string
}

// ProgressUpdater はユーザーのXP状態を排他的に更新するインターフェース。
type ProgressUpdater interface {
	UpdateProgress(ctx context.Context, id string, apply func(model.Progress) model.Progress) (before, after model.Progress, err error)
}

// Service はXP付与を行うサービス。
type Service struct {
	users  ProgressUpdater
	logger *slog.Logger
}

// NewService はServiceを生成する。
func NewService(users ProgressUpdater, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, logger: logger}
}

// Award はユーザーにXPを付与し、レベルとバッジを更新する。
func (s *Service) Award(ctx context.Context, userID string, amount int, reason string) (*Result, error) {
	var earned []string
	before, after, err := s.users.UpdateProgress(ctx, userID, func(p model.Progress) model.Progress {
		next, badges := Advance(p, amount)
		earned = badges
		return next
	})
	if err != nil {
		return nil, fmt.Errorf("failed to award xp to %s: %w", userID, err)
	}

	if earned == nil {
		earned = []string{}
	}
	result := &Result{
		XPGained:  amount,
		TotalXP:   after.XP,
		Level:     after.Level,
		LeveledUp: after.Level > before.Level,
		NewBadges: earned,
	}

	s.logger.InfoContext(ctx, "xp awarded",
		slog.String("user_id", userID),
		slog.Int("amount", amount),
		slog.String("reason", reason),
		slog.Int("total_xp", result.TotalXP),
		slog.Int("level", result.Level),
		slog.Bool("leveled_up", result.LeveledUp),
	)
	return result, nil
}
