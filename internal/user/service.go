// Package user はプロフィール、リーダーボード、コミュニティ統計のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/founderhub/internal/gamification"
	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/repository"
	"github.com/hitoshi/founderhub/internal/security"
)

const (
	// DefaultLeaderboardLimit はlimit未指定時のリーダーボード件数。
	DefaultLeaderboardLimit = 10
	// MaxLeaderboardLimit はリーダーボードで指定できる件数の上限。
	MaxLeaderboardLimit = 100
	// communityWindow はコミュニティ統計の集計期間。
	communityWindow = 7 * 24 * time.Hour
)

// EntryCounter はユーザーのニーズ数・ラーニング数を数えるインターフェース。
type EntryCounter interface {
	CountByUser(ctx context.Context, userID string) (needs, learnings int, err error)
}

// Profile はプロフィール画面向けのユーザー情報。
type Profile struct {
	User           *model.User
	Progress       gamification.Progression
	NeedsCount     int
	LearningsCount int
}

// Service はユーザー管理のサービス層。
type Service struct {
	users     repository.UserRepository
	entries   EntryCounter
	stats     repository.StatsRepository
	sanitizer security.TextSanitizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	users repository.UserRepository,
	entries EntryCounter,
	stats repository.StatsRepository,
	sanitizer security.TextSanitizer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:     users,
		entries:   entries,
		stats:     stats,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// List は全ユーザーを返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Get は指定IDのユーザーを返す。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return user, nil
}

// Profile はレベル進捗とニーズ・ラーニング件数を含むプロフィールを返す。
func (s *Service) Profile(ctx context.Context, id string) (*Profile, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	needs, learnings, err := s.entries.CountByUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ニーズ・ラーニング件数の取得に失敗しました: %w", err)
	}

	return &Profile{
		User:           user,
		Progress:       gamification.ProgressFor(user.XP, user.Level),
		NeedsCount:     needs,
		LearningsCount: learnings,
	}, nil
}

// UpdateBio は自己紹介文を更新する。本人のプロフィールのみ更新できる。
// HTMLタグは除去して保存する。
func (s *Service) UpdateBio(ctx context.Context, sessionUserID, id, bio string) (*model.User, error) {
	if sessionUserID != id {
		return nil, model.NewForbiddenError("他のユーザーのプロフィールは更新できません")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	if err := s.users.UpdateBio(ctx, id, s.sanitizer.Sanitize(bio)); err != nil {
		return nil, fmt.Errorf("自己紹介文の更新に失敗しました: %w", err)
	}

	s.logger.InfoContext(ctx, "bio updated", slog.String("user_id", id))
	return s.Get(ctx, id)
}

// Leaderboard はXPの上位ユーザーを返す。limitが0以下の場合は既定値を使用する。
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	limit = min(limit, MaxLeaderboardLimit)

	users, err := s.users.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("リーダーボードの取得に失敗しました: %w", err)
	}
	return users, nil
}

// CommunityStats は直近7日間のコミュニティ統計を返す。
func (s *Service) CommunityStats(ctx context.Context) (*repository.CommunityStats, error) {
	stats, err := s.stats.Community(ctx, s.now().Add(-communityWindow))
	if err != nil {
		return nil, fmt.Errorf("コミュニティ統計の取得に失敗しました: %w", err)
	}
	return stats, nil
}
