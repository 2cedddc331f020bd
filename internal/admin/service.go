// Package admin は管理ダッシュボード向けの集計と一覧を提供する。
package admin

import (
	"context"
	"fmt"

	"github.com/hitoshi/founderhub/internal/matching"
	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/repository"
	"github.com/hitoshi/founderhub/internal/scheduling"
)

// EntryLister はactiveなニーズ・ラーニングを取得するインターフェース。
type EntryLister interface {
	ListActiveNeeds(ctx context.Context) ([]*model.Need, error)
	ListActiveLearnings(ctx context.Context) ([]*model.Learning, error)
}

// UserLookup は複数ユーザーをまとめて取得するインターフェース。
type UserLookup interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
}

// MatchLister は全マッチを取得するインターフェース。
type MatchLister interface {
	ListAll(ctx context.Context) ([]matching.MatchView, error)
}

// ChatLister は全コーヒーチャットを取得するインターフェース。
type ChatLister interface {
	ListAll(ctx context.Context) ([]scheduling.ChatView, error)
}

// NeedView は持ち主の情報を付与したニーズ。
type NeedView struct {
	Need *model.Need
	User *model.User
}

// LearningView は持ち主の情報を付与したラーニング。
type LearningView struct {
	Learning *model.Learning
	User     *model.User
}

// Service は管理ダッシュボードのサービス層。
type Service struct {
	stats   repository.StatsRepository
	entries EntryLister
	users   UserLookup
	matches MatchLister
	chats   ChatLister
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(stats repository.StatsRepository, entries EntryLister, users UserLookup, matches MatchLister, chats ChatLister) *Service {
	return &Service{
		stats:   stats,
		entries: entries,
		users:   users,
		matches: matches,
		chats:   chats,
	}
}

// Stats はダッシュボードの集計値を返す。
func (s *Service) Stats(ctx context.Context) (*repository.DashboardStats, error) {
	stats, err := s.stats.Dashboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("ダッシュボード集計の取得に失敗しました: %w", err)
	}
	return stats, nil
}

// Needs は全activeニーズを持ち主の情報付きで返す。
func (s *Service) Needs(ctx context.Context) ([]NeedView, error) {
	needs, err := s.entries.ListActiveNeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("ニーズ一覧の取得に失敗しました: %w", err)
	}

	ids := make([]string, len(needs))
	for i, n := range needs {
		ids[i] = n.UserID
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	views := make([]NeedView, len(needs))
	for i, n := range needs {
		views[i] = NeedView{Need: n, User: users[n.UserID]}
	}
	return views, nil
}

// Learnings は全activeラーニングを持ち主の情報付きで返す。
func (s *Service) Learnings(ctx context.Context) ([]LearningView, error) {
	learnings, err := s.entries.ListActiveLearnings(ctx)
	if err != nil {
		return nil, fmt.Errorf("ラーニング一覧の取得に失敗しました: %w", err)
	}

	ids := make([]string, len(learnings))
	for i, l := range learnings {
		ids[i] = l.UserID
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	views := make([]LearningView, len(learnings))
	for i, l := range learnings {
		views[i] = LearningView{Learning: l, User: users[l.UserID]}
	}
	return views, nil
}

// Matches は全マッチを返す。
func (s *Service) Matches(ctx context.Context) ([]matching.MatchView, error) {
	return s.matches.ListAll(ctx)
}

// CoffeeChats は全コーヒーチャットを返す。
func (s *Service) CoffeeChats(ctx context.Context) ([]scheduling.ChatView, error) {
	return s.chats.ListAll(ctx)
}
