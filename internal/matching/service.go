// Package matching はマッチの一覧取得と、エキスパートによる承認・辞退を提供する。
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/founderhub/internal/gamification"
	"github.com/hitoshi/founderhub/internal/metrics"
	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/repository"
)

// UserStore はマッチングで使用するユーザー操作のインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
	IncrementStat(ctx context.Context, id string, stat model.UserStat, delta int) error
}

// NeedLookup はマッチに紐づくニーズを取得するインターフェース。
type NeedLookup interface {
	FindNeedsByIDs(ctx context.Context, ids []string) (map[string]*model.Need, error)
}

// ChatCreator は承認されたマッチからコーヒーチャットを作成するインターフェース。
type ChatCreator interface {
	CreateForMatch(ctx context.Context, match *model.Match) (*model.CoffeeChat, error)
}

// XPAwarder はXPを付与するインターフェース。
type XPAwarder interface {
	Award(ctx context.Context, userID string, amount int, reason string) (*gamification.Result, error)
}

// MatchView はニーズと相手ユーザーの情報を付与したマッチ。
// リクエスター向けの一覧ではExpert、エキスパート向けの一覧ではRequesterが設定される。
type MatchView struct {
	Match     *model.Match
	Need      *model.Need
	Requester *model.User
	Expert    *model.User
}

// AcceptResult はマッチ承認の結果。
type AcceptResult struct {
	Chat     *model.CoffeeChat
	XPGained int
}

// Service はマッチングのサービス層。
type Service struct {
	matches repository.MatchRepository
	needs   NeedLookup
	users   UserStore
	chats   ChatCreator
	xp      XPAwarder
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	matches repository.MatchRepository,
	needs NeedLookup,
	users UserStore,
	chats ChatCreator,
	xp XPAwarder,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		matches: matches,
		needs:   needs,
		users:   users,
		chats:   chats,
		xp:      xp,
		metrics: collector,
		logger:  logger,
	}
}

// ListForRequester はユーザーのニーズに対するマッチをスコア順に返す。
// エキスパートまたはニーズが既に存在しないマッチは除外する。
func (s *Service) ListForRequester(ctx context.Context, userID string) ([]MatchView, error) {
	matches, err := s.matches.ListByRequester(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("マッチ一覧の取得に失敗しました: %w", err)
	}

	needs, users, err := s.related(ctx, matches, func(m *model.Match) string { return m.ExpertUserID })
	if err != nil {
		return nil, err
	}

	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		expert, need := users[m.ExpertUserID], needs[m.NeedID]
		if expert == nil || need == nil {
			continue
		}
		views = append(views, MatchView{Match: m, Need: need, Expert: expert})
	}
	return views, nil
}

// ListForExpert はユーザーがエキスパートとして提案されたマッチのうち、
// 本人のスキルに関連するものだけを返す。ユーザーが存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) ListForExpert(ctx context.Context, userID string) ([]MatchView, error) {
	expert, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if expert == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	matches, err := s.matches.ListByExpert(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("マッチ一覧の取得に失敗しました: %w", err)
	}

	needs, users, err := s.related(ctx, matches, func(m *model.Match) string { return m.NeedUserID })
	if err != nil {
		return nil, err
	}

	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		need, requester := needs[m.NeedID], users[m.NeedUserID]
		if need == nil || requester == nil || !IsRelevant(expert.Skills, need) {
			continue
		}
		views = append(views, MatchView{Match: m, Need: need, Requester: requester})
	}
	return views, nil
}

// Accept はエキスパートがマッチを承認し、コーヒーチャットを作成する。
// エキスパートに承認XPを付与し、total_matchesを加算する。
func (s *Service) Accept(ctx context.Context, userID, matchID string) (*AcceptResult, error) {
	match, err := s.loadForExpert(ctx, userID, matchID)
	if err != nil {
		return nil, err
	}

	chat, err := s.chats.CreateForMatch(ctx, match)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeConcurrentUpdate {
			return nil, s.lostRace(ctx, match.ID)
		}
		return nil, err
	}

	if err := s.users.IncrementStat(ctx, match.ExpertUserID, model.StatTotalMatches, 1); err != nil {
		s.logger.ErrorContext(ctx, "failed to increment total_matches",
			slog.String("user_id", match.ExpertUserID),
			slog.String("error", err.Error()),
		)
	}

	result := &AcceptResult{Chat: chat}
	if s.xp != nil {
		award, err := s.xp.Award(ctx, match.ExpertUserID, gamification.XPMatchAccepted, "match accepted")
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to award xp",
				slog.String("user_id", match.ExpertUserID),
				slog.String("error", err.Error()),
			)
		} else {
			result.XPGained = award.XPGained
		}
	}

	s.metrics.RecordMatchDecision(string(model.MatchStatusAccepted))
	s.logger.InfoContext(ctx, "match accepted",
		slog.String("match_id", match.ID),
		slog.String("chat_id", chat.ID),
	)
	return result, nil
}

// Decline はエキスパートがマッチを辞退する。辞退は終端状態。
func (s *Service) Decline(ctx context.Context, userID, matchID string) error {
	match, err := s.loadForExpert(ctx, userID, matchID)
	if err != nil {
		return err
	}

	if err := s.matches.Decline(ctx, match.ID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.lostRace(ctx, match.ID)
		}
		return fmt.Errorf("マッチの辞退に失敗しました: %w", err)
	}

	s.metrics.RecordMatchDecision(string(model.MatchStatusDeclined))
	s.logger.InfoContext(ctx, "match declined", slog.String("match_id", match.ID))
	return nil
}

// ListAll は全マッチをニーズと両ユーザーの情報付きで返す。
func (s *Service) ListAll(ctx context.Context) ([]MatchView, error) {
	matches, err := s.matches.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("マッチ一覧の取得に失敗しました: %w", err)
	}

	needs, users, err := s.related(ctx, matches, func(m *model.Match) string { return m.NeedUserID }, func(m *model.Match) string { return m.ExpertUserID })
	if err != nil {
		return nil, err
	}

	views := make([]MatchView, len(matches))
	for i, m := range matches {
		views[i] = MatchView{
			Match:     m,
			Need:      needs[m.NeedID],
			Requester: users[m.NeedUserID],
			Expert:    users[m.ExpertUserID],
		}
	}
	return views, nil
}

func (s *Service) loadForExpert(ctx context.Context, userID, matchID string) (*model.Match, error) {
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("マッチの取得に失敗しました: %w", err)
	}
	if match == nil {
		return nil, model.NewMatchNotFoundError(matchID)
	}
	if match.ExpertUserID != userID {
		return nil, model.NewForbiddenError("マッチに応答できるのはエキスパートのみです")
	}
	if match.Status != model.MatchStatusPending {
		return nil, model.NewMatchNotPendingError(match.Status)
	}
	return match, nil
}

// lostRace は同時に行われた応答に先を越された場合のエラーを返す。
// マッチを再取得し、確定した状態をエラーに含める。
func (s *Service) lostRace(ctx context.Context, matchID string) error {
	current, err := s.matches.FindByID(ctx, matchID)
	if err != nil || current == nil || current.Status == model.MatchStatusPending {
		return model.NewConcurrentUpdateError()
	}
	return model.NewMatchNotPendingError(current.Status)
}

// related はマッチに紐づくニーズとユーザーをまとめて取得する。
func (s *Service) related(ctx context.Context, matches []*model.Match, userIDs ...func(*model.Match) string) (map[string]*model.Need, map[string]*model.User, error) {
	needIDs := make([]string, 0, len(matches))
	ids := make([]string, 0, len(matches)*len(userIDs))
	for _, m := range matches {
		needIDs = append(needIDs, m.NeedID)
		for _, f := range userIDs {
			ids = append(ids, f(m))
		}
	}

	needs, err := s.needs.FindNeedsByIDs(ctx, needIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("ニーズの取得に失敗しました: %w", err)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return needs, users, nil
}

// IsRelevant はエキスパートのスキルがニーズに関連するかを判定する。
// ニーズのカテゴリがスキルのカテゴリに含まれるか、スキルラベルとニーズラベルが
// 単語を1つ以上共有する場合に関連ありとする。比較は大文字小文字を区別しない。
func IsRelevant(skills []model.Skill, need *model.Need) bool {
	category := strings.ToLower(need.Category)
	needWords := strings.Fields(strings.ToLower(need.Label))

	for _, skill := range skills {
		if strings.ToLower(skill.Category) == category {
			return true
		}
		for _, w := range strings.Fields(strings.ToLower(skill.Label)) {
			for _, nw := range needWords {
				if w == nw {
					return true
				}
			}
		}
	}
	return false
}
