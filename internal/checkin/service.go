// Package checkin は週次チェックインの受付を提供する。
// 本文からニーズとラーニングを抽出して保存し、スキル・XPを更新した上でマッチ候補を登録する。
package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/founderhub/internal/gamification"
	"github.com/hitoshi/founderhub/internal/metrics"
	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/repository"
	"github.com/hitoshi/founderhub/internal/security"
)

const (
	// suggestionsPerNeed は分析サービスに要求するニーズ1件あたりの候補数。
	suggestionsPerNeed = 3
	// maxSavedSuggestions は1回のチェックインで登録を試みるマッチ候補の上限。
	maxSavedSuggestions = 5
	// maxReturnedMatches はレスポンスに含めるマッチの上限。
	maxReturnedMatches = 3
)

// Extractor はチェックイン本文からニーズとラーニングを抽出するインターフェース。
type Extractor interface {
	Extract(ctx context.Context, text, userID string) model.Extraction
}

// Suggester はマッチ候補を算出するインターフェース。
type Suggester interface {
	Suggest(ctx context.Context, needs []*model.Need, learnings []*model.Learning, limit int) ([]model.MatchSuggestion, error)
}

// UserStore はチェックインで使用するユーザー操作のインターフェース。
type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
	MergeSkills(ctx context.Context, id string, skills []model.Skill) ([]model.Skill, error)
	IncrementStat(ctx context.Context, id string, stat model.UserStat, delta int) error
}

// MatchStore はマッチ候補の登録と取得のインターフェース。
type MatchStore interface {
	CreateIfAbsent(ctx context.Context, match *model.Match) (bool, error)
	ListByRequester(ctx context.Context, userID string) ([]*model.Match, error)
}

// XPAwarder はXPを付与するインターフェース。
type XPAwarder interface {
	Award(ctx context.Context, userID string, amount int, reason string) (*gamification.Result, error)
}

// MatchSummary はチェックイン結果に含めるマッチとエキスパート。
type MatchSummary struct {
	Match  *model.Match
	Expert *model.User
}

// Result はチェックイン処理の結果。
type Result struct {
	Needs     []*model.Need
	Learnings []*model.Learning
	Skills    []model.Skill
	Matches   []MatchSummary
	XP        gamification.Result
}

// Summary は抽出結果の要約文を返す。
func (r *Result) Summary() string {
	return fmt.Sprintf("チェックインからニーズ%d件とラーニング%d件を抽出しました。スキルプロフィールを更新しました。",
		len(r.Needs), len(r.Learnings))
}

// Service はチェックインのサービス層。
type Service struct {
	extractor Extractor
	suggester Suggester
	entries   repository.CheckinRepository
	matches   MatchStore
	users     UserStore
	xp        XPAwarder
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	extractor Extractor,
	suggester Suggester,
	entries repository.CheckinRepository,
	matches MatchStore,
	users UserStore,
	xp XPAwarder,
	sanitizer security.TextSanitizer,
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
		extractor: extractor,
		suggester: suggester,
		entries:   entries,
		matches:   matches,
		users:     users,
		xp:        xp,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// Normalize はチェックイン本文からHTMLと前後の空白を除去し、最小文字数を検証する。
func Normalize(sanitizer security.TextSanitizer, text string) (string, error) {
	text = strings.TrimSpace(text)
	if sanitizer != nil {
		text = sanitizer.Sanitize(text)
	}
	if utf8.RuneCountInString(text) < model.MinCheckinLength {
		return "", model.NewCheckinTooShortError()
	}
	return text, nil
}

// Submit はチェックインを受け付ける。
//
// 処理順序:
//  1. 本文の検証とニーズ・ラーニングの抽出
//  2. ニーズ・ラーニングの保存とスキルの統合
//  3. XP付与とtotal_checkinsの加算
//  4. 全activeニーズ・ラーニングに対するマッチ候補の登録
//  5. 本人のマッチ上位3件の取得
func (s *Service) Submit(ctx context.Context, userID, text string) (*Result, error) {
	text, err := Normalize(s.sanitizer, text)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	extraction := s.extractor.Extract(ctx, text, userID)
	needs, learnings := s.buildEntries(userID, extraction)

	if err := s.entries.CreateEntries(ctx, needs, learnings); err != nil {
		return nil, fmt.Errorf("ニーズ・ラーニングの保存に失敗しました: %w", err)
	}

	skills, err := s.users.MergeSkills(ctx, userID, extraction.Learnings)
	if err != nil {
		return nil, fmt.Errorf("スキルの更新に失敗しました: %w", err)
	}

	result := &Result{Needs: needs, Learnings: learnings, Skills: skills}

	award, err := s.xp.Award(ctx, userID, gamification.XPCheckin, "weekly check-in submitted")
	if err != nil {
		return nil, fmt.Errorf("XPの付与に失敗しました: %w", err)
	}
	result.XP = *award

	if err := s.users.IncrementStat(ctx, userID, model.StatTotalCheckins, 1); err != nil {
		return nil, fmt.Errorf("チェックイン数の更新に失敗しました: %w", err)
	}
	s.metrics.RecordCheckin()

	s.suggest(ctx)

	matches, err := s.topMatches(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.Matches = matches

	s.logger.InfoContext(ctx, "check-in processed",
		slog.String("user_id", userID),
		slog.Int("needs", len(needs)),
		slog.Int("learnings", len(learnings)),
		slog.Int("matches", len(matches)),
	)
	return result, nil
}

// TestExtraction は保存を行わずに抽出結果だけを返す。
func (s *Service) TestExtraction(ctx context.Context, userID, text string) (model.Extraction, error) {
	text, err := Normalize(s.sanitizer, text)
	if err != nil {
		return model.Extraction{}, err
	}
	return s.extractor.Extract(ctx, text, userID), nil
}

func (s *Service) buildEntries(userID string, extraction model.Extraction) ([]*model.Need, []*model.Learning) {
	now := s.now().UTC()

	needs := make([]*model.Need, len(extraction.Needs))
	for i, n := range extraction.Needs {
		needs[i] = &model.Need{
			ID:        uuid.NewString(),
			UserID:    userID,
			Label:     n.Label,
			Category:  n.Category,
			Status:    model.EntryStatusActive,
			CreatedAt: now,
		}
	}

	learnings := make([]*model.Learning, len(extraction.Learnings))
	for i, l := range extraction.Learnings {
		learnings[i] = &model.Learning{
			ID:        uuid.NewString(),
			UserID:    userID,
			Label:     l.Label,
			Category:  l.Category,
			Status:    model.EntryStatusActive,
			CreatedAt: now,
		}
	}
	return needs, learnings
}

// suggest は全activeニーズ・ラーニングからマッチ候補を取得し、上位5件を登録する。
// リクエスターはニーズの持ち主とし、自分自身とのマッチは登録しない。
// 候補の取得や登録に失敗してもチェックイン自体は成功として扱う。
func (s *Service) suggest(ctx context.Context) {
	allNeeds, err := s.entries.ListActiveNeeds(ctx)
	if err != nil {
		s.logSuggestError(ctx, "failed to list active needs", err)
		return
	}
	allLearnings, err := s.entries.ListActiveLearnings(ctx)
	if err != nil {
		s.logSuggestError(ctx, "failed to list active learnings", err)
		return
	}

	suggestions, err := s.suggester.Suggest(ctx, allNeeds, allLearnings, suggestionsPerNeed)
	if err != nil {
		s.logSuggestError(ctx, "failed to get match suggestions", err)
		return
	}

	owners := make(map[string]string, len(allNeeds))
	for _, n := range allNeeds {
		owners[n.ID] = n.UserID
	}

	created := 0
	for _, sg := range suggestions[:min(len(suggestions), maxSavedSuggestions)] {
		owner, ok := owners[sg.NeedID]
		if !ok || owner == sg.ExpertUserID {
			continue
		}
		inserted, err := s.matches.CreateIfAbsent(ctx, &model.Match{
			ID:           uuid.NewString(),
			NeedID:       sg.NeedID,
			NeedUserID:   owner,
			ExpertUserID: sg.ExpertUserID,
			Score:        sg.Score,
			Reason:       sg.Reason,
			Status:       model.MatchStatusPending,
			CreatedAt:    s.now().UTC(),
		})
		if err != nil {
			s.logSuggestError(ctx, "failed to save match suggestion", err)
			continue
		}
		if inserted {
			created++
		}
	}
	s.metrics.RecordMatchesSuggested(created)
}

func (s *Service) logSuggestError(ctx context.Context, msg string, err error) {
	s.logger.WarnContext(ctx, msg, slog.String("error", err.Error()))
}

func (s *Service) topMatches(ctx context.Context, userID string) ([]MatchSummary, error) {
	matches, err := s.matches.ListByRequester(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("マッチ一覧の取得に失敗しました: %w", err)
	}
	matches = matches[:min(len(matches), maxReturnedMatches)]

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ExpertUserID
	}
	experts, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("エキスパートの取得に失敗しました: %w", err)
	}

	out := make([]MatchSummary, 0, len(matches))
	for _, m := range matches {
		if expert := experts[m.ExpertUserID]; expert != nil {
			out = append(out, MatchSummary{Match: m, Expert: expert})
		}
	}
	return out, nil
}
