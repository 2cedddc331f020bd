package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hitoshi/founderhub/internal/model"
)

// maxEntriesPerKind はチェックイン1件から採用するニーズ・ラーニングの上限。
const maxEntriesPerKind = 3

// Service は分析サービスの呼び出しとフォールバックをまとめたサービス層。
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client *Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logger}
}

// Extract はチェックイン本文からニーズとラーニングを1〜3件ずつ抽出する。
// 分析サービスが使えない場合や結果が空の場合はキーワード抽出で代替する。
func (s *Service) Extract(ctx context.Context, text, userID string) model.Extraction {
	fallback := KeywordExtract(text)

	if s.client == nil || !s.client.Configured() {
		return fallback
	}

	out, err := s.client.Extract(ctx, text, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "analysis extraction failed, using keyword fallback",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fallback
	}

	result := model.Extraction{
		Needs:     normalize(out.Needs),
		Learnings: normalize(out.Learnings),
	}
	if len(result.Needs) == 0 {
		result.Needs = fallback.Needs
	}
	if len(result.Learnings) == 0 {
		result.Learnings = fallback.Learnings
	}
	return result
}

// Suggest はマッチ候補を取得する。分析サービス未設定の場合は候補なしとする。
func (s *Service) Suggest(ctx context.Context, needs []*model.Need, learnings []*model.Learning, limit int) ([]model.MatchSuggestion, error) {
	if s.client == nil {
		return nil, nil
	}
	suggestions, err := s.client.Match(ctx, needs, learnings, limit)
	if errors.Is(err, ErrNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range suggestions {
		suggestions[i].Score = model.ClampScore(suggestions[i].Score)
	}
	return suggestions, nil
}

// normalize は空ラベルを除外し、前後の空白を除いて上限件数に切り詰める。
func normalize(skills []model.Skill) []model.Skill {
	out := make([]model.Skill, 0, min(len(skills), maxEntriesPerKind))
	for _, s := range skills {
		label := strings.TrimSpace(s.Label)
		if label == "" {
			continue
		}
		category := strings.TrimSpace(s.Category)
		if category == "" {
			category = "other"
		}
		out = append(out, model.Skill{Label: label, Category: category})
		if len(out) == maxEntriesPerKind {
			break
		}
	}
	return out
}
