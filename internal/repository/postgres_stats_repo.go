package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/founderhub/internal/model"
)

const (
	topSkillLimit   = 5
	activeUserLimit = 5
)

// PostgresStatsRepo はPostgreSQLを使用した集計リポジトリ。
type PostgresStatsRepo struct {
	db *sql.DB
}

// NewPostgresStatsRepo はPostgresStatsRepoを生成する。
func NewPostgresStatsRepo(db *sql.DB) *PostgresStatsRepo {
	return &PostgresStatsRepo{db: db}
}

// Dashboard は管理ダッシュボードの集計値を返す。
func (r *PostgresStatsRepo) Dashboard(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM needs WHERE status = $1),
			(SELECT count(*) FROM learnings WHERE status = $1),
			(SELECT count(*) FROM match_suggestions),
			(SELECT count(*) FROM match_suggestions WHERE status = $2),
			(SELECT count(*) FROM coffee_chats),
			(SELECT count(*) FROM coffee_chats WHERE status = $3)`,
		model.EntryStatusActive, string(model.MatchStatusPending), string(model.ChatStatusConfirmed),
	).Scan(&stats.TotalUsers, &stats.TotalNeeds, &stats.TotalLearnings,
		&stats.TotalMatches, &stats.PendingMatches, &stats.TotalChats, &stats.ConfirmedChats)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
	}

	needCats, err := r.categoryCounts(ctx, "needs", 0)
	if err != nil {
		return nil, err
	}
	learningCats, err := r.categoryCounts(ctx, "learnings", 0)
	if err != nil {
		return nil, err
	}

	stats.NeedCategories = make(map[string]int, len(needCats))
	for _, c := range needCats {
		stats.NeedCategories[c.Category] = c.Count
	}
	stats.LearningCategories = make(map[string]int, len(learningCats))
	for _, c := range learningCats {
		stats.LearningCategories[c.Category] = c.Count
	}
	return stats, nil
}

// categoryCounts はactiveなエントリをカテゴリ別に件数の降順で集計する。
// tableは"needs"または"learnings"。limitが0の場合は全件を返す。
func (r *PostgresStatsRepo) categoryCounts(ctx context.Context, table string, limit int) ([]CategoryCount, error) {
	if table != "needs" && table != "learnings" {
		return nil, fmt.Errorf("unknown entry table: %q", table)
	}
	query := fmt.Sprintf(
		`SELECT category, count(*) AS cnt FROM %s WHERE status = $1
		 GROUP BY category ORDER BY cnt DESC, category ASC`, table)
	args := []any{model.EntryStatusActive}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s categories: %w", table, err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category counts: %w", err)
	}
	return counts, nil
}

// Community はsince以降の週次活動量とスキル分布を返す。
// 活動スコアはチェックイン×3 + マッチ×2 + チャット×5で、0のユーザーは含めない。
func (r *PostgresStatsRepo) Community(ctx context.Context, since time.Time) (*CommunityStats, error) {
	stats := &CommunityStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM users WHERE created_at >= $1),
			(SELECT count(*) FROM needs WHERE status = $2 AND created_at >= $1),
			(SELECT count(*) FROM learnings WHERE status = $2 AND created_at >= $1),
			(SELECT count(*) FROM match_suggestions WHERE created_at >= $1),
			(SELECT count(*) FROM coffee_chats WHERE created_at >= $1),
			(SELECT coalesce(sum(xp), 0) FROM users)`,
		since, model.EntryStatusActive,
	).Scan(&stats.TotalUsers, &stats.NewUsersThisWeek, &stats.NeedsThisWeek,
		&stats.LearningsThisWeek, &stats.MatchesThisWeek, &stats.ChatsThisWeek, &stats.TotalXPAwarded)
	if err != nil {
		return nil, fmt.Errorf("failed to load community stats: %w", err)
	}

	stats.TopSkills, err = r.categoryCounts(ctx, "learnings", topSkillLimit)
	if err != nil {
		return nil, err
	}
	if stats.TopSkills == nil {
		stats.TopSkills = []CategoryCount{}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, level, xp, score FROM (
			SELECT id, name, level, xp, created_at,
				total_checkins * 3 + total_matches * 2 + total_chats * 5 AS score
			FROM users
		) s
		WHERE score > 0
		ORDER BY score DESC, created_at ASC
		LIMIT $1`,
		activeUserLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	stats.MostActiveUsers = []ActiveUser{}
	for rows.Next() {
		var u ActiveUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Level, &u.XP, &u.ActivityScore); err != nil {
			return nil, fmt.Errorf("failed to scan active user: %w", err)
		}
		stats.MostActiveUsers = append(stats.MostActiveUsers, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active users: %w", err)
	}
	return stats, nil
}

// compile-time interface check
var _ StatsRepository = (*PostgresStatsRepo)(nil)
