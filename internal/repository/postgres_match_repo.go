package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/founderhub/internal/model"
)

const matchColumns = `id, need_id, need_user_id, expert_user_id, score, reason, status, created_at`

// PostgresMatchRepo はPostgreSQLを使用したマッチリポジトリ。
type PostgresMatchRepo struct {
	db *sql.DB
}

// NewPostgresMatchRepo はPostgresMatchRepoを生成する。
func NewPostgresMatchRepo(db *sql.DB) *PostgresMatchRepo {
	return &PostgresMatchRepo{db: db}
}

func scanMatch(row rowScanner) (*model.Match, error) {
	m := &model.Match{}
	var status string
	if err := row.Scan(&m.ID, &m.NeedID, &m.NeedUserID, &m.ExpertUserID, &m.Score, &m.Reason, &status, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Status = model.MatchStatus(status)
	return m, nil
}

// FindByID は指定IDのマッチを取得する。見つからない場合はnilを返す。
func (r *PostgresMatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM match_suggestions WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}
	return m, nil
}

// CreateIfAbsent は同じニーズ・エキスパートの組が未登録の場合のみマッチを作成する。
// スコアは[0,1]に丸めて保存する。
func (r *PostgresMatchRepo) CreateIfAbsent(ctx context.Context, m *model.Match) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO match_suggestions (id, need_id, need_user_id, expert_user_id, score, reason, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (need_id, expert_user_id) DO NOTHING`,
		m.ID, m.NeedID, m.NeedUserID, m.ExpertUserID, model.ClampScore(m.Score), m.Reason, string(m.Status), m.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert match: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresMatchRepo) list(ctx context.Context, query string, args ...any) ([]*model.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return matches, nil
}

// ListByRequester はニーズの持ち主としてのマッチをスコア降順で返す。
func (r *PostgresMatchRepo) ListByRequester(ctx context.Context, userID string) ([]*model.Match, error) {
	return r.list(ctx,
		`SELECT `+matchColumns+` FROM match_suggestions
		 WHERE need_user_id = $1 ORDER BY score DESC, created_at DESC`, userID)
}

// ListByExpert はエキスパートとしてのマッチを新しい順に返す。
func (r *PostgresMatchRepo) ListByExpert(ctx context.Context, userID string) ([]*model.Match, error) {
	return r.list(ctx,
		`SELECT `+matchColumns+` FROM match_suggestions
		 WHERE expert_user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListAll は全マッチを新しい順に返す。
func (r *PostgresMatchRepo) ListAll(ctx context.Context) ([]*model.Match, error) {
	return r.list(ctx, `SELECT `+matchColumns+` FROM match_suggestions ORDER BY created_at DESC`)
}

// Decline はpendingのマッチをdeclinedに更新する。
func (r *PostgresMatchRepo) Decline(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE match_suggestions SET status = $2 WHERE id = $1 AND status = $3`,
		id, string(model.MatchStatusDeclined), string(model.MatchStatusPending))
	if err != nil {
		return fmt.Errorf("failed to decline match: %w", err)
	}
	return requireOneRow(result)
}

// compile-time interface check
var _ MatchRepository = (*PostgresMatchRepo)(nil)
