package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/founderhub/internal/model"
)

// PostgresCheckinRepo はPostgreSQLを使用したニーズ・ラーニングのリポジトリ。
type PostgresCheckinRepo struct {
	db *sql.DB
}

// NewPostgresCheckinRepo はPostgresCheckinRepoを生成する。
func NewPostgresCheckinRepo(db *sql.DB) *PostgresCheckinRepo {
	return &PostgresCheckinRepo{db: db}
}

// CreateEntries はニーズとラーニングを同一トランザクションで作成する。
func (r *PostgresCheckinRepo) CreateEntries(ctx context.Context, needs []*model.Need, learnings []*model.Learning) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, n := range needs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO needs (id, user_id, label, category, status, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				n.ID, n.UserID, n.Label, n.Category, n.Status, n.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert need: %w", err)
			}
		}
		for _, l := range learnings {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO learnings (id, user_id, label, category, status, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				l.ID, l.UserID, l.Label, l.Category, l.Status, l.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert learning: %w", err)
			}
		}
		return nil
	})
}

// FindNeedByID は指定IDのニーズを取得する。見つからない場合はnilを返す。
func (r *PostgresCheckinRepo) FindNeedByID(ctx context.Context, id string) (*model.Need, error) {
	n := &model.Need{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, label, category, status, created_at FROM needs WHERE id = $1`, id,
	).Scan(&n.ID, &n.UserID, &n.Label, &n.Category, &n.Status, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find need: %w", err)
	}
	return n, nil
}

// FindNeedsByIDs は複数ニーズをまとめて取得する。存在しないIDはマップに含まれない。
func (r *PostgresCheckinRepo) FindNeedsByIDs(ctx context.Context, ids []string) (map[string]*model.Need, error) {
	result := make(map[string]*model.Need, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	needs, err := r.listNeeds(ctx,
		`SELECT id, user_id, label, category, status, created_at FROM needs WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, n := range needs {
		result[n.ID] = n
	}
	return result, nil
}

// ListActiveNeeds はactive状態の全ニーズを新しい順に返す。
func (r *PostgresCheckinRepo) ListActiveNeeds(ctx context.Context) ([]*model.Need, error) {
	return r.listNeeds(ctx,
		`SELECT id, user_id, label, category, status, created_at
		 FROM needs WHERE status = $1 ORDER BY created_at DESC`,
		model.EntryStatusActive)
}

func (r *PostgresCheckinRepo) listNeeds(ctx context.Context, query string, args ...any) ([]*model.Need, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query needs: %w", err)
	}
	defer rows.Close()

	var needs []*model.Need
	for rows.Next() {
		n := &model.Need{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Label, &n.Category, &n.Status, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan need: %w", err)
		}
		needs = append(needs, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate needs: %w", err)
	}
	return needs, nil
}

// ListActiveLearnings はactive状態の全ラーニングを新しい順に返す。
func (r *PostgresCheckinRepo) ListActiveLearnings(ctx context.Context) ([]*model.Learning, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, label, category, status, created_at
		 FROM learnings WHERE status = $1 ORDER BY created_at DESC`,
		model.EntryStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query learnings: %w", err)
	}
	defer rows.Close()

	var learnings []*model.Learning
	for rows.Next() {
		l := &model.Learning{}
		if err := rows.Scan(&l.ID, &l.UserID, &l.Label, &l.Category, &l.Status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan learning: %w", err)
		}
		learnings = append(learnings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate learnings: %w", err)
	}
	return learnings, nil
}

// CountByUser はユーザーのニーズ数とラーニング数を返す。
func (r *PostgresCheckinRepo) CountByUser(ctx context.Context, userID string) (int, int, error) {
	var needs, learnings int
	err := r.db.QueryRowContext(ctx,
		`SELECT
			(SELECT count(*) FROM needs WHERE user_id = $1),
			(SELECT count(*) FROM learnings WHERE user_id = $1)`,
		userID,
	).Scan(&needs, &learnings)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count check-in entries: %w", err)
	}
	return needs, learnings, nil
}

// compile-time interface check
var _ CheckinRepository = (*PostgresCheckinRepo)(nil)
