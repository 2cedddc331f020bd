package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/founderhub/internal/model"
)

const userColumns = `id, email, name, company, role, bio, skills, xp, level, badges,
	total_checkins, total_matches, total_chats, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var skills []byte
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.Company, &user.Role, &user.Bio,
		&skills, &user.XP, &user.Level, pq.Array(&user.Badges),
		&user.TotalCheckins, &user.TotalMatches, &user.TotalChats,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(skills, &user.Skills); err != nil {
		return nil, fmt.Errorf("failed to decode skills of user %s: %w", user.ID, err)
	}
	if user.Skills == nil {
		user.Skills = []model.Skill{}
	}
	if user.Badges == nil {
		user.Badges = []string{}
	}
	return user, nil
}

func (r *PostgresUserRepo) queryUsers(ctx context.Context, query string, args ...any) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスで大文字小文字を区別せずにユーザーを検索する。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindByIDs は複数ユーザーをまとめて取得する。存在しないIDはマップに含まれない。
func (r *PostgresUserRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	result := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	users, err := r.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// List は全ユーザーを作成日時の昇順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	skills, err := json.Marshal(nonNilSkills(user.Skills))
	if err != nil {
		return fmt.Errorf("failed to encode skills: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, company, role, bio, skills, xp, level, badges, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		user.ID, user.Email, user.Name, user.Company, user.Role, user.Bio,
		skills, user.XP, user.Level, pq.Array(nonNilStrings(user.Badges)),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateBio は自己紹介文を更新する。
func (r *PostgresUserRepo) UpdateBio(ctx context.Context, id, bio string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET bio = $2, updated_at = now() WHERE id = $1`, id, bio)
	if err != nil {
		return fmt.Errorf("failed to update bio: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// MergeSkills は既存スキルにラベルが重複しないものを追加し、更新後のスキル一覧を返す。
func (r *PostgresUserRepo) MergeSkills(ctx context.Context, id string, skills []model.Skill) ([]model.Skill, error) {
	var merged []model.Skill
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var raw []byte
		err := tx.QueryRowContext(ctx,
			`SELECT skills FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
		if err != nil {
			return fmt.Errorf("failed to lock user skills: %w", err)
		}
		var existing []model.Skill
		if err := json.Unmarshal(raw, &existing); err != nil {
			return fmt.Errorf("failed to decode skills: %w", err)
		}

		merged = MergeSkillLists(existing, skills)
		encoded, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to encode skills: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET skills = $2, updated_at = now() WHERE id = $1`, id, encoded); err != nil {
			return fmt.Errorf("failed to update skills: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// MergeSkillLists はラベルが重複しないスキルだけをexistingの末尾に追加する。
func MergeSkillLists(existing, added []model.Skill) []model.Skill {
	merged := make([]model.Skill, 0, len(existing)+len(added))
	seen := make(map[string]struct{}, len(existing)+len(added))
	for _, s := range append(append([]model.Skill{}, existing...), added...) {
		if _, ok := seen[s.Label]; ok {
			continue
		}
		seen[s.Label] = struct{}{}
		merged = append(merged, s)
	}
	return merged
}

// UpdateProgress は行ロックを取得した上でXP・レベル・バッジを更新する。
func (r *PostgresUserRepo) UpdateProgress(ctx context.Context, id string, apply func(model.Progress) model.Progress) (model.Progress, model.Progress, error) {
	var before, after model.Progress
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT xp, level, badges FROM users WHERE id = $1 FOR UPDATE`, id,
		).Scan(&before.XP, &before.Level, pq.Array(&before.Badges))
		if err != nil {
			return fmt.Errorf("failed to lock user progress: %w", err)
		}

		after = apply(before)
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET xp = $2, level = $3, badges = $4, updated_at = now() WHERE id = $1`,
			id, after.XP, after.Level, pq.Array(nonNilStrings(after.Badges))); err != nil {
			return fmt.Errorf("failed to update user progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Progress{}, model.Progress{}, err
	}
	return before, after, nil
}

// IncrementStat は活動統計の列をdeltaだけ加算する。
func (r *PostgresUserRepo) IncrementStat(ctx context.Context, id string, stat model.UserStat, delta int) error {
	return incrementStat(ctx, r.db, id, stat, delta)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func incrementStat(ctx context.Context, db execer, id string, stat model.UserStat, delta int) error {
	switch stat {
	case model.StatTotalCheckins, model.StatTotalMatches, model.StatTotalChats:
	default:
		return fmt.Errorf("unknown user stat: %q", stat)
	}
	// 列名は上のswitchで許可済みの定数のみ
	_, err := db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET %s = %s + $2, updated_at = now() WHERE id = $1`, stat, stat),
		id, delta)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", stat, err)
	}
	return nil
}

// Leaderboard はXPの降順で上位limit件のユーザーを返す。
func (r *PostgresUserRepo) Leaderboard(ctx context.Context, limit int) ([]*model.User, error) {
	return r.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY xp DESC, created_at ASC LIMIT $1`, limit)
}

func nonNilSkills(s []model.Skill) []model.Skill {
	if s == nil {
		return []model.Skill{}
	}
	return s
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
