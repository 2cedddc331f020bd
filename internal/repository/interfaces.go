// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/founderhub/internal/model"
)

// ErrConflict は条件付き更新の対象行が期待した状態になかったことを表す。
// 同時実行された別の操作が先に状態を変更した場合に返る。
var ErrConflict = errors.New("repository: conflicting concurrent update")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスで大文字小文字を区別せずにユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByIDs は複数ユーザーをまとめて取得し、IDをキーとするマップで返す。
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)

	// List は全ユーザーを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateBio は自己紹介文を更新する。
	UpdateBio(ctx context.Context, id, bio string) error

	// MergeSkills は既存スキルにラベルが重複しないものを追加し、更新後のスキル一覧を返す。
	MergeSkills(ctx context.Context, id string, skills []model.Skill) ([]model.Skill, error)

	// UpdateProgress は行ロックを取得した上でXP・レベル・バッジを更新する。
	// applyには更新前の状態が渡され、戻り値が保存される。
	UpdateProgress(ctx context.Context, id string, apply func(model.Progress) model.Progress) (before, after model.Progress, err error)

	// IncrementStat は活動統計の列をdeltaだけ加算する。
	IncrementStat(ctx context.Context, id string, stat model.UserStat, delta int) error

	// Leaderboard はXPの降順で上位limit件のユーザーを返す。
	Leaderboard(ctx context.Context, limit int) ([]*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// CheckinRepository はチェックインから抽出したニーズ・ラーニングの永続化インターフェース。
type CheckinRepository interface {
	// CreateEntries はニーズとラーニングを同一トランザクションで作成する。
	CreateEntries(ctx context.Context, needs []*model.Need, learnings []*model.Learning) error

	// FindNeedByID は指定IDのニーズを取得する。見つからない場合はnilを返す。
	FindNeedByID(ctx context.Context, id string) (*model.Need, error)

	// FindNeedsByIDs は複数ニーズをまとめて取得し、IDをキーとするマップで返す。
	FindNeedsByIDs(ctx context.Context, ids []string) (map[string]*model.Need, error)

	// ListActiveNeeds はactive状態の全ニーズを新しい順に返す。
	ListActiveNeeds(ctx context.Context) ([]*model.Need, error)

	// ListActiveLearnings はactive状態の全ラーニングを新しい順に返す。
	ListActiveLearnings(ctx context.Context) ([]*model.Learning, error)

	// CountByUser はユーザーのニーズ数とラーニング数を返す。
	CountByUser(ctx context.Context, userID string) (needs, learnings int, err error)
}

// MatchRepository はマッチの永続化インターフェース。
type MatchRepository interface {
	// FindByID は指定IDのマッチを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Match, error)

	// CreateIfAbsent は同じニーズ・エキスパートの組が未登録の場合のみマッチを作成する。
	// 作成した場合はtrueを返す。
	CreateIfAbsent(ctx context.Context, match *model.Match) (bool, error)

	// ListByRequester はニーズの持ち主としてのマッチをスコア降順で返す。
	ListByRequester(ctx context.Context, userID string) ([]*model.Match, error)

	// ListByExpert はエキスパートとしてのマッチを新しい順に返す。
	ListByExpert(ctx context.Context, userID string) ([]*model.Match, error)

	// ListAll は全マッチを新しい順に返す。
	ListAll(ctx context.Context) ([]*model.Match, error)

	// Decline はpendingのマッチをdeclinedに更新する。
	// pendingでなかった場合はErrConflictを返す。
	Decline(ctx context.Context, id string) error
}

// CoffeeChatRepository はコーヒーチャットと候補日時の永続化インターフェース。
// 状態遷移を伴う更新は「期待する現在状態」を条件とした更新で行い、
// 条件に一致しない場合はErrConflictを返す。
type CoffeeChatRepository interface {
	// FindByID は候補日時を含めてチャットを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.CoffeeChat, error)

	// ListByUser はリクエスターまたはエキスパートとして参加するチャットを新しい順に返す。
	ListByUser(ctx context.Context, userID string) ([]*model.CoffeeChat, error)

	// ListAll は全チャットを新しい順に返す。
	ListAll(ctx context.Context) ([]*model.CoffeeChat, error)

	// CreateFromMatch はマッチをpendingからacceptedに更新し、チャットを作成する。
	// マッチがpendingでなかった場合はErrConflictを返す。
	CreateFromMatch(ctx context.Context, chat *model.CoffeeChat) error

	// ProposeSlots はチャットの状態をfromからtoへ更新し、候補日時を登録する。
	ProposeSlots(ctx context.Context, chatID string, from, to model.ChatStatus, slots []model.ProposedSlot) error

	// Confirm はチャットの状態をfromからtoへ更新し、日時とミーティングリンクを確定する。
	// 指定候補をselected、それ以外の候補をrejectedにし、両参加者のtotal_chatsを加算する。
	Confirm(ctx context.Context, chatID, slotID string, from, to model.ChatStatus, scheduledTime time.Time, meetingLink string) error

	// UpdateStatus はチャットの状態をfromからtoへ更新する。
	UpdateStatus(ctx context.Context, chatID string, from, to model.ChatStatus) error
}

// StatsRepository は集計クエリのインターフェース。
type StatsRepository interface {
	// Dashboard は管理ダッシュボードの集計値を返す。
	Dashboard(ctx context.Context) (*DashboardStats, error)

	// Community はsince以降の週次活動量とスキル分布を返す。
	Community(ctx context.Context, since time.Time) (*CommunityStats, error)
}

// DashboardStats は管理ダッシュボード向けの集計値。
type DashboardStats struct {
	TotalUsers         int
	TotalNeeds         int
	TotalLearnings     int
	TotalMatches       int
	PendingMatches     int
	TotalChats         int
	ConfirmedChats     int
	NeedCategories     map[string]int
	LearningCategories map[string]int
}

// CategoryCount はカテゴリごとの件数。
type CategoryCount struct {
	Category string
	Count    int
}

// ActiveUser は活動スコア付きのユーザー。
type ActiveUser struct {
	ID            string
	Name          string
	ActivityScore int
	Level         int
	XP            int
}

// CommunityStats はコミュニティ全体の週次統計。
type CommunityStats struct {
	TotalUsers        int
	NewUsersThisWeek  int
	NeedsThisWeek     int
	LearningsThisWeek int
	MatchesThisWeek   int
	ChatsThisWeek     int
	TopSkills         []CategoryCount
	MostActiveUsers   []ActiveUser
	TotalXPAwarded    int
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
