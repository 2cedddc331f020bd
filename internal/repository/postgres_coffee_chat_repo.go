package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/founderhub/internal/model"
)

const chatColumns = `id, match_id, requester_id, expert_id, status, scheduled_time,
	duration_minutes, meeting_link, created_at, updated_at`

// PostgresCoffeeChatRepo はPostgreSQLを使用したコーヒーチャットリポジトリ。
type PostgresCoffeeChatRepo struct {
	db *sql.DB
}

// NewPostgresCoffeeChatRepo はPostgresCoffeeChatRepoを生成する。
func NewPostgresCoffeeChatRepo(db *sql.DB) *PostgresCoffeeChatRepo {
	return &PostgresCoffeeChatRepo{db: db}
}

func scanChat(row rowScanner) (*model.CoffeeChat, error) {
	c := &model.CoffeeChat{}
	var status string
	var scheduled sql.NullTime
	var link sql.NullString
	err := row.Scan(&c.ID, &c.MatchID, &c.RequesterID, &c.ExpertID, &status, &scheduled,
		&c.DurationMinutes, &link, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = model.ChatStatus(status)
	if scheduled.Valid {
		t := scheduled.Time
		c.ScheduledTime = &t
	}
	if link.Valid {
		l := link.String
		c.MeetingLink = &l
	}
	c.ProposedSlots = []model.ProposedSlot{}
	return c, nil
}

// FindByID は候補日時を含めてチャットを取得する。見つからない場合はnilを返す。
func (r *PostgresCoffeeChatRepo) FindByID(ctx context.Context, id string) (*model.CoffeeChat, error) {
	chat, err := scanChat(r.db.QueryRowContext(ctx,
		`SELECT `+chatColumns+` FROM coffee_chats WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find coffee chat: %w", err)
	}
	if err := r.attachSlots(ctx, []*model.CoffeeChat{chat}); err != nil {
		return nil, err
	}
	return chat, nil
}

// ListByUser はリクエスターまたはエキスパートとして参加するチャットを新しい順に返す。
func (r *PostgresCoffeeChatRepo) ListByUser(ctx context.Context, userID string) ([]*model.CoffeeChat, error) {
	return r.list(ctx,
		`SELECT `+chatColumns+` FROM coffee_chats
		 WHERE requester_id = $1 OR expert_id = $1 ORDER BY created_at DESC`, userID)
}

// ListAll は全チャットを新しい順に返す。
func (r *PostgresCoffeeChatRepo) ListAll(ctx context.Context) ([]*model.CoffeeChat, error) {
	return r.list(ctx, `SELECT `+chatColumns+` FROM coffee_chats ORDER BY created_at DESC`)
}

func (r *PostgresCoffeeChatRepo) list(ctx context.Context, query string, args ...any) ([]*model.CoffeeChat, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query coffee chats: %w", err)
	}
	defer rows.Close()

	var chats []*model.CoffeeChat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coffee chat: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coffee chats: %w", err)
	}

	if err := r.attachSlots(ctx, chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// attachSlots は各チャットに候補日時を日時の昇順で設定する。
func (r *PostgresCoffeeChatRepo) attachSlots(ctx context.Context, chats []*model.CoffeeChat) error {
	if len(chats) == 0 {
		return nil
	}
	byID := make(map[string]*model.CoffeeChat, len(chats))
	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, coffee_chat_id, proposed_by, slot_time, status, created_at
		 FROM proposed_slots WHERE coffee_chat_id = ANY($1) ORDER BY slot_time ASC`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query proposed slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s model.ProposedSlot
		var status string
		if err := rows.Scan(&s.ID, &s.CoffeeChatID, &s.ProposedBy, &s.SlotTime, &status, &s.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan proposed slot: %w", err)
		}
		s.Status = model.SlotStatus(status)
		if c, ok := byID[s.CoffeeChatID]; ok {
			c.ProposedSlots = append(c.ProposedSlots, s)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate proposed slots: %w", err)
	}
	return nil
}

// CreateFromMatch はマッチをpendingからacceptedに更新し、チャットを作成する。
func (r *PostgresCoffeeChatRepo) CreateFromMatch(ctx context.Context, chat *model.CoffeeChat) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE match_suggestions SET status = $2 WHERE id = $1 AND status = $3`,
			chat.MatchID, string(model.MatchStatusAccepted), string(model.MatchStatusPending))
		if err != nil {
			return fmt.Errorf("failed to accept match: %w", err)
		}
		if err := requireOneRow(result); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO coffee_chats (id, match_id, requester_id, expert_id, status, duration_minutes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			chat.ID, chat.MatchID, chat.RequesterID, chat.ExpertID, string(chat.Status),
			chat.DurationMinutes, chat.CreatedAt, chat.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert coffee chat: %w", err)
		}
		return nil
	})
}

// transition はチャットの状態を条件付きで更新する。
func transition(ctx context.Context, tx *sql.Tx, chatID string, from, to model.ChatStatus) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE coffee_chats SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		chatID, string(to), string(from))
	if err != nil {
		return fmt.Errorf("failed to update coffee chat status: %w", err)
	}
	return requireOneRow(result)
}

// ProposeSlots はチャットの状態をfromからtoへ更新し、候補日時を登録する。
func (r *PostgresCoffeeChatRepo) ProposeSlots(ctx context.Context, chatID string, from, to model.ChatStatus, slots []model.ProposedSlot) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := transition(ctx, tx, chatID, from, to); err != nil {
			return err
		}
		for _, s := range slots {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO proposed_slots (id, coffee_chat_id, proposed_by, slot_time, status, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				s.ID, chatID, s.ProposedBy, s.SlotTime, string(s.Status), s.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert proposed slot: %w", err)
			}
		}
		return nil
	})
}

// Confirm はチャットの状態をfromからtoへ更新し、日時とミーティングリンクを確定する。
func (r *PostgresCoffeeChatRepo) Confirm(ctx context.Context, chatID, slotID string, from, to model.ChatStatus, scheduledTime time.Time, meetingLink string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var requesterID, expertID string
		result, err := tx.ExecContext(ctx,
			`UPDATE coffee_chats
			 SET status = $2, scheduled_time = $4, meeting_link = $5, updated_at = now()
			 WHERE id = $1 AND status = $3`,
			chatID, string(to), string(from), scheduledTime, meetingLink)
		if err != nil {
			return fmt.Errorf("failed to confirm coffee chat: %w", err)
		}
		if err := requireOneRow(result); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx,
			`UPDATE proposed_slots SET status = $3
			 WHERE id = $2 AND coffee_chat_id = $1 AND status = $4`,
			chatID, slotID, string(model.SlotStatusSelected), string(model.SlotStatusPending))
		if err != nil {
			return fmt.Errorf("failed to select proposed slot: %w", err)
		}
		if err := requireOneRow(result); err != nil {
			return err
		}

		// 選択されなかった残りの候補は暗黙的に却下する
		_, err = tx.ExecContext(ctx,
			`UPDATE proposed_slots SET status = $2 WHERE coffee_chat_id = $1 AND status = $3`,
			chatID, string(model.SlotStatusRejected), string(model.SlotStatusPending))
		if err != nil {
			return fmt.Errorf("failed to reject proposed slots: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`SELECT requester_id, expert_id FROM coffee_chats WHERE id = $1`, chatID,
		).Scan(&requesterID, &expertID)
		if err != nil {
			return fmt.Errorf("failed to load coffee chat participants: %w", err)
		}
		for _, userID := range []string{requesterID, expertID} {
			if err := incrementStat(ctx, tx, userID, model.StatTotalChats, 1); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateStatus はチャットの状態をfromからtoへ更新する。
func (r *PostgresCoffeeChatRepo) UpdateStatus(ctx context.Context, chatID string, from, to model.ChatStatus) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return transition(ctx, tx, chatID, from, to)
	})
}

// compile-time interface check
var _ CoffeeChatRepository = (*PostgresCoffeeChatRepo)(nil)
