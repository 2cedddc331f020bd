package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/founderhub/internal/gamification"
	"github.com/hitoshi/founderhub/internal/metrics"
	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/repository"
)

// UserLookup はチャット参加者の情報をまとめて取得するインターフェース。
type UserLookup interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
}

// XPAwarder はXPを付与するインターフェース。
type XPAwarder interface {
	Award(ctx context.Context, userID string, amount int, reason string) (*gamification.Result, error)
}

// Notifier はチャットの状態変化を参加者に通知するインターフェース。
type Notifier interface {
	ChatUpdated(ctx context.Context, chat *model.CoffeeChat)
}

// ChatView は参加者情報を付与したチャット。
type ChatView struct {
	Chat      *model.CoffeeChat
	Requester *model.User
	Expert    *model.User
}

// Confirmation は候補選択の結果。
type Confirmation struct {
	ScheduledTime time.Time
	MeetingLink   string
}

// Service はコーヒーチャットの状態遷移を行うサービス層。
// 権限チェックと遷移表による検証の後、期待する現在状態を条件に永続化する。
type Service struct {
	chats          repository.CoffeeChatRepository
	users          UserLookup
	xp             XPAwarder
	notifier       Notifier
	metrics        metrics.MetricsCollector
	meetingBaseURL string
	logger         *slog.Logger
	now            func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierとcollectorはnilでもよい。
func NewService(
	chats repository.CoffeeChatRepository,
	users UserLookup,
	xp XPAwarder,
	notifier Notifier,
	collector metrics.MetricsCollector,
	meetingBaseURL string,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		chats:          chats,
		users:          users,
		xp:             xp,
		notifier:       notifier,
		metrics:        collector,
		meetingBaseURL: meetingBaseURL,
		logger:         logger,
		now:            time.Now,
	}
}

// CreateForMatch は承認されたマッチに対してpending_slotsのチャットを作成する。
// マッチのaccepted更新とチャット作成は同一トランザクションで行う。
func (s *Service) CreateForMatch(ctx context.Context, match *model.Match) (*model.CoffeeChat, error) {
	now := s.now().UTC()
	chat := &model.CoffeeChat{
		ID:              uuid.NewString(),
		MatchID:         match.ID,
		RequesterID:     match.NeedUserID,
		ExpertID:        match.ExpertUserID,
		Status:          model.ChatStatusPendingSlots,
		DurationMinutes: model.DefaultChatDurationMinutes,
		ProposedSlots:   []model.ProposedSlot{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.chats.CreateFromMatch(ctx, chat); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// マッチの現在状態は呼び出し側で確認する
			return nil, model.NewConcurrentUpdateError()
		}
		return nil, fmt.Errorf("コーヒーチャットの作成に失敗しました: %w", err)
	}

	s.metrics.RecordChatTransition("create", string(chat.Status))
	s.notify(ctx, chat)
	return chat, nil
}

// ProposeSlots はエキスパートが候補日時を3件提案し、チャットをpending_confirmationに進める。
func (s *Service) ProposeSlots(ctx context.Context, userID, chatID string, times []time.Time) (*model.CoffeeChat, error) {
	chat, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.ExpertID != userID {
		return nil, s.reject(EventPropose, "forbidden", model.NewForbiddenError("候補日時を提案できるのはエキスパートのみです"))
	}

	to, err := Transition(chat.Status, EventPropose)
	if err != nil {
		return nil, s.reject(EventPropose, "invalid_transition", model.NewInvalidTransitionError(chat.Status, string(EventPropose)))
	}

	now := s.now()
	if err := ValidateSlotTimes(times, now); err != nil {
		return nil, s.reject(EventPropose, "invalid_slots", model.NewInvalidSlotsError(err.Error()))
	}

	slots := make([]model.ProposedSlot, len(times))
	for i, t := range times {
		slots[i] = model.ProposedSlot{
			ID:           uuid.NewString(),
			CoffeeChatID: chatID,
			ProposedBy:   userID,
			SlotTime:     t.UTC(),
			Status:       model.SlotStatusPending,
			CreatedAt:    now.UTC(),
		}
	}

	if err := s.chats.ProposeSlots(ctx, chatID, chat.Status, to, slots); err != nil {
		return nil, s.persistError(EventPropose, err)
	}

	return s.completeTransition(ctx, EventPropose, chatID)
}

// SelectSlot はリクエスターが候補を1件選択し、日時とミーティングリンクを確定する。
// 選択されなかった候補はrejectedになる。
func (s *Service) SelectSlot(ctx context.Context, userID, chatID, slotID string) (*Confirmation, error) {
	chat, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.RequesterID != userID {
		return nil, s.reject(EventSelect, "forbidden", model.NewForbiddenError("候補日時を選択できるのはリクエスターのみです"))
	}

	to, err := Transition(chat.Status, EventSelect)
	if err != nil {
		return nil, s.reject(EventSelect, "invalid_transition", model.NewInvalidTransitionError(chat.Status, string(EventSelect)))
	}

	var selected *model.ProposedSlot
	for i := range chat.ProposedSlots {
		if chat.ProposedSlots[i].ID == slotID && chat.ProposedSlots[i].Status == model.SlotStatusPending {
			selected = &chat.ProposedSlots[i]
			break
		}
	}
	if selected == nil {
		return nil, s.reject(EventSelect, "slot_not_found", model.NewSlotNotFoundError(slotID))
	}

	link := MeetingLink(s.meetingBaseURL, chat.ID)
	if err := s.chats.Confirm(ctx, chatID, slotID, chat.Status, to, selected.SlotTime, link); err != nil {
		return nil, s.persistError(EventSelect, err)
	}

	if _, err := s.completeTransition(ctx, EventSelect, chatID); err != nil {
		return nil, err
	}
	return &Confirmation{ScheduledTime: selected.SlotTime, MeetingLink: link}, nil
}

// Complete はチャットを完了にする。参加者のどちらでも実行できる。
// 既に完了済みの場合は何もせずに現在のチャットを返す。XPは初回の完了時のみ付与する。
func (s *Service) Complete(ctx context.Context, userID, chatID string) (*model.CoffeeChat, error) {
	chat, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(userID) {
		return nil, s.reject(EventComplete, "forbidden", model.NewForbiddenError("チャットの参加者ではありません"))
	}

	to, err := Transition(chat.Status, EventComplete)
	if err != nil {
		return nil, s.reject(EventComplete, "invalid_transition", model.NewInvalidTransitionError(chat.Status, string(EventComplete)))
	}
	if to == chat.Status {
		return chat, nil
	}

	if err := s.chats.UpdateStatus(ctx, chatID, chat.Status, to); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("コーヒーチャットの完了に失敗しました: %w", err)
		}
		// 相手が先に完了していれば成功として扱う
		current, loadErr := s.load(ctx, chatID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.Status == model.ChatStatusCompleted {
			return current, nil
		}
		return nil, s.persistError(EventComplete, err)
	}

	s.award(ctx, chat.RequesterID, gamification.XPChatAsRequester, "coffee chat completed as requester")
	s.award(ctx, chat.ExpertID, gamification.XPChatAsExpert, "coffee chat completed as expert")

	return s.completeTransition(ctx, EventComplete, chatID)
}

// Cancel は終端状態でないチャットをキャンセルする。参加者のどちらでも実行できる。
func (s *Service) Cancel(ctx context.Context, userID, chatID string) (*model.CoffeeChat, error) {
	chat, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(userID) {
		return nil, s.reject(EventCancel, "forbidden", model.NewForbiddenError("チャットの参加者ではありません"))
	}

	to, err := Transition(chat.Status, EventCancel)
	if err != nil {
		return nil, s.reject(EventCancel, "invalid_transition", model.NewInvalidTransitionError(chat.Status, string(EventCancel)))
	}

	if err := s.chats.UpdateStatus(ctx, chatID, chat.Status, to); err != nil {
		return nil, s.persistError(EventCancel, err)
	}

	return s.completeTransition(ctx, EventCancel, chatID)
}

// ListForUser はユーザーが参加するチャットを参加者情報付きで返す。
func (s *Service) ListForUser(ctx context.Context, userID string) ([]ChatView, error) {
	chats, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("コーヒーチャット一覧の取得に失敗しました: %w", err)
	}
	return s.enrich(ctx, chats)
}

// ListAll は全チャットを参加者情報付きで返す。
func (s *Service) ListAll(ctx context.Context) ([]ChatView, error) {
	chats, err := s.chats.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("コーヒーチャット一覧の取得に失敗しました: %w", err)
	}
	return s.enrich(ctx, chats)
}

func (s *Service) enrich(ctx context.Context, chats []*model.CoffeeChat) ([]ChatView, error) {
	ids := make([]string, 0, len(chats)*2)
	for _, c := range chats {
		ids = append(ids, c.RequesterID, c.ExpertID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("参加者情報の取得に失敗しました: %w", err)
	}

	views := make([]ChatView, len(chats))
	for i, c := range chats {
		views[i] = ChatView{
			Chat:      c,
			Requester: users[c.RequesterID],
			Expert:    users[c.ExpertID],
		}
	}
	return views, nil
}

func (s *Service) load(ctx context.Context, chatID string) (*model.CoffeeChat, error) {
	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("コーヒーチャットの取得に失敗しました: %w", err)
	}
	if chat == nil {
		return nil, model.NewChatNotFoundError(chatID)
	}
	return chat, nil
}

// completeTransition は永続化済みの遷移を記録・通知し、最新のチャットを返す。
func (s *Service) completeTransition(ctx context.Context, event Event, chatID string) (*model.CoffeeChat, error) {
	chat, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordChatTransition(string(event), string(chat.Status))
	s.logger.InfoContext(ctx, "coffee chat transitioned",
		slog.String("chat_id", chat.ID),
		slog.String("event", string(event)),
		slog.String("status", string(chat.Status)),
	)
	s.notify(ctx, chat)
	return chat, nil
}

func (s *Service) reject(event Event, reason string, apiErr *model.APIError) error {
	s.metrics.RecordTransitionRejected(string(event), reason)
	return apiErr
}

func (s *Service) persistError(event Event, err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return s.reject(event, "conflict", model.NewConcurrentUpdateError())
	}
	return fmt.Errorf("コーヒーチャットの更新に失敗しました（%s）: %w", event, err)
}

func (s *Service) award(ctx context.Context, userID string, amount int, reason string) {
	if s.xp == nil {
		return
	}
	if _, err := s.xp.Award(ctx, userID, amount, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to award xp",
			slog.String("user_id", userID),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) notify(ctx context.Context, chat *model.CoffeeChat) {
	if s.notifier != nil {
		s.notifier.ChatUpdated(ctx, chat)
	}
}
