package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/founderhub/internal/client"
	"github.com/hitoshi/founderhub/internal/model"
)

// API はコーディネーターが使用するバックエンドAPIの操作。*client.Clientが満たす。
type API interface {
	CoffeeChats(ctx context.Context, userID string) ([]client.CoffeeChat, error)
	RequesterMatches(ctx context.Context, userID string) ([]client.Match, error)
	ExpertMatches(ctx context.Context, userID string) ([]client.Match, error)
	ProposeSlots(ctx context.Context, chatID string, times []time.Time) ([]client.Slot, error)
	SelectSlot(ctx context.Context, chatID, slotID string) (*client.Confirmation, error)
	CompleteChat(ctx context.Context, chatID string) (model.ChatStatus, error)
	CancelChat(ctx context.Context, chatID string) (model.ChatStatus, error)
	AcceptMatch(ctx context.Context, matchID string) (*client.AcceptResult, error)
	DeclineMatch(ctx context.Context, matchID string) error
	SubmitCheckin(ctx context.Context, text string) (*client.CheckinResult, error)
}

// Session はログイン中のユーザーと、操作に必要な依存関係をまとめたコンテキスト。
type Session struct {
	UserID string
	API    API
	Now    func() time.Time
}

// NewSession はSessionを生成する。時計には現在時刻を使用する。
func NewSession(api API, userID string) *Session {
	return &Session{UserID: userID, API: api, Now: time.Now}
}

// Coordinator はSessionに対する日程調整の操作を実行し、結果を状態に反映する。
// 同じリソースに対する操作は同時に1つだけ実行する。
type Coordinator struct {
	session *Session
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	inFlight map[string]struct{}
	// mutations は一覧の再取得以外で状態が変わるたびに増える。
	mutations uint64
}

// maxLoadAttempts は取得中に状態が更新された場合にLoadが取得をやり直す上限。
const maxLoadAttempts = 3

// NewCoordinator はCoordinatorを生成する。
func NewCoordinator(session *Session, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if session.Now == nil {
		session.Now = time.Now
	}
	return &Coordinator{
		session:  session,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// State は現在の状態を返す。
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveChats は現在時刻で絞り込んだ表示対象のチャットを返す。
func (c *Coordinator) ActiveChats() []client.CoffeeChat {
	return ActiveChats(c.State().Chats, c.session.Now())
}

func (c *Coordinator) dispatch(a Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch a.(type) {
	case ChatsLoaded, Failed:
	default:
		c.mutations++
	}
	c.state = Reduce(c.state, a)
}

// invalidate は状態を直接変えない操作の成功を記録し、実行中のLoadに取得し直させる。
func (c *Coordinator) invalidate() {
	c.mu.Lock()
	c.mutations++
	c.mu.Unlock()
}

func (c *Coordinator) mutationCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutations
}

// applyLoaded は取得開始時点から状態が更新されていない場合のみ一覧を反映する。
func (c *Coordinator) applyLoaded(loaded ChatsLoaded, since uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mutations != since {
		return false
	}
	c.state = Reduce(c.state, loaded)
	return true
}

// acquire はリソースkeyの実行権を取得する。既に実行中の場合はErrInFlightを返す。
func (c *Coordinator) acquire(key string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[key]; busy {
		return nil, fmt.Errorf("%s: %w", key, ErrInFlight)
	}
	c.inFlight[key] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}, nil
}

func (c *Coordinator) fail(op string, err error) error {
	c.logger.Warn("workflow operation failed",
		slog.String("op", op),
		slog.String("user_id", c.session.UserID),
		slog.String("error", err.Error()),
	)
	c.dispatch(Failed{Op: op, Err: err})
	return err
}

// Load はチャットとマッチの一覧を並行して取得し、状態を置き換える。
// 前回のLoadが実行中の場合はErrInFlightを返す。
// 取得中に他の操作が状態を更新した場合、その取得結果は捨てて取得し直す。
func (c *Coordinator) Load(ctx context.Context) error {
	release, err := c.acquire("load")
	if err != nil {
		return err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		since := c.mutationCount()
		loaded, err := c.fetch(ctx)
		if err != nil {
			return c.fail("load", err)
		}
		if c.applyLoaded(loaded, since) {
			return nil
		}
		if attempt == maxLoadAttempts {
			c.logger.Warn("load discarded: state changed during every attempt",
				slog.String("user_id", c.session.UserID),
				slog.Int("attempts", attempt),
			)
			return nil
		}
		c.logger.Debug("load snapshot is stale, fetching again", slog.Int("attempt", attempt))
	}
}

func (c *Coordinator) fetch(ctx context.Context) (ChatsLoaded, error) {
	var loaded ChatsLoaded
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		chats, err := c.session.API.CoffeeChats(gctx, c.session.UserID)
		loaded.Chats = chats
		return err
	})
	g.Go(func() error {
		matches, err := c.session.API.RequesterMatches(gctx, c.session.UserID)
		loaded.RequesterMatches = matches
		return err
	})
	g.Go(func() error {
		matches, err := c.session.API.ExpertMatches(gctx, c.session.UserID)
		loaded.ExpertMatches = matches
		return err
	})
	if err := g.Wait(); err != nil {
		return ChatsLoaded{}, err
	}
	return loaded, nil
}

// reload は操作成功後に一覧を再取得する。失敗は状態に記録するが、操作自体の結果は変えない。
// 実行中のLoadがある場合は、そのLoadが更新を検知して取得し直す。
func (c *Coordinator) reload(ctx context.Context) {
	if err := c.Load(ctx); err != nil && !errors.Is(err, ErrInFlight) {
		c.logger.Warn("reload after operation failed", slog.String("error", err.Error()))
	}
}

// ProposeSlots は候補日時を検証して提案する。検証に失敗した場合はAPIを呼び出さない。
func (c *Coordinator) ProposeSlots(ctx context.Context, chatID string, times []time.Time) ([]client.Slot, error) {
	if err := ValidateSlots(times, c.session.Now()); err != nil {
		return nil, c.fail("propose_slots", err)
	}

	release, err := c.acquire("chat:" + chatID)
	if err != nil {
		return nil, err
	}
	slots, err := c.session.API.ProposeSlots(ctx, chatID, times)
	release()
	if err != nil {
		return nil, c.fail("propose_slots", err)
	}

	c.dispatch(SlotsProposed{ChatID: chatID, Slots: slots})
	c.reload(ctx)
	return slots, nil
}

// SelectSlot は候補を選択する。確定したミーティングリンクはそのまま返す。
func (c *Coordinator) SelectSlot(ctx context.Context, chatID, slotID string) (*client.Confirmation, error) {
	release, err := c.acquire("chat:" + chatID)
	if err != nil {
		return nil, err
	}
	conf, err := c.session.API.SelectSlot(ctx, chatID, slotID)
	release()
	if err != nil {
		return nil, c.fail("select_slot", err)
	}

	c.dispatch(SlotSelected{
		ChatID:        chatID,
		SlotID:        slotID,
		ScheduledTime: conf.ScheduledTime,
		MeetingLink:   conf.MeetingLink,
	})
	c.reload(ctx)
	return conf, nil
}

// Complete はチャットを完了にする。完了済みのチャットに対しても成功する。
func (c *Coordinator) Complete(ctx context.Context, chatID string) error {
	release, err := c.acquire("chat:" + chatID)
	if err != nil {
		return err
	}
	_, err = c.session.API.CompleteChat(ctx, chatID)
	release()
	if err != nil {
		return c.fail("complete", err)
	}

	c.dispatch(ChatCompleted{ChatID: chatID})
	c.reload(ctx)
	return nil
}

// Cancel はチャットをキャンセルする。
func (c *Coordinator) Cancel(ctx context.Context, chatID string) error {
	release, err := c.acquire("chat:" + chatID)
	if err != nil {
		return err
	}
	_, err = c.session.API.CancelChat(ctx, chatID)
	release()
	if err != nil {
		return c.fail("cancel", err)
	}

	c.dispatch(ChatCancelled{ChatID: chatID})
	c.reload(ctx)
	return nil
}

// AcceptMatch はマッチを承認する。作成されたチャットは状態に追加される。
func (c *Coordinator) AcceptMatch(ctx context.Context, matchID string) (*client.AcceptResult, error) {
	release, err := c.acquire("match:" + matchID)
	if err != nil {
		return nil, err
	}
	res, err := c.session.API.AcceptMatch(ctx, matchID)
	release()
	if err != nil {
		return nil, c.fail("accept_match", err)
	}

	c.dispatch(MatchAccepted{MatchID: matchID, Chat: res.CoffeeChat})
	c.reload(ctx)
	return res, nil
}

// DeclineMatch はマッチを辞退する。
func (c *Coordinator) DeclineMatch(ctx context.Context, matchID string) error {
	release, err := c.acquire("match:" + matchID)
	if err != nil {
		return err
	}
	err = c.session.API.DeclineMatch(ctx, matchID)
	release()
	if err != nil {
		return c.fail("decline_match", err)
	}

	c.dispatch(MatchDeclined{MatchID: matchID})
	c.reload(ctx)
	return nil
}

// SubmitCheckin は本文を検証して送信する。検証に失敗した場合はAPIを呼び出さない。
func (c *Coordinator) SubmitCheckin(ctx context.Context, text string) (*client.CheckinResult, error) {
	if err := ValidateCheckin(text); err != nil {
		return nil, c.fail("submit_checkin", err)
	}

	release, err := c.acquire("checkin")
	if err != nil {
		return nil, err
	}
	res, err := c.session.API.SubmitCheckin(ctx, text)
	release()
	if err != nil {
		return nil, c.fail("submit_checkin", err)
	}

	c.invalidate()
	c.reload(ctx)
	return res, nil
}
