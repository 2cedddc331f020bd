package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/founderhub/internal/client"
	"github.com/hitoshi/founderhub/internal/model"
)

type mockAPI struct {
	coffeeChatsFn      func(ctx context.Context, userID string) ([]client.CoffeeChat, error)
	requesterMatchesFn func(ctx context.Context, userID string) ([]client.Match, error)
	expertMatchesFn    func(ctx context.Context, userID string) ([]client.Match, error)
	proposeSlotsFn     func(ctx context.Context, chatID string, times []time.Time) ([]client.Slot, error)
	selectSlotFn       func(ctx context.Context, chatID, slotID string) (*client.Confirmation, error)
	completeChatFn     func(ctx context.Context, chatID string) (model.ChatStatus, error)
	cancelChatFn       func(ctx context.Context, chatID string) (model.ChatStatus, error)
	acceptMatchFn      func(ctx context.Context, matchID string) (*client.AcceptResult, error)
	declineMatchFn     func(ctx context.Context, matchID string) error
	submitCheckinFn    func(ctx context.Context, text string) (*client.CheckinResult, error)

	calls atomic.Int32
}

func (m *mockAPI) CoffeeChats(ctx context.Context, userID string) ([]client.CoffeeChat, error) {
	m.calls.Add(1)
	if m.coffeeChatsFn != nil {
		return m.coffeeChatsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAPI) RequesterMatches(ctx context.Context, userID string) ([]client.Match, error) {
	m.calls.Add(1)
	if m.requesterMatchesFn != nil {
		return m.requesterMatchesFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAPI) ExpertMatches(ctx context.Context, userID string) ([]client.Match, error) {
	m.calls.Add(1)
	if m.expertMatchesFn != nil {
		return m.expertMatchesFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAPI) ProposeSlots(ctx context.Context, chatID string, times []time.Time) ([]client.Slot, error) {
	m.calls.Add(1)
	if m.proposeSlotsFn != nil {
		return m.proposeSlotsFn(ctx, chatID, times)
	}
	return nil, nil
}

func (m *mockAPI) SelectSlot(ctx context.Context, chatID, slotID string) (*client.Confirmation, error) {
	m.calls.Add(1)
	if m.selectSlotFn != nil {
		return m.selectSlotFn(ctx, chatID, slotID)
	}
	return &client.Confirmation{}, nil
}

func (m *mockAPI) CompleteChat(ctx context.Context, chatID string) (model.ChatStatus, error) {
	m.calls.Add(1)
	if m.completeChatFn != nil {
		return m.completeChatFn(ctx, chatID)
	}
	return model.ChatStatusCompleted, nil
}

func (m *mockAPI) CancelChat(ctx context.Context, chatID string) (model.ChatStatus, error) {
	m.calls.Add(1)
	if m.cancelChatFn != nil {
		return m.cancelChatFn(ctx, chatID)
	}
	return model.ChatStatusCancelled, nil
}

func (m *mockAPI) AcceptMatch(ctx context.Context, matchID string) (*client.AcceptResult, error) {
	m.calls.Add(1)
	if m.acceptMatchFn != nil {
		return m.acceptMatchFn(ctx, matchID)
	}
	return &client.AcceptResult{}, nil
}

func (m *mockAPI) DeclineMatch(ctx context.Context, matchID string) error {
	m.calls.Add(1)
	if m.declineMatchFn != nil {
		return m.declineMatchFn(ctx, matchID)
	}
	return nil
}

func (m *mockAPI) SubmitCheckin(ctx context.Context, text string) (*client.CheckinResult, error) {
	m.calls.Add(1)
	if m.submitCheckinFn != nil {
		return m.submitCheckinFn(ctx, text)
	}
	return &client.CheckinResult{}, nil
}

var testNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newTestCoordinator(api *mockAPI) *Coordinator {
	session := &Session{UserID: "u-expert", API: api, Now: func() time.Time { return testNow }}
	return NewCoordinator(session, nil)
}

// backend は提案と選択の結果を保持し、再取得で返すモック。
type backend struct {
	mu   sync.Mutex
	chat client.CoffeeChat
}

func (b *backend) api() *mockAPI {
	return &mockAPI{
		coffeeChatsFn: func(ctx context.Context, userID string) ([]client.CoffeeChat, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			return []client.CoffeeChat{cloneChat(b.chat)}, nil
		},
		proposeSlotsFn: func(ctx context.Context, chatID string, times []time.Time) ([]client.Slot, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.chat.Status = model.ChatStatusPendingConfirmation
			b.chat.ProposedSlots = nil
			for i, tm := range times {
				b.chat.ProposedSlots = append(b.chat.ProposedSlots, client.Slot{
					ID:           []string{"slot-1", "slot-2", "slot-3"}[i],
					CoffeeChatID: chatID,
					SlotTime:     tm,
					Status:       model.SlotStatusPending,
				})
			}
			return append([]client.Slot(nil), b.chat.ProposedSlots...), nil
		},
		selectSlotFn: func(ctx context.Context, chatID, slotID string) (*client.Confirmation, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i := range b.chat.ProposedSlots {
				if b.chat.ProposedSlots[i].ID == slotID {
					b.chat.ProposedSlots[i].Status = model.SlotStatusSelected
					t := b.chat.ProposedSlots[i].SlotTime
					link := "https://meet.jit.si/FounderChat-" + chatID
					b.chat.Status = model.ChatStatusConfirmed
					b.chat.ScheduledTime = &t
					b.chat.MeetingLink = &link
					return &client.Confirmation{ScheduledTime: t, MeetingLink: link}, nil
				}
			}
			return nil, &client.StatusError{StatusCode: 404, Code: "SLOT_NOT_FOUND"}
		},
	}
}

func TestCoordinator_ProposeAndSelectScenario(t *testing.T) {
	b := &backend{chat: client.CoffeeChat{ID: "chat-c", Status: model.ChatStatusPendingSlots}}
	api := b.api()
	c := newTestCoordinator(api)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx))

	day := 24 * time.Hour
	slots, err := c.ProposeSlots(ctx, "chat-c", []time.Time{testNow.Add(day), testNow.Add(2 * day), testNow.Add(3 * day)})
	require.NoError(t, err)
	require.Len(t, slots, 3)

	st := c.State()
	require.Len(t, st.Chats, 1)
	assert.Equal(t, model.ChatStatusPendingConfirmation, st.Chats[0].Status)
	require.Len(t, st.Chats[0].ProposedSlots, 3)
	for _, s := range st.Chats[0].ProposedSlots {
		assert.Equal(t, model.SlotStatusPending, s.Status)
	}

	conf, err := c.SelectSlot(ctx, "chat-c", "slot-2")
	require.NoError(t, err)
	assert.Equal(t, "https://meet.jit.si/FounderChat-chat-c", conf.MeetingLink)

	chat := c.State().Chats[0]
	assert.Equal(t, model.ChatStatusConfirmed, chat.Status)
	require.NotNil(t, chat.ScheduledTime)
	assert.True(t, chat.ScheduledTime.Equal(testNow.Add(2*day)))
	require.NotNil(t, chat.MeetingLink)
	assert.NotEmpty(t, *chat.MeetingLink)
	assert.NotEqual(t, model.SlotStatusSelected, chat.ProposedSlots[0].Status)
	assert.NotEqual(t, model.SlotStatusSelected, chat.ProposedSlots[2].Status)
}

func TestCoordinator_ProposeFewerThanThreeSlotsMakesNoCall(t *testing.T) {
	api := &mockAPI{}
	c := newTestCoordinator(api)

	_, err := c.ProposeSlots(context.Background(), "chat-c", []time.Time{testNow.Add(time.Hour), testNow.Add(2 * time.Hour)})

	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int32(0), api.calls.Load())
	require.NotNil(t, c.State().LastError)
	assert.Equal(t, "propose_slots", c.State().LastError.Op)
}

func TestCoordinator_SubmitShortCheckinMakesNoCall(t *testing.T) {
	api := &mockAPI{}
	c := newTestCoordinator(api)

	_, err := c.SubmitCheckin(context.Background(), "短すぎる")

	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int32(0), api.calls.Load())
}

func TestCoordinator_SelectForeignSlotSurfacesBackendError(t *testing.T) {
	b := &backend{chat: client.CoffeeChat{ID: "chat-c", Status: model.ChatStatusPendingConfirmation}}
	c := newTestCoordinator(b.api())

	_, err := c.SelectSlot(context.Background(), "chat-c", "slot-of-other-chat")

	require.Error(t, err)
	assert.True(t, client.IsStatus(err, 404))
	require.NotNil(t, c.State().LastError)
	assert.Equal(t, "select_slot", c.State().LastError.Op)
}

func TestCoordinator_CompleteIsIdempotent(t *testing.T) {
	var status = model.ChatStatusConfirmed
	api := &mockAPI{
		coffeeChatsFn: func(ctx context.Context, userID string) ([]client.CoffeeChat, error) {
			return []client.CoffeeChat{{ID: "chat-c", Status: status}}, nil
		},
		completeChatFn: func(ctx context.Context, chatID string) (model.ChatStatus, error) {
			status = model.ChatStatusCompleted
			return status, nil
		},
	}
	c := newTestCoordinator(api)
	ctx := context.Background()

	require.NoError(t, c.Complete(ctx, "chat-c"))
	require.NoError(t, c.Complete(ctx, "chat-c"))

	assert.Equal(t, model.ChatStatusCompleted, c.State().Chats[0].Status)
	assert.Empty(t, c.ActiveChats())
}

func TestCoordinator_AcceptAndDeclineMatch(t *testing.T) {
	matches := []client.Match{
		{ID: "m-1", Status: model.MatchStatusPending},
		{ID: "m-2", Status: model.MatchStatusPending},
	}
	api := &mockAPI{
		expertMatchesFn: func(ctx context.Context, userID string) ([]client.Match, error) {
			return append([]client.Match(nil), matches...), nil
		},
		acceptMatchFn: func(ctx context.Context, matchID string) (*client.AcceptResult, error) {
			matches[0].Status = model.MatchStatusAccepted
			return &client.AcceptResult{
				XPGained:   10,
				CoffeeChat: &client.CoffeeChat{ID: "chat-new", MatchID: matchID, Status: model.ChatStatusPendingSlots},
			}, nil
		},
		declineMatchFn: func(ctx context.Context, matchID string) error {
			matches[1].Status = model.MatchStatusDeclined
			return nil
		},
	}
	c := newTestCoordinator(api)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	res, err := c.AcceptMatch(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 10, res.XPGained)
	require.NoError(t, c.DeclineMatch(ctx, "m-2"))

	st := c.State()
	assert.Equal(t, model.MatchStatusAccepted, st.ExpertMatches[0].Status)
	assert.Equal(t, model.MatchStatusDeclined, st.ExpertMatches[1].Status)
}

func TestCoordinator_LoadFailureKeepsPreviousData(t *testing.T) {
	fail := false
	api := &mockAPI{
		coffeeChatsFn: func(ctx context.Context, userID string) ([]client.CoffeeChat, error) {
			return []client.CoffeeChat{{ID: "chat-c", Status: model.ChatStatusPendingSlots}}, nil
		},
		requesterMatchesFn: func(ctx context.Context, userID string) ([]client.Match, error) {
			if fail {
				return nil, errors.New("connection refused")
			}
			return nil, nil
		},
	}
	c := newTestCoordinator(api)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	fail = true
	err := c.Load(ctx)

	require.Error(t, err)
	st := c.State()
	assert.Len(t, st.Chats, 1)
	require.NotNil(t, st.LastError)
	assert.Equal(t, "load", st.LastError.Op)
}

func TestCoordinator_LoadSkipsWhileInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	api := &mockAPI{
		coffeeChatsFn: func(ctx context.Context, userID string) ([]client.CoffeeChat, error) {
			close(entered)
			<-release
			return nil, nil
		},
	}
	c := newTestCoordinator(api)

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()
	<-entered

	err := c.Load(context.Background())
	assert.ErrorIs(t, err, ErrInFlight)

	close(release)
	assert.NoError(t, <-done)
}

func TestCoordinator_StaleLoadDoesNotOverwriteProposal(t *testing.T) {
	b := &backend{chat: client.CoffeeChat{ID: "chat-c", Status: model.ChatStatusPendingSlots}}
	api := b.api()
	fresh := api.coffeeChatsFn

	var polls atomic.Int32
	snapshotTaken := make(chan struct{})
	releasePoll := make(chan struct{})
	api.coffeeChatsFn = func(ctx context.Context, userID string) ([]client.CoffeeChat, error) {
		chats, err := fresh(ctx, userID)
		if polls.Add(1) == 2 {
			close(snapshotTaken)
			<-releasePoll
		}
		return chats, err
	}
	c := newTestCoordinator(api)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	pollDone := make(chan error, 1)
	go func() { pollDone <- c.Load(ctx) }()
	<-snapshotTaken

	day := 24 * time.Hour
	_, err := c.ProposeSlots(ctx, "chat-c", []time.Time{testNow.Add(day), testNow.Add(2 * day), testNow.Add(3 * day)})
	require.NoError(t, err)
	assert.Equal(t, model.ChatStatusPendingConfirmation, c.State().Chats[0].Status)

	close(releasePoll)
	require.NoError(t, <-pollDone)

	chat := c.State().Chats[0]
	assert.Equal(t, model.ChatStatusPendingConfirmation, chat.Status)
	assert.Len(t, chat.ProposedSlots, 3)
	assert.Equal(t, int32(3), polls.Load(), "stale snapshot should be fetched again")
}

func TestCoordinator_LoadGivesUpAfterRepeatedChanges(t *testing.T) {
	api := &mockAPI{}
	c := newTestCoordinator(api)
	api.coffeeChatsFn = func(ctx context.Context, userID string) ([]client.CoffeeChat, error) {
		c.invalidate()
		return []client.CoffeeChat{{ID: "chat-stale", Status: model.ChatStatusPendingSlots}}, nil
	}
	c.dispatch(ChatsLoaded{Chats: []client.CoffeeChat{{ID: "chat-c", Status: model.ChatStatusConfirmed}}})

	require.NoError(t, c.Load(context.Background()))

	st := c.State()
	require.Len(t, st.Chats, 1)
	assert.Equal(t, "chat-c", st.Chats[0].ID)
	assert.Equal(t, int32(maxLoadAttempts*3), api.calls.Load())
}
