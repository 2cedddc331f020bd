package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/founderhub/internal/client"
	"github.com/hitoshi/founderhub/internal/model"
)

func proposedSlots(chatID string, base time.Time) []client.Slot {
	slots := make([]client.Slot, RequiredSlots)
	for i := range slots {
		slots[i] = client.Slot{
			ID:           []string{"slot-1", "slot-2", "slot-3"}[i],
			CoffeeChatID: chatID,
			SlotTime:     base.Add(time.Duration(i+1) * 24 * time.Hour),
			Status:       model.SlotStatusPending,
		}
	}
	return slots
}

func TestReduce_ProposeThenSelect(t *testing.T) {
	base := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	s := Reduce(State{}, ChatsLoaded{Chats: []client.CoffeeChat{
		{ID: "chat-c", Status: model.ChatStatusPendingSlots},
	}})

	s = Reduce(s, SlotsProposed{ChatID: "chat-c", Slots: proposedSlots("chat-c", base)})
	require.Len(t, s.Chats, 1)
	assert.Equal(t, model.ChatStatusPendingConfirmation, s.Chats[0].Status)
	require.Len(t, s.Chats[0].ProposedSlots, 3)
	for _, slot := range s.Chats[0].ProposedSlots {
		assert.Equal(t, model.SlotStatusPending, slot.Status)
	}

	slot2 := s.Chats[0].ProposedSlots[1]
	s = Reduce(s, SlotSelected{
		ChatID:        "chat-c",
		SlotID:        slot2.ID,
		ScheduledTime: slot2.SlotTime,
		MeetingLink:   "https://meet.jit.si/FounderChat-chat-c",
	})

	chat := s.Chats[0]
	assert.Equal(t, model.ChatStatusConfirmed, chat.Status)
	require.NotNil(t, chat.ScheduledTime)
	assert.True(t, chat.ScheduledTime.Equal(slot2.SlotTime))
	require.NotNil(t, chat.MeetingLink)
	assert.NotEmpty(t, *chat.MeetingLink)
	assert.Equal(t, model.SlotStatusSelected, chat.ProposedSlots[1].Status)
	assert.NotEqual(t, model.SlotStatusSelected, chat.ProposedSlots[0].Status)
	assert.NotEqual(t, model.SlotStatusSelected, chat.ProposedSlots[2].Status)
}

func TestReduce_IsPure(t *testing.T) {
	base := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	before := Reduce(State{}, ChatsLoaded{Chats: []client.CoffeeChat{
		{ID: "chat-c", Status: model.ChatStatusPendingConfirmation, ProposedSlots: proposedSlots("chat-c", base)},
	}})

	after := Reduce(before, SlotSelected{ChatID: "chat-c", SlotID: "slot-1", ScheduledTime: base, MeetingLink: "link"})

	assert.Equal(t, model.ChatStatusPendingConfirmation, before.Chats[0].Status)
	assert.Nil(t, before.Chats[0].ScheduledTime)
	assert.Equal(t, model.SlotStatusPending, before.Chats[0].ProposedSlots[0].Status)
	assert.Equal(t, model.ChatStatusConfirmed, after.Chats[0].Status)
}

func TestReduce_CompleteAndCancel(t *testing.T) {
	s := Reduce(State{}, ChatsLoaded{Chats: []client.CoffeeChat{
		{ID: "a", Status: model.ChatStatusConfirmed},
		{ID: "b", Status: model.ChatStatusPendingSlots},
	}})

	s = Reduce(s, ChatCompleted{ChatID: "a"})
	s = Reduce(s, ChatCompleted{ChatID: "a"})
	s = Reduce(s, ChatCancelled{ChatID: "b"})

	assert.Equal(t, model.ChatStatusCompleted, s.Chats[0].Status)
	assert.Equal(t, model.ChatStatusCancelled, s.Chats[1].Status)
}

func TestReduce_UnknownChatIsNoop(t *testing.T) {
	s := Reduce(State{}, ChatsLoaded{Chats: []client.CoffeeChat{{ID: "a", Status: model.ChatStatusConfirmed}}})
	next := Reduce(s, ChatCompleted{ChatID: "missing"})
	assert.Equal(t, s.Chats, next.Chats)
}

func TestReduce_MatchDecisions(t *testing.T) {
	s := Reduce(State{}, ChatsLoaded{ExpertMatches: []client.Match{
		{ID: "m-1", Status: model.MatchStatusPending},
		{ID: "m-2", Status: model.MatchStatusPending},
	}})

	chat := &client.CoffeeChat{ID: "chat-new", MatchID: "m-1", Status: model.ChatStatusPendingSlots}
	s = Reduce(s, MatchAccepted{MatchID: "m-1", Chat: chat})
	s = Reduce(s, MatchDeclined{MatchID: "m-2"})

	assert.Equal(t, model.MatchStatusAccepted, s.ExpertMatches[0].Status)
	assert.Equal(t, model.MatchStatusDeclined, s.ExpertMatches[1].Status)
	require.Len(t, s.Chats, 1)
	assert.Equal(t, model.ChatStatusPendingSlots, s.Chats[0].Status)

	// 同じチャットを二重に追加しない
	s = Reduce(s, MatchAccepted{MatchID: "m-1", Chat: chat})
	assert.Len(t, s.Chats, 1)
}

func TestReduce_FailedKeepsDataAndSuccessClearsError(t *testing.T) {
	s := Reduce(State{}, ChatsLoaded{Chats: []client.CoffeeChat{{ID: "a", Status: model.ChatStatusConfirmed}}})

	s = Reduce(s, Failed{Op: "complete", Err: errors.New("boom")})
	require.NotNil(t, s.LastError)
	assert.Equal(t, "complete", s.LastError.Op)
	assert.Len(t, s.Chats, 1)

	s = Reduce(s, ChatCompleted{ChatID: "a"})
	assert.Nil(t, s.LastError)
}
