package workflow

import (
	"time"

	"github.com/hitoshi/founderhub/internal/client"
	"github.com/hitoshi/founderhub/internal/model"
)

// State はダッシュボードに表示するチャットとマッチの状態。
type State struct {
	Chats            []client.CoffeeChat
	RequesterMatches []client.Match
	ExpertMatches    []client.Match
	// LastError は直近に失敗した操作。成功した操作で解除される。
	LastError *Failure
}

// Failure は失敗した操作とその原因。
type Failure struct {
	Op  string
	Err error
}

// Action はReduceに渡す操作結果。
type Action interface {
	action()
}

// ChatsLoaded は一覧の再取得結果。
type ChatsLoaded struct {
	Chats            []client.CoffeeChat
	RequesterMatches []client.Match
	ExpertMatches    []client.Match
}

// SlotsProposed は候補日時の提案結果。
type SlotsProposed struct {
	ChatID string
	Slots  []client.Slot
}

// SlotSelected は候補選択の結果。
type SlotSelected struct {
	ChatID        string
	SlotID        string
	ScheduledTime time.Time
	MeetingLink   string
}

// ChatCompleted はチャット完了の結果。
type ChatCompleted struct{ ChatID string }

// ChatCancelled はチャットキャンセルの結果。
type ChatCancelled struct{ ChatID string }

// MatchAccepted はマッチ承認の結果。Chatは作成されたチャット。
type MatchAccepted struct {
	MatchID string
	Chat    *client.CoffeeChat
}

// MatchDeclined はマッチ辞退の結果。
type MatchDeclined struct{ MatchID string }

// Failed は操作の失敗。
type Failed struct {
	Op  string
	Err error
}

func (ChatsLoaded) action()   {}
func (SlotsProposed) action() {}
func (SlotSelected) action()  {}
func (ChatCompleted) action() {}
func (ChatCancelled) action() {}
func (MatchAccepted) action() {}
func (MatchDeclined) action() {}
func (Failed) action()        {}

// Reduce は現在の状態とアクションから次の状態を返す。
// 入力の状態は変更せず、変更が必要なスライスは複製する。
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case ChatsLoaded:
		return State{
			Chats:            cloneChats(a.Chats),
			RequesterMatches: append([]client.Match(nil), a.RequesterMatches...),
			ExpertMatches:    append([]client.Match(nil), a.ExpertMatches...),
		}

	case SlotsProposed:
		s.Chats = updateChat(s.Chats, a.ChatID, func(c *client.CoffeeChat) {
			c.Status = model.ChatStatusPendingConfirmation
			c.ProposedSlots = append([]client.Slot(nil), a.Slots...)
		})

	case SlotSelected:
		s.Chats = updateChat(s.Chats, a.ChatID, func(c *client.CoffeeChat) {
			c.Status = model.ChatStatusConfirmed
			t := a.ScheduledTime
			c.ScheduledTime = &t
			link := a.MeetingLink
			c.MeetingLink = &link
			for i := range c.ProposedSlots {
				if c.ProposedSlots[i].ID == a.SlotID {
					c.ProposedSlots[i].Status = model.SlotStatusSelected
				} else {
					c.ProposedSlots[i].Status = model.SlotStatusRejected
				}
			}
		})

	case ChatCompleted:
		s.Chats = updateChat(s.Chats, a.ChatID, func(c *client.CoffeeChat) {
			c.Status = model.ChatStatusCompleted
		})

	case ChatCancelled:
		s.Chats = updateChat(s.Chats, a.ChatID, func(c *client.CoffeeChat) {
			c.Status = model.ChatStatusCancelled
		})

	case MatchAccepted:
		s.ExpertMatches = updateMatch(s.ExpertMatches, a.MatchID, model.MatchStatusAccepted)
		if a.Chat != nil && indexOfChat(s.Chats, a.Chat.ID) < 0 {
			s.Chats = append(cloneChats(s.Chats), cloneChat(*a.Chat))
		}

	case MatchDeclined:
		s.ExpertMatches = updateMatch(s.ExpertMatches, a.MatchID, model.MatchStatusDeclined)

	case Failed:
		s.LastError = &Failure{Op: a.Op, Err: a.Err}
		return s
	}

	s.LastError = nil
	return s
}

func indexOfChat(chats []client.CoffeeChat, id string) int {
	for i := range chats {
		if chats[i].ID == id {
			return i
		}
	}
	return -1
}

// updateChat はidのチャットに変更を適用した新しいスライスを返す。該当がなければ元のスライスを返す。
func updateChat(chats []client.CoffeeChat, id string, apply func(*client.CoffeeChat)) []client.CoffeeChat {
	i := indexOfChat(chats, id)
	if i < 0 {
		return chats
	}
	out := append([]client.CoffeeChat(nil), chats...)
	c := cloneChat(out[i])
	apply(&c)
	out[i] = c
	return out
}

func updateMatch(matches []client.Match, id string, status model.MatchStatus) []client.Match {
	for i := range matches {
		if matches[i].ID == id {
			out := append([]client.Match(nil), matches...)
			out[i].Status = status
			return out
		}
	}
	return matches
}

func cloneChats(chats []client.CoffeeChat) []client.CoffeeChat {
	if chats == nil {
		return nil
	}
	out := make([]client.CoffeeChat, len(chats))
	for i, c := range chats {
		out[i] = cloneChat(c)
	}
	return out
}

func cloneChat(c client.CoffeeChat) client.CoffeeChat {
	c.ProposedSlots = append([]client.Slot(nil), c.ProposedSlots...)
	if c.ScheduledTime != nil {
		t := *c.ScheduledTime
		c.ScheduledTime = &t
	}
	if c.MeetingLink != nil {
		l := *c.MeetingLink
		c.MeetingLink = &l
	}
	return c
}
