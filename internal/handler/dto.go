package handler

import (
	"time"

	"github.com/hitoshi/founderhub/internal/admin"
	"github.com/hitoshi/founderhub/internal/matching"
	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/scheduling"
)

// userResponse はユーザーのJSON表現。
type userResponse struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Company       string        `json:"company"`
	Role          string        `json:"role"`
	Bio           string        `json:"bio"`
	Skills        []model.Skill `json:"skills"`
	XP            int           `json:"xp"`
	Level         int           `json:"level"`
	Badges        []string      `json:"badges"`
	TotalCheckins int           `json:"total_checkins"`
	TotalMatches  int           `json:"total_matches"`
	TotalChats    int           `json:"total_chats"`
	CreatedAt     time.Time     `json:"created_at"`
}

func toUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	skills := u.Skills
	if skills == nil {
		skills = []model.Skill{}
	}
	badges := u.Badges
	if badges == nil {
		badges = []string{}
	}
	return &userResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Company:       u.Company,
		Role:          u.Role,
		Bio:           u.Bio,
		Skills:        skills,
		XP:            u.XP,
		Level:         u.Level,
		Badges:        badges,
		TotalCheckins: u.TotalCheckins,
		TotalMatches:  u.TotalMatches,
		TotalChats:    u.TotalChats,
		CreatedAt:     u.CreatedAt,
	}
}

func toUserResponses(users []*model.User) []*userResponse {
	out := make([]*userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

// entryResponse はニーズ・ラーニングのJSON表現。
type entryResponse struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Label     string        `json:"label"`
	Category  string        `json:"category"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	User      *userResponse `json:"user,omitempty"`
}

func toNeedResponse(n *model.Need, owner *model.User) *entryResponse {
	if n == nil {
		return nil
	}
	return &entryResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Label:     n.Label,
		Category:  n.Category,
		Status:    n.Status,
		CreatedAt: n.CreatedAt,
		User:      toUserResponse(owner),
	}
}

func toLearningResponse(l *model.Learning, owner *model.User) *entryResponse {
	if l == nil {
		return nil
	}
	return &entryResponse{
		ID:        l.ID,
		UserID:    l.UserID,
		Label:     l.Label,
		Category:  l.Category,
		Status:    l.Status,
		CreatedAt: l.CreatedAt,
		User:      toUserResponse(owner),
	}
}

// matchResponse はマッチのJSON表現。一覧の種類に応じて相手ユーザーとニーズを含む。
type matchResponse struct {
	ID           string            `json:"id"`
	NeedID       string            `json:"need_id"`
	NeedUserID   string            `json:"need_user_id"`
	ExpertUserID string            `json:"expert_user_id"`
	Score        float64           `json:"score"`
	Reason       string            `json:"reason"`
	Status       model.MatchStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	Need         *entryResponse    `json:"need,omitempty"`
	Requester    *userResponse     `json:"requester,omitempty"`
	Expert       *userResponse     `json:"expert,omitempty"`
}

func toMatchResponse(v matching.MatchView) matchResponse {
	m := v.Match
	return matchResponse{
		ID:           m.ID,
		NeedID:       m.NeedID,
		NeedUserID:   m.NeedUserID,
		ExpertUserID: m.ExpertUserID,
		Score:        m.Score,
		Reason:       m.Reason,
		Status:       m.Status,
		CreatedAt:    m.CreatedAt,
		Need:         toNeedResponse(v.Need, nil),
		Requester:    toUserResponse(v.Requester),
		Expert:       toUserResponse(v.Expert),
	}
}

func toMatchResponses(views []matching.MatchView) []matchResponse {
	out := make([]matchResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toMatchResponse(v))
	}
	return out
}

// slotResponse は候補日時のJSON表現。
type slotResponse struct {
	ID           string           `json:"id"`
	CoffeeChatID string           `json:"coffee_chat_id"`
	ProposedBy   string           `json:"proposed_by"`
	SlotTime     time.Time        `json:"slot_time"`
	Status       model.SlotStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

// chatResponse はコーヒーチャットのJSON表現。
type chatResponse struct {
	ID              string           `json:"id"`
	MatchID         string           `json:"match_id"`
	RequesterID     string           `json:"requester_id"`
	ExpertID        string           `json:"expert_id"`
	Status          model.ChatStatus `json:"status"`
	ScheduledTime   *time.Time       `json:"scheduled_time"`
	DurationMinutes int              `json:"duration_minutes"`
	MeetingLink     *string          `json:"meeting_link"`
	ProposedSlots   []slotResponse   `json:"proposed_slots"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Requester       *userResponse    `json:"requester,omitempty"`
	Expert          *userResponse    `json:"expert,omitempty"`
}

func toChatResponse(c *model.CoffeeChat, requester, expert *model.User) *chatResponse {
	if c == nil {
		return nil
	}
	slots := make([]slotResponse, 0, len(c.ProposedSlots))
	for _, s := range c.ProposedSlots {
		slots = append(slots, slotResponse{
			ID:           s.ID,
			CoffeeChatID: s.CoffeeChatID,
			ProposedBy:   s.ProposedBy,
			SlotTime:     s.SlotTime.UTC(),
			Status:       s.Status,
			CreatedAt:    s.CreatedAt,
		})
	}
	var scheduled *time.Time
	if c.ScheduledTime != nil {
		t := c.ScheduledTime.UTC()
		scheduled = &t
	}
	return &chatResponse{
		ID:              c.ID,
		MatchID:         c.MatchID,
		RequesterID:     c.RequesterID,
		ExpertID:        c.ExpertID,
		Status:          c.Status,
		ScheduledTime:   scheduled,
		DurationMinutes: c.DurationMinutes,
		MeetingLink:     c.MeetingLink,
		ProposedSlots:   slots,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		Requester:       toUserResponse(requester),
		Expert:          toUserResponse(expert),
	}
}

func toChatResponses(views []scheduling.ChatView) []*chatResponse {
	out := make([]*chatResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toChatResponse(v.Chat, v.Requester, v.Expert))
	}
	return out
}

func toNeedViews(views []admin.NeedView) []*entryResponse {
	out := make([]*entryResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toNeedResponse(v.Need, v.User))
	}
	return out
}

func toLearningViews(views []admin.LearningView) []*entryResponse {
	out := make([]*entryResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toLearningResponse(v.Learning, v.User))
	}
	return out
}
