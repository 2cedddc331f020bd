package matching

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/founderhub/internal/gamification"
	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/repository"
)

// --- モック ---

type mockMatchRepo struct {
	findByIDFn        func(ctx context.Context, id string) (*model.Match, error)
	listByRequesterFn func(ctx context.Context, userID string) ([]*model.Match, error)
	listByExpertFn    func(ctx context.Context, userID string) ([]*model.Match, error)
	declineFn         func(ctx context.Context, id string) error
}

func (m *mockMatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockMatchRepo) CreateIfAbsent(ctx context.Context, match *model.Match) (bool, error) {
	return true, nil
}
func (m *mockMatchRepo) ListByRequester(ctx context.Context, userID string) ([]*model.Match, error) {
	return m.listByRequesterFn(ctx, userID)
}
func (m *mockMatchRepo) ListByExpert(ctx context.Context, userID string) ([]*model.Match, error) {
	return m.listByExpertFn(ctx, userID)
}
func (m *mockMatchRepo) ListAll(ctx context.Context) ([]*model.Match, error) {
	return nil, nil
}
func (m *mockMatchRepo) Decline(ctx context.Context, id string) error {
	return m.declineFn(ctx, id)
}

type mockNeeds struct {
	needs map[string]*model.Need
}

func (m *mockNeeds) FindNeedsByIDs(ctx context.Context, ids []string) (map[string]*model.Need, error) {
	out := make(map[string]*model.Need)
	for _, id := range ids {
		if n, ok := m.needs[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type mockUsers struct {
	users       map[string]*model.User
	incremented []model.UserStat
}

func (m *mockUsers) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.users[id], nil
}
func (m *mockUsers) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}
func (m *mockUsers) IncrementStat(ctx context.Context, id string, stat model.UserStat, delta int) error {
	m.incremented = append(m.incremented, stat)
	return nil
}

type mockChats struct {
	createFn func(ctx context.Context, match *model.Match) (*model.CoffeeChat, error)
}

func (m *mockChats) CreateForMatch(ctx context.Context, match *model.Match) (*model.CoffeeChat, error) {
	return m.createFn(ctx, match)
}

type mockAwarder struct {
	awarded map[string]int
}

func (m *mockAwarder) Award(ctx context.Context, userID string, amount int, reason string) (*gamification.Result, error) {
	if m.awarded == nil {
		m.awarded = make(map[string]int)
	}
	m.awarded[userID] += amount
	return &gamification.Result{XPGained: amount, TotalXP: amount, Level: 1}, nil
}

// --- フィクスチャ ---

func fixtureUsers() *mockUsers {
	return &mockUsers{users: map[string]*model.User{
		"requester": {ID: "requester", Name: "Rin"},
		"expert": {ID: "expert", Name: "Ken", Skills: []model.Skill{
			{Label: "Closed a seed round", Category: "fundraising"},
			{Label: "Hiring engineers", Category: "hiring"},
		}},
	}}
}

func fixtureNeeds() *mockNeeds {
	return &mockNeeds{needs: map[string]*model.Need{
		"need-funding": {ID: "need-funding", UserID: "requester", Label: "Investor introductions", Category: "fundraising"},
		"need-design":  {ID: "need-design", UserID: "requester", Label: "Logo design", Category: "design"},
		"need-hiring":  {ID: "need-hiring", UserID: "requester", Label: "Find senior engineers", Category: "HIRING"},
		"need-words":   {ID: "need-words", UserID: "requester", Label: "Seed deck review", Category: "strategy"},
	}}
}

func pendingMatch(id, needID string) *model.Match {
	return &model.Match{ID: id, NeedID: needID, NeedUserID: "requester", ExpertUserID: "expert", Score: 0.8, Status: model.MatchStatusPending}
}

// --- テスト ---

func TestIsRelevant(t *testing.T) {
	skills := fixtureUsers().users["expert"].Skills
	needs := fixtureNeeds().needs

	tests := []struct {
		needID string
		want   bool
	}{
		{"need-funding", true}, // カテゴリ一致
		{"need-hiring", true},  // 大文字小文字を無視したカテゴリ一致
		{"need-words", true},   // "seed" が共通
		{"need-design", false},
	}
	for _, tt := range tests {
		if got := IsRelevant(skills, needs[tt.needID]); got != tt.want {
			t.Errorf("IsRelevant(%s) = %v, want %v", tt.needID, got, tt.want)
		}
	}

	if IsRelevant(nil, needs["need-funding"]) {
		t.Error("expert without skills must not be relevant")
	}
}

func TestService_ListForExpert_FiltersBySkills(t *testing.T) {
	repo := &mockMatchRepo{
		listByExpertFn: func(ctx context.Context, userID string) ([]*model.Match, error) {
			return []*model.Match{
				pendingMatch("m1", "need-funding"),
				pendingMatch("m2", "need-design"),
				pendingMatch("m3", "need-missing"),
			}, nil
		},
	}
	svc := NewService(repo, fixtureNeeds(), fixtureUsers(), nil, nil, nil, nil)

	views, err := svc.ListForExpert(context.Background(), "expert")
	if err != nil {
		t.Fatalf("ListForExpert: %v", err)
	}
	if len(views) != 1 || views[0].Match.ID != "m1" {
		t.Fatalf("views = %+v, want only m1", views)
	}
	if views[0].Requester == nil || views[0].Requester.ID != "requester" {
		t.Errorf("requester = %+v", views[0].Requester)
	}
}

func TestService_ListForExpert_UnknownUser(t *testing.T) {
	svc := NewService(&mockMatchRepo{}, fixtureNeeds(), fixtureUsers(), nil, nil, nil, nil)

	_, err := svc.ListForExpert(context.Background(), "ghost")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Fatalf("err = %v, want USER_NOT_FOUND", err)
	}
}

func TestService_ListForRequester_SkipsDanglingMatches(t *testing.T) {
	repo := &mockMatchRepo{
		listByRequesterFn: func(ctx context.Context, userID string) ([]*model.Match, error) {
			orphan := pendingMatch("m2", "need-funding")
			orphan.ExpertUserID = "deleted"
			return []*model.Match{pendingMatch("m1", "need-design"), orphan}, nil
		},
	}
	svc := NewService(repo, fixtureNeeds(), fixtureUsers(), nil, nil, nil, nil)

	views, err := svc.ListForRequester(context.Background(), "requester")
	if err != nil {
		t.Fatalf("ListForRequester: %v", err)
	}
	if len(views) != 1 || views[0].Expert.ID != "expert" || views[0].Need.ID != "need-design" {
		t.Errorf("views = %+v", views)
	}
}

func TestService_Accept(t *testing.T) {
	match := pendingMatch("m1", "need-funding")
	repo := &mockMatchRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Match, error) { return match, nil },
	}
	users := fixtureUsers()
	awarder := &mockAwarder{}
	var created *model.Match
	chats := &mockChats{createFn: func(ctx context.Context, m *model.Match) (*model.CoffeeChat, error) {
		created = m
		return &model.CoffeeChat{ID: "chat-1", MatchID: m.ID, Status: model.ChatStatusPendingSlots}, nil
	}}
	svc := NewService(repo, fixtureNeeds(), users, chats, awarder, nil, nil)

	result, err := svc.Accept(context.Background(), "expert", "m1")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if created != match {
		t.Error("coffee chat should be created for the accepted match")
	}
	if result.Chat.Status != model.ChatStatusPendingSlots {
		t.Errorf("chat status = %s, want pending_slots", result.Chat.Status)
	}
	if result.XPGained != gamification.XPMatchAccepted || awarder.awarded["expert"] != gamification.XPMatchAccepted {
		t.Errorf("xp gained = %d, awarded = %v", result.XPGained, awarder.awarded)
	}
	if len(users.incremented) != 1 || users.incremented[0] != model.StatTotalMatches {
		t.Errorf("incremented = %v, want [total_matches]", users.incremented)
	}
}

func TestService_Accept_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		match    *model.Match
		userID   string
		wantCode string
	}{
		{"not found", nil, "expert", model.ErrCodeMatchNotFound},
		{"requester cannot accept", pendingMatch("m1", "need-funding"), "requester", model.ErrCodeForbidden},
		{"already declined", &model.Match{ID: "m1", ExpertUserID: "expert", Status: model.MatchStatusDeclined}, "expert", model.ErrCodeMatchNotPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockMatchRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Match, error) { return tt.match, nil },
			}
			chats := &mockChats{createFn: func(ctx context.Context, m *model.Match) (*model.CoffeeChat, error) {
				t.Error("chat must not be created")
				return nil, nil
			}}
			svc := NewService(repo, fixtureNeeds(), fixtureUsers(), chats, &mockAwarder{}, nil, nil)

			_, err := svc.Accept(context.Background(), tt.userID, "m1")
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode {
				t.Fatalf("err = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestService_Decline(t *testing.T) {
	declined := false
	repo := &mockMatchRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Match, error) {
			return pendingMatch(id, "need-funding"), nil
		},
		declineFn: func(ctx context.Context, id string) error {
			declined = true
			return nil
		},
	}
	svc := NewService(repo, fixtureNeeds(), fixtureUsers(), nil, nil, nil, nil)

	if err := svc.Decline(context.Background(), "expert", "m1"); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if !declined {
		t.Error("Decline should update the match")
	}
}

// racingRepo は1回目の読み込みではpendingを返し、以降はwinnerの状態を返す。
func racingRepo(winner model.MatchStatus) *mockMatchRepo {
	reads := 0
	return &mockMatchRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Match, error) {
			reads++
			m := pendingMatch(id, "need-funding")
			if reads > 1 {
				m.Status = winner
			}
			return m, nil
		},
		declineFn: func(ctx context.Context, id string) error { return repository.ErrConflict },
	}
}

func TestService_Decline_LostRace(t *testing.T) {
	tests := []struct {
		name      string
		winner    model.MatchStatus
		wantCode  string
		wantState string
	}{
		{"accepted first", model.MatchStatusAccepted, model.ErrCodeMatchNotPending, "accepted"},
		{"declined first", model.MatchStatusDeclined, model.ErrCodeMatchNotPending, "declined"},
		{"still pending", model.MatchStatusPending, model.ErrCodeConcurrentUpdate, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(racingRepo(tt.winner), fixtureNeeds(), fixtureUsers(), nil, nil, nil, nil)

			err := svc.Decline(context.Background(), "expert", "m1")
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode {
				t.Fatalf("err = %v, want %s", err, tt.wantCode)
			}
			if !strings.Contains(apiErr.Message, tt.wantState) {
				t.Errorf("message = %q, want state %q", apiErr.Message, tt.wantState)
			}
		})
	}
}

func TestService_Accept_LostRaceToDecline(t *testing.T) {
	chats := &mockChats{createFn: func(ctx context.Context, m *model.Match) (*model.CoffeeChat, error) {
		return nil, model.NewConcurrentUpdateError()
	}}
	awarder := &mockAwarder{}
	svc := NewService(racingRepo(model.MatchStatusDeclined), fixtureNeeds(), fixtureUsers(), chats, awarder, nil, nil)

	_, err := svc.Accept(context.Background(), "expert", "m1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeMatchNotPending {
		t.Fatalf("err = %v, want MATCH_NOT_PENDING", err)
	}
	if !strings.Contains(apiErr.Message, "declined") {
		t.Errorf("message = %q, want declined state", apiErr.Message)
	}
	if len(awarder.awarded) != 0 {
		t.Errorf("awarded = %v, want none", awarder.awarded)
	}
}
