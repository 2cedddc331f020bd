package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/founderhub/internal/matching"
	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/repository"
	"github.com/hitoshi/founderhub/internal/scheduling"
)

type mockStats struct {
	err error
}

func (m *mockStats) Dashboard(ctx context.Context) (*repository.DashboardStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &repository.DashboardStats{
		TotalUsers:     4,
		PendingMatches: 2,
		NeedCategories: map[string]int{"fundraising": 3},
	}, nil
}
func (m *mockStats) Community(ctx context.Context, since time.Time) (*repository.CommunityStats, error) {
	return nil, nil
}

type mockEntries struct{}

func (mockEntries) ListActiveNeeds(ctx context.Context) ([]*model.Need, error) {
	return []*model.Need{
		{ID: "n1", UserID: "u1", Label: "Pricing"},
		{ID: "n2", UserID: "gone", Label: "Hiring"},
	}, nil
}
func (mockEntries) ListActiveLearnings(ctx context.Context) ([]*model.Learning, error) {
	return []*model.Learning{{ID: "l1", UserID: "u1", Label: "SEO"}}, nil
}

type mockUsers struct{}

func (mockUsers) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	return map[string]*model.User{"u1": {ID: "u1", Name: "Mika"}}, nil
}

type mockMatches struct{}

func (mockMatches) ListAll(ctx context.Context) ([]matching.MatchView, error) {
	return []matching.MatchView{{Match: &model.Match{ID: "m1"}}}, nil
}

type mockChats struct{}

func (mockChats) ListAll(ctx context.Context) ([]scheduling.ChatView, error) {
	return []scheduling.ChatView{{Chat: &model.CoffeeChat{ID: "c1"}}}, nil
}

func newTestService(stats *mockStats) *Service {
	return NewService(stats, mockEntries{}, mockUsers{}, mockMatches{}, mockChats{})
}

func TestService_Stats(t *testing.T) {
	svc := newTestService(&mockStats{})

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalUsers != 4 || stats.PendingMatches != 2 || stats.NeedCategories["fundraising"] != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestService_Stats_Error(t *testing.T) {
	dbErr := errors.New("connection refused")
	svc := newTestService(&mockStats{err: dbErr})

	if _, err := svc.Stats(context.Background()); !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped %v", err, dbErr)
	}
}

func TestService_Needs_EnrichedWithUser(t *testing.T) {
	svc := newTestService(&mockStats{})

	views, err := svc.Needs(context.Background())
	if err != nil {
		t.Fatalf("Needs: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}
	if views[0].User == nil || views[0].User.Name != "Mika" {
		t.Errorf("views[0].User = %+v", views[0].User)
	}
	if views[1].User != nil {
		t.Errorf("missing owner should stay nil, got %+v", views[1].User)
	}
}

func TestService_Learnings_EnrichedWithUser(t *testing.T) {
	svc := newTestService(&mockStats{})

	views, err := svc.Learnings(context.Background())
	if err != nil {
		t.Fatalf("Learnings: %v", err)
	}
	if len(views) != 1 || views[0].User.ID != "u1" {
		t.Errorf("views = %+v", views)
	}
}

func TestService_MatchesAndChats(t *testing.T) {
	svc := newTestService(&mockStats{})

	matches, err := svc.Matches(context.Background())
	if err != nil || len(matches) != 1 {
		t.Errorf("Matches = %v, %v", matches, err)
	}
	chats, err := svc.CoffeeChats(context.Background())
	if err != nil || len(chats) != 1 {
		t.Errorf("CoffeeChats = %v, %v", chats, err)
	}
}
