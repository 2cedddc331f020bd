package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/founderhub/internal/admin"
	"github.com/hitoshi/founderhub/internal/auth"
	"github.com/hitoshi/founderhub/internal/checkin"
	"github.com/hitoshi/founderhub/internal/matching"
	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/repository"
	"github.com/hitoshi/founderhub/internal/scheduling"
	"github.com/hitoshi/founderhub/internal/user"
)

// --- モック定義 ---

type mockSessionFinder struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.sessions[id], nil
}

type mockAuthService struct {
	loginFn       func(ctx context.Context, in auth.LoginInput) (*model.Session, *model.User, error)
	adminLoginFn  func(ctx context.Context, password string) (*model.Session, error)
	logoutFn      func(ctx context.Context, sessionID string) error
	currentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, in auth.LoginInput) (*model.Session, *model.User, error) {
	return m.loginFn(ctx, in)
}

func (m *mockAuthService) AdminLogin(ctx context.Context, password string) (*model.Session, error) {
	return m.adminLoginFn(ctx, password)
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	return m.currentUserFn(ctx, sessionID)
}

type mockCheckinService struct {
	submitFn         func(ctx context.Context, userID, text string) (*checkin.Result, error)
	testExtractionFn func(ctx context.Context, userID, text string) (model.Extraction, error)
}

func (m *mockCheckinService) Submit(ctx context.Context, userID, text string) (*checkin.Result, error) {
	return m.submitFn(ctx, userID, text)
}

func (m *mockCheckinService) TestExtraction(ctx context.Context, userID, text string) (model.Extraction, error) {
	return m.testExtractionFn(ctx, userID, text)
}

type mockMatchService struct {
	listForRequesterFn func(ctx context.Context, userID string) ([]matching.MatchView, error)
	listForExpertFn    func(ctx context.Context, userID string) ([]matching.MatchView, error)
	acceptFn           func(ctx context.Context, userID, matchID string) (*matching.AcceptResult, error)
	declineFn          func(ctx context.Context, userID, matchID string) error
}

func (m *mockMatchService) ListForRequester(ctx context.Context, userID string) ([]matching.MatchView, error) {
	return m.listForRequesterFn(ctx, userID)
}

func (m *mockMatchService) ListForExpert(ctx context.Context, userID string) ([]matching.MatchView, error) {
	return m.listForExpertFn(ctx, userID)
}

func (m *mockMatchService) Accept(ctx context.Context, userID, matchID string) (*matching.AcceptResult, error) {
	return m.acceptFn(ctx, userID, matchID)
}

func (m *mockMatchService) Decline(ctx context.Context, userID, matchID string) error {
	return m.declineFn(ctx, userID, matchID)
}

type mockCoffeeChatService struct {
	listForUserFn  func(ctx context.Context, userID string) ([]scheduling.ChatView, error)
	proposeSlotsFn func(ctx context.Context, userID, chatID string, times []time.Time) (*model.CoffeeChat, error)
	selectSlotFn   func(ctx context.Context, userID, chatID, slotID string) (*scheduling.Confirmation, error)
	completeFn     func(ctx context.Context, userID, chatID string) (*model.CoffeeChat, error)
	cancelFn       func(ctx context.Context, userID, chatID string) (*model.CoffeeChat, error)
}

func (m *mockCoffeeChatService) ListForUser(ctx context.Context, userID string) ([]scheduling.ChatView, error) {
	return m.listForUserFn(ctx, userID)
}

func (m *mockCoffeeChatService) ProposeSlots(ctx context.Context, userID, chatID string, times []time.Time) (*model.CoffeeChat, error) {
	return m.proposeSlotsFn(ctx, userID, chatID, times)
}

func (m *mockCoffeeChatService) SelectSlot(ctx context.Context, userID, chatID, slotID string) (*scheduling.Confirmation, error) {
	return m.selectSlotFn(ctx, userID, chatID, slotID)
}

func (m *mockCoffeeChatService) Complete(ctx context.Context, userID, chatID string) (*model.CoffeeChat, error) {
	return m.completeFn(ctx, userID, chatID)
}

func (m *mockCoffeeChatService) Cancel(ctx context.Context, userID, chatID string) (*model.CoffeeChat, error) {
	return m.cancelFn(ctx, userID, chatID)
}

type mockUserService struct {
	listFn           func(ctx context.Context) ([]*model.User, error)
	getFn            func(ctx context.Context, id string) (*model.User, error)
	profileFn        func(ctx context.Context, id string) (*user.Profile, error)
	updateBioFn      func(ctx context.Context, sessionUserID, id, bio string) (*model.User, error)
	leaderboardFn    func(ctx context.Context, limit int) ([]*model.User, error)
	communityStatsFn func(ctx context.Context) (*repository.CommunityStats, error)
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	return m.listFn(ctx)
}

func (m *mockUserService) Get(ctx context.Context, id string) (*model.User, error) {
	return m.getFn(ctx, id)
}

func (m *mockUserService) Profile(ctx context.Context, id string) (*user.Profile, error) {
	return m.profileFn(ctx, id)
}

func (m *mockUserService) UpdateBio(ctx context.Context, sessionUserID, id, bio string) (*model.User, error) {
	return m.updateBioFn(ctx, sessionUserID, id, bio)
}

func (m *mockUserService) Leaderboard(ctx context.Context, limit int) ([]*model.User, error) {
	return m.leaderboardFn(ctx, limit)
}

func (m *mockUserService) CommunityStats(ctx context.Context) (*repository.CommunityStats, error) {
	return m.communityStatsFn(ctx)
}

type mockAdminService struct {
	statsFn func(ctx context.Context) (*repository.DashboardStats, error)
}

func (m *mockAdminService) Stats(ctx context.Context) (*repository.DashboardStats, error) {
	return m.statsFn(ctx)
}

func (m *mockAdminService) Needs(ctx context.Context) ([]admin.NeedView, error) {
	return nil, nil
}

func (m *mockAdminService) Learnings(ctx context.Context) ([]admin.LearningView, error) {
	return nil, nil
}

func (m *mockAdminService) Matches(ctx context.Context) ([]matching.MatchView, error) {
	return nil, nil
}

func (m *mockAdminService) CoffeeChats(ctx context.Context) ([]scheduling.ChatView, error) {
	return nil, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

type mockHub struct {
	servedUserID string
}

func (m *mockHub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	m.servedUserID = userID
	w.WriteHeader(http.StatusSwitchingProtocols)
}
