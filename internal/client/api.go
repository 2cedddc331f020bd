package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/founderhub/internal/model"
)

// LoginRequest はログイン・新規登録のリクエスト。
type LoginRequest struct {
	Email   string `json:"email" validate:"required,email,max=254"`
	Name    string `json:"name,omitempty" validate:"max=100"`
	Company string `json:"company,omitempty" validate:"max=100"`
}

type adminLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

type checkinRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

type proposeSlotsRequest struct {
	Slots []time.Time `json:"slots" validate:"required,min=1,max=10"`
}

type selectSlotRequest struct {
	SlotID string `json:"slot_id" validate:"required"`
}

type updateProfileRequest struct {
	Bio string `json:"bio" validate:"max=2000"`
}

func escape(id string) string {
	return url.PathEscape(id)
}

// Login はメールアドレスでログインし、セッションCookieを保持する。
func (c *Client) Login(ctx context.Context, req LoginRequest) (*User, error) {
	var resp struct {
		Success bool  `json:"success"`
		User    *User `json:"user"`
	}
	if err := c.send(ctx, http.MethodPost, "/login", req, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// AdminLogin は管理者としてログインする。
func (c *Client) AdminLogin(ctx context.Context, password string) error {
	return c.send(ctx, http.MethodPost, "/admin/login", adminLoginRequest{Password: password}, nil)
}

// Logout はセッションを破棄する。
func (c *Client) Logout(ctx context.Context) error {
	return c.send(ctx, http.MethodPost, "/logout", nil, nil)
}

// CurrentUser はセッションに紐づくユーザーを返す。未ログインの場合は401のStatusError。
func (c *Client) CurrentUser(ctx context.Context) (*CurrentUser, error) {
	var resp CurrentUser
	if err := c.get(ctx, "/api/current-user", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitCheckin はチェックイン本文を送信する。
func (c *Client) SubmitCheckin(ctx context.Context, text string) (*CheckinResult, error) {
	var resp CheckinResult
	if err := c.send(ctx, http.MethodPost, "/api/submit-checkin", checkinRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestExtraction は保存せずに抽出結果だけを返す。
func (c *Client) TestExtraction(ctx context.Context, text string) (*model.Extraction, error) {
	var resp model.Extraction
	if err := c.send(ctx, http.MethodPost, "/api/test-extraction", checkinRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequesterMatches はリクエスターとしてのマッチ一覧を返す。
func (c *Client) RequesterMatches(ctx context.Context, userID string) ([]Match, error) {
	return c.matches(ctx, "/api/matches/"+escape(userID))
}

// ExpertMatches はエキスパートとしてのマッチ一覧を返す。
func (c *Client) ExpertMatches(ctx context.Context, userID string) ([]Match, error) {
	return c.matches(ctx, "/api/matches/expert/"+escape(userID))
}

func (c *Client) matches(ctx context.Context, path string) ([]Match, error) {
	var resp struct {
		Matches []Match `json:"matches"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// AcceptMatch はマッチを承認する。承認によりpending_slotsのコーヒーチャットが作成される。
func (c *Client) AcceptMatch(ctx context.Context, matchID string) (*AcceptResult, error) {
	var resp AcceptResult
	if err := c.send(ctx, http.MethodPost, "/api/matches/"+escape(matchID)+"/accept", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeclineMatch はマッチを辞退する。
func (c *Client) DeclineMatch(ctx context.Context, matchID string) error {
	return c.send(ctx, http.MethodPost, "/api/matches/"+escape(matchID)+"/decline", nil, nil)
}

// CoffeeChats はユーザーが参加しているコーヒーチャット一覧を返す。
func (c *Client) CoffeeChats(ctx context.Context, userID string) ([]CoffeeChat, error) {
	var resp struct {
		CoffeeChats []CoffeeChat `json:"coffee_chats"`
	}
	if err := c.get(ctx, "/api/coffee-chats/"+escape(userID), &resp); err != nil {
		return nil, err
	}
	return resp.CoffeeChats, nil
}

// ProposeSlots は候補日時を送信し、登録された候補を返す。
func (c *Client) ProposeSlots(ctx context.Context, chatID string, times []time.Time) ([]Slot, error) {
	utc := make([]time.Time, len(times))
	for i, t := range times {
		utc[i] = t.UTC()
	}
	var resp struct {
		Message string `json:"message"`
		Slots   []Slot `json:"slots"`
	}
	path := "/api/coffee-chats/" + escape(chatID) + "/propose-slots"
	if err := c.send(ctx, http.MethodPost, path, proposeSlotsRequest{Slots: utc}, &resp); err != nil {
		return nil, err
	}
	return resp.Slots, nil
}

// SelectSlot は候補を選択し、確定した日時とミーティングリンクを返す。
func (c *Client) SelectSlot(ctx context.Context, chatID, slotID string) (*Confirmation, error) {
	var resp Confirmation
	path := "/api/coffee-chats/" + escape(chatID) + "/select-slot"
	if err := c.send(ctx, http.MethodPost, path, selectSlotRequest{SlotID: slotID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompleteChat はコーヒーチャットを完了にする。完了済みの場合もエラーにならない。
func (c *Client) CompleteChat(ctx context.Context, chatID string) (model.ChatStatus, error) {
	return c.chatTransition(ctx, chatID, "complete")
}

// CancelChat はコーヒーチャットをキャンセルする。
func (c *Client) CancelChat(ctx context.Context, chatID string) (model.ChatStatus, error) {
	return c.chatTransition(ctx, chatID, "cancel")
}

func (c *Client) chatTransition(ctx context.Context, chatID, action string) (model.ChatStatus, error) {
	var resp struct {
		Message string           `json:"message"`
		Status  model.ChatStatus `json:"status"`
	}
	path := "/api/coffee-chats/" + escape(chatID) + "/" + action
	if err := c.send(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Users は全ユーザーを返す。
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.get(ctx, "/api/users", &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// User はユーザーを1件返す。
func (c *Client) User(ctx context.Context, userID string) (*User, error) {
	var resp User
	if err := c.get(ctx, "/api/users/"+escape(userID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Profile はユーザーのプロフィールを返す。
func (c *Client) Profile(ctx context.Context, userID string) (*Profile, error) {
	var resp Profile
	if err := c.get(ctx, "/api/users/"+escape(userID)+"/profile", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateProfile は自己紹介文を更新する。
func (c *Client) UpdateProfile(ctx context.Context, userID, bio string) (*User, error) {
	var resp User
	path := "/api/users/" + escape(userID) + "/profile"
	if err := c.send(ctx, http.MethodPut, path, updateProfileRequest{Bio: bio}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Leaderboard はXP上位のユーザーを返す。limitが0以下の場合はサーバーの既定値を使う。
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]User, error) {
	path := "/api/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Leaderboard []User `json:"leaderboard"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Leaderboard, nil
}

// CommunityStats はコミュニティ全体の集計値を返す。
func (c *Client) CommunityStats(ctx context.Context) (*CommunityStats, error) {
	var resp CommunityStats
	if err := c.get(ctx, "/api/community/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AdminStats は管理ダッシュボードの集計値を返す。
func (c *Client) AdminStats(ctx context.Context) (*DashboardStats, error) {
	var resp DashboardStats
	if err := c.get(ctx, "/api/admin/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AdminNeeds はactiveなニーズを全件返す。
func (c *Client) AdminNeeds(ctx context.Context) ([]Entry, error) {
	return c.adminEntries(ctx, "needs")
}

// AdminLearnings はactiveなラーニングを全件返す。
func (c *Client) AdminLearnings(ctx context.Context) ([]Entry, error) {
	return c.adminEntries(ctx, "learnings")
}

func (c *Client) adminEntries(ctx context.Context, kind string) ([]Entry, error) {
	var resp map[string][]Entry
	if err := c.get(ctx, "/api/admin/"+kind, &resp); err != nil {
		return nil, err
	}
	entries, ok := resp[kind]
	if !ok {
		return nil, fmt.Errorf("レスポンスに %s が含まれていません", kind)
	}
	return entries, nil
}

// AdminMatches は全マッチを返す。
func (c *Client) AdminMatches(ctx context.Context) ([]Match, error) {
	return c.matches(ctx, "/api/admin/matches")
}

// AdminCoffeeChats は全コーヒーチャットを返す。
func (c *Client) AdminCoffeeChats(ctx context.Context) ([]CoffeeChat, error) {
	var resp struct {
		CoffeeChats []CoffeeChat `json:"coffee_chats"`
	}
	if err := c.get(ctx, "/api/admin/coffee-chats", &resp); err != nil {
		return nil, err
	}
	return resp.CoffeeChats, nil
}
