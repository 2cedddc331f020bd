// Package realtime はコーヒーチャットの状態変化をWebSocketで参加者に配信する。
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/founderhub/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// sendBuffer はクライアントごとの未送信イベントの上限。超過分は破棄する。
	sendBuffer = 16
)

// EventChatUpdated はコーヒーチャットの状態変化イベントの種別。
const EventChatUpdated = "coffee_chat.updated"

// Event はクライアントに送信するイベント。
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ChatPayload はコーヒーチャット更新イベントのペイロード。
type ChatPayload struct {
	ChatID        string           `json:"chat_id"`
	Status        model.ChatStatus `json:"status"`
	ScheduledTime *time.Time       `json:"scheduled_time,omitempty"`
	MeetingLink   *string          `json:"meeting_link,omitempty"`
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub はユーザーごとのWebSocket接続を管理する。
// 同一ユーザーの複数タブからの接続を許可する。
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub はHubを生成する。allowedOriginが空でない場合、Originヘッダーが一致する接続のみ受け付ける。
func NewHub(allowedOrigin string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "" || origin == allowedOrigin
			},
		},
		logger: logger,
	}
}

// ServeWS は接続をWebSocketにアップグレードし、切断されるまでブロックする。
// アップグレードに失敗した場合、レスポンスはUpgraderが書き込む。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

// ChatUpdated はチャットの両参加者に状態変化を通知する。
func (h *Hub) ChatUpdated(ctx context.Context, chat *model.CoffeeChat) {
	h.Publish([]string{chat.RequesterID, chat.ExpertID}, Event{
		Type: EventChatUpdated,
		Payload: ChatPayload{
			ChatID:        chat.ID,
			Status:        chat.Status,
			ScheduledTime: chat.ScheduledTime,
			MeetingLink:   chat.MeetingLink,
		},
	})
}

// Publish は指定ユーザーの全接続にイベントを送信する。
// 送信バッファが満杯の接続にはイベントを破棄する。
func (h *Hub) Publish(userIDs []string, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode realtime event", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, uid := range userIDs {
		for c := range h.clients[uid] {
			select {
			case c.send <- msg:
			default:
				h.logger.Warn("realtime event dropped", slog.String("user_id", uid))
			}
		}
	}
}

// ClientCount は指定ユーザーの接続数を返す。
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
}

// unregister は接続を登録解除し、送信チャネルを閉じる。
// Publishと同じロックで保護するため、閉じたチャネルへの送信は起きない。
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// readPump はクライアントからの制御フレームを処理する。
// クライアントからのメッセージは使用しない。
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket closed unexpectedly",
					slog.String("user_id", c.userID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
