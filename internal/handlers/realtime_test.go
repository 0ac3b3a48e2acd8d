package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"krafink/internal/db"
	"krafink/internal/realtime"
	"krafink/internal/security"
	"krafink/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type wsEnv struct {
	svc *services.Services
	srv *httptest.Server
	ctx context.Context
}

type wsUser struct {
	ID    string
	Token string
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	database, err := gorm.Open(sqlite.Open(dsn), db.Config())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := database.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	hub := realtime.NewHub(nil)
	svc, err := services.New(services.Options{
		DB:        database,
		Hub:       hub,
		Online:    hub,
		Tokens:    security.NewTokenProvider("ws-test", time.Hour),
		UploadDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("services: %v", err)
	}

	r := gin.New()
	r.GET("/ws", NewRealtimeHandler(hub, svc.Identity, svc.Chat, nil).Connect)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		_ = sqlDB.Close()
	})
	return &wsEnv{svc: svc, srv: srv, ctx: context.Background()}
}

func (e *wsEnv) register(t *testing.T, username string) wsUser {
	t.Helper()
	resp, err := e.svc.Identity.Register(e.ctx, services.RegisterInput{
		Email:    username + "@example.com",
		Username: username,
		Name:     username,
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return wsUser{ID: resp.User.ID, Token: resp.AccessToken}
}

func (e *wsEnv) dial(t *testing.T, u wsUser) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + u.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	if err := conn.WriteJSON(map[string]interface{}{"event": event, "data": data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// readUntil 读取到指定事件为止，返回途中收到的全部事件（不含在线状态广播）
func readUntil(t *testing.T, conn *websocket.Conn, event string) []inbound {
	t.Helper()
	var seen []inbound
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v (seen %v)", event, err, names(seen))
		}
		if msg.Event == realtime.EventUserStatus {
			continue
		}
		seen = append(seen, msg)
		if msg.Event == event {
			return seen
		}
	}
}

// flush 发送一个未知事件并等待错误回复；连接上的事件按顺序处理，之前的请求都已完成
func flush(t *testing.T, conn *websocket.Conn) []inbound {
	t.Helper()
	send(t, conn, "sync", map[string]string{})
	return readUntil(t, conn, realtime.EventError)
}

func names(msgs []inbound) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Event)
	}
	return out
}

func count(msgs []inbound, event string) int {
	n := 0
	for _, m := range msgs {
		if m.Event == event {
			n++
		}
	}
	return n
}

func errorFor(t *testing.T, msg inbound) realtime.ErrorPayload {
	t.Helper()
	var p realtime.ErrorPayload
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return p
}

func TestRealtimeRejectsMissingToken(t *testing.T) {
	env := newWSEnv(t)
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake to fail without token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestRealtimeJoinRules(t *testing.T) {
	env := newWSEnv(t)
	a := env.register(t, "alice")
	b := env.register(t, "bob")
	c := env.register(t, "carol")
	conv, err := env.svc.Chat.GetOrCreate(env.ctx, b.ID, c.ID)
	if err != nil {
		t.Fatal(err)
	}

	conn := env.dial(t, a)

	send(t, conn, realtime.EventJoinUser, map[string]string{"user_id": b.ID})
	msgs := readUntil(t, conn, realtime.EventError)
	if p := errorFor(t, msgs[len(msgs)-1]); p.Event != realtime.EventJoinUser || p.Message != services.ErrForbidden.Error() {
		t.Errorf("join_user foreign id: %+v", p)
	}

	send(t, conn, realtime.EventJoinConversation, map[string]string{"conversation_id": conv.ID})
	msgs = readUntil(t, conn, realtime.EventError)
	if p := errorFor(t, msgs[len(msgs)-1]); p.Event != realtime.EventJoinConversation {
		t.Errorf("join_conversation by outsider: %+v", p)
	}

	send(t, conn, realtime.EventSendMessage, nil)
	msgs = readUntil(t, conn, realtime.EventError)
	if p := errorFor(t, msgs[len(msgs)-1]); p.Message != "invalid payload" {
		t.Errorf("missing payload: %+v", p)
	}

	msgs = flush(t, conn)
	if p := errorFor(t, msgs[len(msgs)-1]); p.Message != "unknown event" {
		t.Errorf("unknown event: %+v", p)
	}
}

func TestRealtimeMessaging(t *testing.T) {
	env := newWSEnv(t)
	a := env.register(t, "alice")
	b := env.register(t, "bob")
	conv, err := env.svc.Chat.GetOrCreate(env.ctx, a.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}

	connA := env.dial(t, a)
	connB := env.dial(t, b)
	room := map[string]string{"conversation_id": conv.ID}
	send(t, connA, realtime.EventJoinConversation, room)
	send(t, connB, realtime.EventJoinConversation, room)
	flush(t, connA)
	flush(t, connB)

	// 发送者只收到 message_sent；接收者在两个房间里也只收到一次
	send(t, connA, realtime.EventSendMessage, map[string]string{"conversation_id": conv.ID, "content": "hi"})
	if got := readUntil(t, connA, realtime.EventMessageSent); count(got, realtime.EventMessageReceived) != 0 {
		t.Errorf("sender got its own message echoed: %v", names(got))
	}
	got := readUntil(t, connB, realtime.EventMessageReceived)
	got = append(got, flush(t, connB)...)
	if n := count(got, realtime.EventMessageReceived); n != 1 {
		t.Errorf("receiver got %d message_received events: %v", n, names(got))
	}

	send(t, connA, realtime.EventTypingStart, room)
	typing := readUntil(t, connB, realtime.EventTypingStart)
	var td struct {
		UserID string `json:"user_id"`
	}
	_ = json.Unmarshal(typing[len(typing)-1].Data, &td)
	if td.UserID != a.ID {
		t.Errorf("typing_start user_id = %q, want %q", td.UserID, a.ID)
	}

	send(t, connB, realtime.EventMessageDelivered, map[string]string{"conversation_id": conv.ID, "message_id": "m1"})
	readUntil(t, connA, realtime.EventMessageDelivered)

	send(t, connB, realtime.EventMarkMessagesRead, room)
	readUntil(t, connA, realtime.EventMessagesRead)
	if got := flush(t, connB); count(got, realtime.EventMessagesRead) != 0 {
		t.Errorf("reader should not get its own read receipt: %v", names(got))
	}
	unread, err := env.svc.Chat.UnreadTotal(env.ctx, b.ID)
	if err != nil || unread != 0 {
		t.Errorf("unread after mark read = %d, %v", unread, err)
	}

	// 离开会话房间后只通过用户房间收到
	send(t, connB, realtime.EventLeaveConversation, room)
	flush(t, connB)
	send(t, connA, realtime.EventSendMessage, map[string]string{"conversation_id": conv.ID, "content": "again"})
	readUntil(t, connA, realtime.EventMessageSent)
	got = append(readUntil(t, connB, realtime.EventMessageReceived), flush(t, connB)...)
	if n := count(got, realtime.EventMessageReceived); n != 1 {
		t.Errorf("after leave, receiver got %d message_received events", n)
	}
}
