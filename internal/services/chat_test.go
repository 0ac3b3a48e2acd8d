package services

import (
	"errors"
	"testing"

	"krafink/internal/models"
	"krafink/internal/realtime"
)

func TestConversationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "a")
	b := env.register(t, "b")

	conv, err := env.svc.Chat.GetOrCreate(env.ctx, a.ID, "b")
	if err != nil {
		t.Fatal(err)
	}
	again, err := env.svc.Chat.GetOrCreate(env.ctx, b.ID, a.ID)
	if err != nil || again.ID != conv.ID {
		t.Fatalf("same pair should reuse the conversation: %v", err)
	}
	if again.OtherUser.ID != a.ID {
		t.Errorf("other user should be a")
	}

	msg, err := env.svc.Chat.Send(env.ctx, a.ID, conv.ID, "hi there", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ReceiverID != b.ID || msg.Type != models.MessageTypeText {
		t.Errorf("unexpected message: %+v", msg)
	}
	if len(env.hub.find(realtime.UserRoom(b.ID), realtime.EventMessageReceived)) != 1 {
		t.Errorf("receiver room should get message_received")
	}
	if len(env.hub.find(realtime.ConversationRoom(conv.ID), realtime.EventMessageReceived)) != 1 {
		t.Errorf("conversation room should get message_received")
	}
	if len(env.hub.find(realtime.UserRoom(a.ID), realtime.EventMessageSent)) != 1 {
		t.Errorf("sender should get message_sent")
	}
	if n := env.count(t, &models.Notification{}, "user_id = ? AND type = ?", b.ID, models.NotificationTypeMessage); n != 1 {
		t.Errorf("expected message notification, got %d", n)
	}

	env.svc.Chat.Send(env.ctx, a.ID, conv.ID, "second", "")
	total, err := env.svc.Chat.UnreadTotal(env.ctx, b.ID)
	if err != nil || total != 2 {
		t.Fatalf("expected 2 unread, got %d %v", total, err)
	}
	list, err := env.svc.Chat.List(env.ctx, b.ID, NewPage(0, 0))
	if err != nil || len(list) != 1 || list[0].UnreadCount != 2 || list[0].LastMessage != "second" {
		t.Fatalf("unexpected conversation list: %+v %v", list, err)
	}

	msgs, err := env.svc.Chat.Messages(env.ctx, b.ID, conv.ID, NewPage(0, 0))
	if err != nil || len(msgs) != 2 || msgs[0].Content != "hi there" {
		t.Fatalf("messages should be ascending: %+v %v", msgs, err)
	}

	receipt, err := env.svc.Chat.MarkRead(env.ctx, b.ID, conv.ID)
	if err != nil || receipt.Count != 2 {
		t.Fatalf("mark read: %+v %v", receipt, err)
	}
	if total, _ := env.svc.Chat.UnreadTotal(env.ctx, b.ID); total != 0 {
		t.Errorf("unread should be zero, got %d", total)
	}
	if len(env.hub.find(realtime.UserRoom(a.ID), realtime.EventMessagesRead)) != 1 {
		t.Errorf("sender should get messages_read")
	}
}

func TestConversationRules(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "a")
	b := env.register(t, "b")
	c := env.register(t, "c")

	if _, err := env.svc.Chat.GetOrCreate(env.ctx, a.ID, a.ID); !errors.Is(err, ErrSelfMessage) {
		t.Errorf("expected self message rejection, got %v", err)
	}
	if _, err := env.svc.Chat.GetOrCreate(env.ctx, a.ID, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected user not found, got %v", err)
	}

	conv, err := env.svc.Chat.GetOrCreate(env.ctx, a.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Chat.Messages(env.ctx, c.ID, conv.ID, NewPage(0, 0)); !errors.Is(err, ErrForbidden) {
		t.Errorf("outsider must not read messages, got %v", err)
	}
	if _, err := env.svc.Chat.Send(env.ctx, a.ID, conv.ID, "x", "video"); !errors.Is(err, ErrInvalidMessageType) {
		t.Errorf("expected invalid message type, got %v", err)
	}
	if _, err := env.svc.Chat.Send(env.ctx, a.ID, conv.ID, "   ", ""); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected empty content, got %v", err)
	}

	if _, err := env.svc.Graph.ToggleBlock(env.ctx, b.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Chat.Send(env.ctx, a.ID, conv.ID, "hello?", ""); !errors.Is(err, ErrBlocked) {
		t.Errorf("blocked users cannot message, got %v", err)
	}
	if _, err := env.svc.Chat.GetOrCreate(env.ctx, a.ID, b.ID); KindOf(err) != KindForbidden {
		t.Errorf("expected forbidden, got %v", err)
	}
}
