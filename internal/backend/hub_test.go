package backend

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vovakirdan/partychat/internal/proto"
)

func newTestHub() (*Hub, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(time.UnixMilli(1_700_000_000_000))
	return NewHub(clk, 50, nil), clk
}

func createRoom(t *testing.T, hub *Hub, c *Client, nickname string) string {
	t.Helper()

	hub.Dispatch(c, request(t, proto.RequestCreateSession, "cb-create", proto.CreateSessionData{
		UserSettings: proto.UserSettings{Nickname: nickname, Icon: "🐶"},
	}))
	reply := decode[proto.CreateSessionReply](t, mustFrame(t, c.Events, proto.RequestCreateSession))
	if reply.Error != "" || reply.SessionID == "" {
		t.Fatalf("unexpected create reply: %+v", reply)
	}
	return reply.SessionID
}

func TestHubConnectAssignsUserID(t *testing.T) {
	hub, _ := newTestHub()
	alice := NewClient("u1")
	hub.Connect(alice)

	got := decode[proto.UserIDData](t, mustFrame(t, alice.Events, proto.InboundUserID))
	if got.UserID != "u1" {
		t.Fatalf("unexpected user id: %q", got.UserID)
	}
}

func TestHubCreateJoinAndBroadcast(t *testing.T) {
	hub, _ := newTestHub()
	alice := NewClient("u1")
	bob := NewClient("u2")

	roomID := createRoom(t, hub, alice, "alice")

	hub.Dispatch(alice, request(t, string(proto.SendMessage), "", proto.SendMessageData{Body: "hi"}))

	hub.Dispatch(bob, request(t, proto.RequestJoinSession, "cb-join", proto.JoinSessionData{
		SessionID:    roomID,
		UserSettings: proto.UserSettings{Nickname: "bob"},
	}))
	joinReply := mustFrame(t, bob.Events, proto.RequestJoinSession)
	if joinReply.CallbackID != "cb-join" {
		t.Fatalf("unexpected callback id: %q", joinReply.CallbackID)
	}
	history := decode[proto.MessageList](t, joinReply)
	if len(history.Messages) != 2 {
		t.Fatalf("expected join notice and message in history, got %+v", history.Messages)
	}
	if !history.Messages[0].IsSystemMessage || history.Messages[1].Body != "hi" {
		t.Fatalf("unexpected history order: %+v", history.Messages)
	}

	// Bob's own join notice follows the reply.
	joined := decode[proto.ChatMessage](t, mustFrame(t, bob.Events, proto.InboundChatMessage))
	if !joined.IsSystemMessage || joined.UserNickname != "bob" || joined.Body != systemJoined {
		t.Fatalf("unexpected join notice: %+v", joined)
	}

	drain(alice.Events)
	hub.Dispatch(bob, request(t, string(proto.SendMessage), "", proto.SendMessageData{Body: "hey"}))
	msg := decode[proto.ChatMessage](t, mustFrame(t, alice.Events, proto.InboundChatMessage))
	if msg.Body != "hey" || msg.PermID != "u2" || msg.UserNickname != "bob" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Timestamp != 1_700_000_000_000 {
		t.Fatalf("unexpected timestamp: %d", msg.Timestamp)
	}
}

func TestHubJoinUnknownRoomReturnsError(t *testing.T) {
	hub, _ := newTestHub()
	bob := NewClient("u2")

	hub.Dispatch(bob, request(t, proto.RequestJoinSession, "cb", proto.JoinSessionData{
		SessionID:    "GHOST",
		UserSettings: proto.UserSettings{Nickname: "bob"},
	}))
	reply := decode[proto.MessageList](t, mustFrame(t, bob.Events, proto.RequestJoinSession))
	if reply.Error != ErrRoomNotFound.Error() {
		t.Fatalf("expected room not found, got %+v", reply)
	}
}

func TestHubSendWithoutRoomIsRejectedSilently(t *testing.T) {
	hub, _ := newTestHub()
	alice := NewClient("u1")

	hub.Dispatch(alice, request(t, string(proto.SendMessage), "", proto.SendMessageData{Body: "hi"}))

	select {
	case f := <-alice.Events:
		t.Fatalf("unexpected frame: %+v", f)
	default:
	}
}

func TestHubTypingBroadcast(t *testing.T) {
	hub, _ := newTestHub()
	alice := NewClient("u1")
	bob := NewClient("u2")

	roomID := createRoom(t, hub, alice, "alice")
	hub.Dispatch(bob, request(t, proto.RequestJoinSession, "cb", proto.JoinSessionData{
		SessionID:    roomID,
		UserSettings: proto.UserSettings{Nickname: "bob"},
	}))
	drain(alice.Events)

	hub.Dispatch(bob, request(t, string(proto.SetTypingPresence), "", proto.SetTypingData{Typing: true}))
	typing := decode[proto.TypingData](t, mustFrame(t, alice.Events, proto.InboundTypingPresence))
	if !typing.AnyoneTyping || len(typing.UsersTyping) != 1 || typing.UsersTyping[0] != "u2" {
		t.Fatalf("unexpected typing broadcast: %+v", typing)
	}

	// Repeating the same flag does not rebroadcast.
	hub.Dispatch(bob, request(t, string(proto.SetTypingPresence), "", proto.SetTypingData{Typing: true}))
	select {
	case f := <-alice.Events:
		t.Fatalf("unexpected frame: %+v", f)
	default:
	}

	// Leaving clears the typing flag for the others.
	hub.Disconnect(bob)
	typing = decode[proto.TypingData](t, mustFrame(t, alice.Events, proto.InboundTypingPresence))
	if typing.AnyoneTyping || len(typing.UsersTyping) != 0 {
		t.Fatalf("expected no one typing, got %+v", typing)
	}
}

func TestHubDoubleCreateProducesError(t *testing.T) {
	hub, _ := newTestHub()
	alice := NewClient("u1")
	createRoom(t, hub, alice, "alice")

	hub.Dispatch(alice, request(t, proto.RequestCreateSession, "cb-2", proto.CreateSessionData{
		UserSettings: proto.UserSettings{Nickname: "alice"},
	}))
	reply := decode[proto.CreateSessionReply](t, mustFrame(t, alice.Events, proto.RequestCreateSession))
	if reply.Error != ErrAlreadyInRoom.Error() {
		t.Fatalf("expected already in room error, got %+v", reply)
	}
}

func TestRoomHistoryLimit(t *testing.T) {
	room := NewRoom("R", 2)
	for _, body := range []string{"a", "b", "c"} {
		room.Append(proto.ChatMessage{Body: body})
	}
	history := room.History()
	if len(history) != 2 || history[0].Body != "b" || history[1].Body != "c" {
		t.Fatalf("unexpected history: %+v", history)
	}
}
