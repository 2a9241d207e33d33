package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/partychat/internal/proto"
	"github.com/vovakirdan/partychat/internal/utils"
)

// DefaultHistoryLimit is the number of messages a room keeps for joiners.
const DefaultHistoryLimit = 200

const (
	systemJoined = "joined the party"
	systemLeft   = "left the party"
)

// Hub is an in-memory party backend: it owns rooms and routes frames
// between connected clients. It is a local stand-in for the hosted service.
type Hub struct {
	mu           sync.Mutex
	rooms        map[string]*Room
	clock        clock.Clock
	historyLimit int
	log          *zerolog.Logger
}

// NewHub creates a hub. A nil clock uses wall time; a non-positive
// historyLimit keeps every message.
func NewHub(clk clock.Clock, historyLimit int, logger *zerolog.Logger) *Hub {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		rooms:        make(map[string]*Room),
		clock:        clk,
		historyLimit: historyLimit,
		log:          logger,
	}
}

// Connect greets a new client with its permanent id.
func (h *Hub) Connect(c *Client) {
	send(c, frame(proto.InboundUserID, proto.UserIDData{UserID: c.ID}, ""))
}

// Disconnect removes the client from its room and tells the others.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
}

// Dispatch handles one frame sent by c. Replies and broadcasts are queued on
// the clients' event channels, replies always before the broadcasts they cause.
func (h *Hub) Dispatch(c *Client, in proto.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	switch in.Type {
	case proto.RequestCreateSession:
		err = h.createLocked(c, in)
	case proto.RequestJoinSession:
		err = h.joinLocked(c, in)
	case string(proto.SendMessage):
		err = h.postLocked(c, in)
	case string(proto.SetTypingPresence):
		err = h.typingLocked(c, in)
	default:
		h.log.Debug().Str("type", in.Type).Str("client_id", c.ID).Msg("unknown frame type")
		return
	}
	if err == nil {
		return
	}

	h.log.Debug().Err(err).Str("type", in.Type).Str("client_id", c.ID).Msg("frame rejected")
	if in.CallbackID != "" {
		send(c, frame(in.Type, map[string]string{"error": err.Error()}, in.CallbackID))
	}
}

func (h *Hub) createLocked(c *Client, in proto.Frame) error {
	var req proto.CreateSessionData
	if err := json.Unmarshal(in.Data, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if c.room != nil {
		return ErrAlreadyInRoom
	}
	if strings.TrimSpace(req.UserSettings.Nickname) == "" {
		return fmt.Errorf("%w: nickname is required", ErrBadRequest)
	}

	id := utils.NewRoomCode()
	for h.rooms[id] != nil {
		id = utils.NewRoomCode()
	}
	room := NewRoom(id, h.historyLimit)
	h.rooms[id] = room

	send(c, frame(in.Type, proto.CreateSessionReply{SessionID: id}, in.CallbackID))
	h.enterLocked(c, room, req.UserSettings)
	h.log.Info().Str("room_id", id).Str("client_id", c.ID).Msg("room created")
	return nil
}

func (h *Hub) joinLocked(c *Client, in proto.Frame) error {
	var req proto.JoinSessionData
	if err := json.Unmarshal(in.Data, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if c.room != nil {
		return ErrAlreadyInRoom
	}
	if strings.TrimSpace(req.UserSettings.Nickname) == "" {
		return fmt.Errorf("%w: nickname is required", ErrBadRequest)
	}
	room := h.rooms[req.SessionID]
	if room == nil {
		return ErrRoomNotFound
	}

	send(c, frame(in.Type, proto.MessageList{Messages: room.History()}, in.CallbackID))
	h.enterLocked(c, room, req.UserSettings)
	h.log.Info().Str("room_id", room.ID).Str("client_id", c.ID).Msg("room joined")
	return nil
}

func (h *Hub) postLocked(c *Client, in proto.Frame) error {
	var req proto.SendMessageData
	if err := json.Unmarshal(in.Data, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if c.room == nil {
		return ErrNotInRoom
	}
	h.appendLocked(c.room, proto.ChatMessage{
		UserNickname: c.Nickname,
		UserIcon:     c.Icon,
		Body:         req.Body,
		PermID:       c.ID,
		Timestamp:    h.clock.Now().UnixMilli(),
	})
	return nil
}

func (h *Hub) typingLocked(c *Client, in proto.Frame) error {
	var req proto.SetTypingData
	if err := json.Unmarshal(in.Data, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if c.room == nil {
		return ErrNotInRoom
	}
	if c.room.SetTyping(c.ID, req.Typing) {
		c.room.Broadcast(frame(proto.InboundTypingPresence, c.room.Typing(), ""))
	}
	return nil
}

func (h *Hub) enterLocked(c *Client, room *Room, settings proto.UserSettings) {
	c.Nickname = settings.Nickname
	c.Icon = settings.Icon
	room.AddClient(c)
	h.appendLocked(room, h.systemMessage(c, systemJoined))
	room.Broadcast(frame(proto.InboundUserList, room.Members(), ""))
}

func (h *Hub) leaveLocked(c *Client) {
	room := c.room
	if room == nil {
		return
	}
	wasTyping := room.SetTyping(c.ID, false)
	room.RemoveClient(c)

	if room.Empty() {
		delete(h.rooms, room.ID)
		h.log.Info().Str("room_id", room.ID).Msg("room closed")
		return
	}
	h.appendLocked(room, h.systemMessage(c, systemLeft))
	if wasTyping {
		room.Broadcast(frame(proto.InboundTypingPresence, room.Typing(), ""))
	}
	room.Broadcast(frame(proto.InboundUserList, room.Members(), ""))
}

func (h *Hub) appendLocked(room *Room, msg proto.ChatMessage) {
	room.Append(msg)
	room.Broadcast(frame(proto.InboundChatMessage, msg, ""))
}

func (h *Hub) systemMessage(c *Client, body string) proto.ChatMessage {
	return proto.ChatMessage{
		IsSystemMessage: true,
		UserNickname:    c.Nickname,
		UserIcon:        c.Icon,
		Body:            body,
		PermID:          c.ID,
		Timestamp:       h.clock.Now().UnixMilli(),
	}
}

func frame(typ string, data any, callbackID string) proto.Frame {
	raw, err := json.Marshal(data)
	if err != nil {
		// Payloads are package-defined structs; marshal cannot fail for them.
		raw = []byte("null")
	}
	return proto.Frame{Type: typ, Data: raw, CallbackID: callbackID}
}

func send(c *Client, f proto.Frame) {
	select {
	case c.Events <- f:
	default:
		// Drop if slow consumer.
	}
}
