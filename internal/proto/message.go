package proto

import "encoding/json"

// Frame is the envelope used in both directions on the backend socket.
// Replies to a request echo its CallbackID.
type Frame struct {
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	CallbackID string          `json:"callbackId,omitempty"`
}

// MessageType is the tag of a fire-and-forget client message.
type MessageType string

const (
	// SendMessage posts a chat message to the current room.
	SendMessage MessageType = "sendMessage"
	// SetTypingPresence toggles the local typing flag for the room.
	SetTypingPresence MessageType = "setTypingPresence"
)

// Request types expect a reply carrying the same callback id.
const (
	// RequestCreateSession creates a room; the reply is a CreateSessionReply.
	RequestCreateSession = "createSession"
	// RequestJoinSession joins a room; the reply is a MessageList.
	RequestJoinSession = "joinSession"
)

// Inbound types are pushed by the backend without a callback id.
const (
	// InboundChatMessage carries a ChatMessage appended to the room.
	InboundChatMessage = "sendMessage"
	// InboundUserID carries the permanent id of this connection.
	InboundUserID = "userId"
	// InboundTypingPresence carries the room's TypingData.
	InboundTypingPresence = "setTypingPresence"
	// InboundUserList carries the room members as UserSettings.
	InboundUserList = "userList"
)

// UserSettings describes how the local participant appears to others.
type UserSettings struct {
	Nickname string `json:"userNickname"`
	Icon     string `json:"userIcon,omitempty"`
}

// CreateSessionData requests a new room.
type CreateSessionData struct {
	UserSettings UserSettings `json:"userSettings"`
}

// JoinSessionData requests to join an existing room.
type JoinSessionData struct {
	SessionID    string       `json:"sessionId"`
	UserSettings UserSettings `json:"userSettings"`
}

// CreateSessionReply is the backend answer to createSession.
type CreateSessionReply struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error,omitempty"`
}

// MessageList is the backend answer to joinSession: the room history in order.
type MessageList struct {
	Messages []ChatMessage `json:"messages"`
	Error    string        `json:"error,omitempty"`
}

// SendMessageData is the payload of SendMessage.
type SendMessageData struct {
	Body string `json:"body"`
}

// SetTypingData is the payload of SetTypingPresence.
type SetTypingData struct {
	Typing bool `json:"typing"`
}

// ChatMessage is a room entry as delivered by the backend.
type ChatMessage struct {
	IsSystemMessage bool   `json:"isSystemMessage"`
	UserIcon        string `json:"userIcon,omitempty"`
	UserNickname    string `json:"userNickname,omitempty"`
	Body            string `json:"body"`
	PermID          string `json:"permId"`
	Timestamp       int64  `json:"timestamp"`
}

// UserIDData assigns the permanent id of the local participant.
type UserIDData struct {
	UserID string `json:"userId"`
}

// TypingData is the room-wide typing broadcast.
type TypingData struct {
	AnyoneTyping bool     `json:"anyoneTyping"`
	UsersTyping  []string `json:"usersTyping"`
}

// Message is an unsolicited inbound frame handed to the event handler.
type Message struct {
	Type string
	Data json.RawMessage
}
