package session

import (
	"fmt"
	"strings"

	"github.com/vovakirdan/partychat/internal/proto"
)

// ConnectionState is the lifecycle of the backend connection.
type ConnectionState int

const (
	// StateIdle means Initialize has not been called yet.
	StateIdle ConnectionState = iota
	// StateConnecting means the transport is opening.
	StateConnecting
	// StateReady means the transport signalled ready.
	StateReady
	// StateClosed is terminal for the connection; only Initialize leaves it.
	StateClosed
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnectionState) MarshalText() ([]byte, error) {
	if s < StateIdle || s > StateClosed {
		return nil, fmt.Errorf("invalid connection state %d", int(s))
	}
	return []byte(s.String()), nil
}

// ChatMessage is an entry of the room feed. Entries never change once appended.
type ChatMessage struct {
	IsSystemMessage   bool   `json:"isSystemMessage"`
	SenderNickname    string `json:"senderNickname,omitempty"`
	SenderIcon        string `json:"senderIcon,omitempty"`
	Body              string `json:"body"`
	SenderPermanentID string `json:"senderPermanentId"`
	SentAtEpochMillis int64  `json:"sentAtEpochMillis"`
}

// DisplayText is the line a view shows for the message. System messages read
// as a sentence about their subject, e.g. "alice joined the party".
func (m ChatMessage) DisplayText() string {
	if m.IsSystemMessage && m.SenderNickname != "" {
		return strings.TrimSpace(m.SenderNickname + " " + m.Body)
	}
	return m.Body
}

func messageFromWire(m proto.ChatMessage) ChatMessage {
	return ChatMessage{
		IsSystemMessage:   m.IsSystemMessage,
		SenderNickname:    m.UserNickname,
		SenderIcon:        m.UserIcon,
		Body:              m.Body,
		SenderPermanentID: m.PermID,
		SentAtEpochMillis: m.Timestamp,
	}
}

// Snapshot is a point-in-time copy of the controller state for views.
type Snapshot struct {
	ConnectionState ConnectionState `json:"connectionState"`
	RoomID          string          `json:"roomId,omitempty"`
	SelfUserID      string          `json:"selfUserId,omitempty"`
	Nickname        string          `json:"nickname"`
	AvatarIcon      string          `json:"avatarIcon"`
	Messages        []ChatMessage   `json:"messages"`
	SelfIsTyping    bool            `json:"selfIsTyping"`
	OthersTyping    []string        `json:"othersTyping"`
	Draft           string          `json:"draft"`
	Pending         bool            `json:"pending"`
}

// InRoom reports whether the session currently belongs to a room.
func (s Snapshot) InRoom() bool {
	return s.RoomID != ""
}

// AnyoneElseTyping reports whether a "someone is typing" hint should show.
func (s Snapshot) AnyoneElseTyping() bool {
	return len(s.OthersTyping) > 0
}
