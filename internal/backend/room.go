package backend

import (
	"slices"

	"github.com/samber/lo"

	"github.com/vovakirdan/partychat/internal/proto"
)

// Room groups clients chatting in the same party.
type Room struct {
	ID      string
	clients map[*Client]struct{}
	typing  map[string]struct{}
	history []proto.ChatMessage
	limit   int
}

// NewRoom constructs a room with no clients. limit caps the kept history.
func NewRoom(id string, limit int) *Room {
	return &Room{
		ID:      id,
		clients: make(map[*Client]struct{}),
		typing:  make(map[string]struct{}),
		limit:   limit,
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	c.room = r
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	delete(r.typing, c.ID)
	c.room = nil
	return true
}

// Append records a message in the room history.
func (r *Room) Append(msg proto.ChatMessage) {
	r.history = append(r.history, msg)
	if r.limit > 0 && len(r.history) > r.limit {
		r.history = slices.Clone(r.history[len(r.history)-r.limit:])
	}
}

// History returns a copy of the room history, oldest first.
func (r *Room) History() []proto.ChatMessage {
	return slices.Clone(r.history)
}

// SetTyping updates the typing flag of a participant. Returns true if it changed.
func (r *Room) SetTyping(userID string, typing bool) bool {
	_, was := r.typing[userID]
	if typing == was {
		return false
	}
	if typing {
		r.typing[userID] = struct{}{}
	} else {
		delete(r.typing, userID)
	}
	return true
}

// Typing returns the sorted ids of participants currently typing.
func (r *Room) Typing() proto.TypingData {
	users := lo.Keys(r.typing)
	slices.Sort(users)
	return proto.TypingData{AnyoneTyping: len(users) > 0, UsersTyping: users}
}

// Members returns the settings of everyone in the room, ordered by nickname.
func (r *Room) Members() []proto.UserSettings {
	members := lo.MapToSlice(r.clients, func(c *Client, _ struct{}) proto.UserSettings {
		return proto.UserSettings{Nickname: c.Nickname, Icon: c.Icon}
	})
	slices.SortFunc(members, func(a, b proto.UserSettings) int {
		switch {
		case a.Nickname < b.Nickname:
			return -1
		case a.Nickname > b.Nickname:
			return 1
		}
		return 0
	})
	return members
}

// Broadcast sends a frame to all clients in the room.
func (r *Room) Broadcast(frame proto.Frame) {
	for client := range r.clients {
		select {
		case client.Events <- frame:
		default:
			// Drop if slow consumer.
		}
	}
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}
