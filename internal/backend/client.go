package backend

import "github.com/vovakirdan/partychat/internal/proto"

// Client is a connected participant as seen by the backend.
type Client struct {
	ID       string
	Nickname string
	Icon     string
	Events   chan proto.Frame

	room *Room
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan proto.Frame, 32),
	}
}
