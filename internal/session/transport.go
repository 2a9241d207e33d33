package session

import (
	"context"

	"github.com/vovakirdan/partychat/internal/proto"
)

// Transport is the backend connection the controller drives.
type Transport interface {
	CreateRoom(ctx context.Context, nickname, icon string) (string, error)
	JoinRoom(ctx context.Context, nickname, roomID, icon string) (proto.MessageList, error)
	// SendMessage must not block.
	SendMessage(typ proto.MessageType, payload any) error
	// Teardown must be idempotent and must not block.
	Teardown()
}

// Handler receives transport signals: ready once, then messages, then close once.
type Handler interface {
	OnConnectionReady()
	OnClose(err error)
	OnMessage(msg proto.Message)
}

// Dialer opens a transport that reports to h.
type Dialer func(ctx context.Context, h Handler) (Transport, error)
