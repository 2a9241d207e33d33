package http

import (
	"context"
	"errors"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/partychat/internal/session"
)

// EventsHandler upgrades HTTP connections and streams session events to them.
// Views drive the session through the JSON API; the socket is output only.
type EventsHandler struct {
	session Session
	log     *zerolog.Logger
}

// NewEventsHandler builds a new event stream handler.
func NewEventsHandler(sess Session, logger *zerolog.Logger) stdhttp.Handler {
	return &EventsHandler{session: sess, log: logger}
}

func (h *EventsHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// Subscribe before the first snapshot so no change falls between them.
	events, unsubscribe := h.session.Subscribe()
	defer unsubscribe()

	// CloseRead drains control frames and cancels ctx once the view goes away.
	ctx := conn.CloseRead(r.Context())

	if err := wsjson.Write(ctx, conn, stateOutbound(h.session.Snapshot())); err != nil {
		h.log.Debug().Err(err).Msg("write initial snapshot")
		return
	}

	if err := h.writeLoop(ctx, conn, events); err != nil {
		if !errors.Is(err, context.Canceled) {
			h.log.Warn().Err(err).Msg("ws event stream closed with error")
		}
		return
	}

	_ = conn.Close(websocket.StatusNormalClosure, "session closed")
}

func (h *EventsHandler) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan session.Event) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(ev)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
