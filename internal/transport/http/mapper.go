package http

import (
	"errors"
	stdhttp "net/http"

	"github.com/vovakirdan/partychat/internal/session"
)

const (
	outboundTypeEvent = "event"

	eventState  = "state"
	eventNotice = "notice"
)

// Outbound is the envelope streamed to views over /ws.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func outboundFromEvent(ev session.Event) Outbound {
	if ev.Kind == session.EventNotice && ev.Notice != nil {
		return Outbound{Type: outboundTypeEvent, Event: eventNotice, Data: ev.Notice}
	}
	return Outbound{Type: outboundTypeEvent, Event: eventState, Data: ev.Snapshot}
}

func stateOutbound(snap session.Snapshot) Outbound {
	return Outbound{Type: outboundTypeEvent, Event: eventState, Data: snap}
}

// errorResponse maps a controller error to an HTTP status and body.
func errorResponse(err error) (int, ErrorResponse) {
	var serr *session.Error
	if !errors.As(err, &serr) {
		return stdhttp.StatusBadGateway, ErrorResponse{Error: err.Error()}
	}

	status := stdhttp.StatusInternalServerError
	switch serr.Code {
	case session.CodeInvalidInput:
		status = stdhttp.StatusBadRequest
	case session.CodePending, session.CodeNotReady, session.CodeAlreadyInRoom,
		session.CodeNotInRoom, session.CodeAlreadyConnected:
		status = stdhttp.StatusConflict
	case session.CodeRoomOperation:
		status = stdhttp.StatusBadGateway
	case session.CodeConnectionClosed, session.CodeControllerClosed:
		status = stdhttp.StatusServiceUnavailable
	}
	return status, ErrorResponse{Error: err.Error(), Code: serr.Code}
}
