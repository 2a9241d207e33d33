package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SessionHandlers provides HTTP handlers that drive the session controller.
type SessionHandlers struct {
	session        Session
	requestTimeout time.Duration
	log            *zerolog.Logger
}

// NewSessionHandlers creates a new session handlers instance. Room operations
// are bounded by requestTimeout.
func NewSessionHandlers(sess Session, requestTimeout time.Duration, logger *zerolog.Logger) *SessionHandlers {
	return &SessionHandlers{
		session:        sess,
		requestTimeout: requestTimeout,
		log:            logger,
	}
}

// roomContext detaches a room operation from the HTTP request. The backend
// completes a create or join even after the caller goes away.
func (h *SessionHandlers) roomContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(c.Request.Context())
	if h.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.requestTimeout)
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Nickname string `json:"nickname" binding:"required,max=64"`
	Icon     string `json:"icon" binding:"max=16"`
}

// JoinRoomRequest represents the join room request body.
type JoinRoomRequest struct {
	Nickname string `json:"nickname" binding:"required,max=64"`
	RoomID   string `json:"roomId" binding:"required,max=128"`
	Icon     string `json:"icon" binding:"max=16"`
}

// TextRequest carries a message or draft text.
type TextRequest struct {
	Text string `json:"text"`
}

// RoomResponse represents a created room.
type RoomResponse struct {
	RoomID string `json:"roomId"`
}

// GetSession returns the current snapshot.
// GET /api/session
func (h *SessionHandlers) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// Connect opens the backend connection.
// POST /api/session/connect
func (h *SessionHandlers) Connect(c *gin.Context) {
	if err := h.session.Initialize(c.Request.Context()); err != nil {
		h.fail(c, err, "connect failed")
		return
	}
	c.JSON(http.StatusAccepted, h.session.Snapshot())
}

// CreateRoom handles room creation.
// POST /api/rooms
func (h *SessionHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx, cancel := h.roomContext(c)
	defer cancel()

	roomID, err := h.session.CreateRoom(ctx, req.Nickname, req.Icon)
	if err != nil {
		h.fail(c, err, "create room failed")
		return
	}
	c.JSON(http.StatusCreated, RoomResponse{RoomID: roomID})
}

// JoinRoom handles joining an existing room.
// POST /api/rooms/join
func (h *SessionHandlers) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid join room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx, cancel := h.roomContext(c)
	defer cancel()

	if err := h.session.JoinRoom(ctx, req.Nickname, req.RoomID, req.Icon); err != nil {
		h.fail(c, err, "join room failed")
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// LeaveRoom leaves the room and closes the connection.
// DELETE /api/rooms/current
func (h *SessionHandlers) LeaveRoom(c *gin.Context) {
	h.session.LeaveRoom()
	c.Status(http.StatusNoContent)
}

// SendMessage posts a chat message.
// POST /api/messages
func (h *SessionHandlers) SendMessage(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.session.SendChatMessage(req.Text); err != nil {
		h.fail(c, err, "send message failed")
		return
	}
	c.Status(http.StatusAccepted)
}

// UpdateDraft reports an input change.
// PUT /api/draft
func (h *SessionHandlers) UpdateDraft(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	h.session.InputChanged(req.Text)
	c.Status(http.StatusNoContent)
}

func (h *SessionHandlers) fail(c *gin.Context, err error, msg string) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.log.Warn().Err(err).Int("status", status).Msg(msg)
	} else {
		h.log.Debug().Err(err).Int("status", status).Msg(msg)
	}
	c.JSON(status, body)
}
