package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/partychat/internal/proto"
)

const (
	// DefaultTypingIdleTimeout is how long after the last keystroke the
	// local typing flag is cleared.
	DefaultTypingIdleTimeout = 2000 * time.Millisecond

	defaultSubscriberBuffer = 64
)

// Options configures a Controller.
type Options struct {
	TypingIdleTimeout time.Duration
	SubscriberBuffer  int
	Clock             clock.Clock
	Logger            *zerolog.Logger
}

type createRequest struct {
	Nickname string `json:"nickname" validate:"required"`
}

type joinRequest struct {
	Nickname string `json:"nickname" validate:"required"`
	RoomID   string `json:"roomId" validate:"required"`
}

// Controller is the single owner of chat session state. It turns transport
// signals into state changes and user intents into transport calls.
// All methods are safe for concurrent use.
type Controller struct {
	dial     Dialer
	clock    clock.Clock
	idle     time.Duration
	subBuf   int
	validate *validator.Validate
	log      *zerolog.Logger

	mu        sync.Mutex
	closed    bool
	epoch     uint64
	state     ConnectionState
	transport Transport

	// readyEarly records a ready signal delivered before the dialer returned.
	readyEarly bool

	roomID   string
	selfID   string
	nickname string
	icon     string
	draft    string
	pending  bool

	messages []ChatMessage
	backlog  []ChatMessage

	selfTyping      bool
	typingBroadcast []string
	othersTyping    []string
	typingTimer     *clock.Timer
	timerGen        uint64

	subs    map[int]chan Event
	nextSub int
}

// New creates a controller that opens connections with dial.
func New(dial Dialer, opts Options) *Controller {
	if opts.TypingIdleTimeout <= 0 {
		opts.TypingIdleTimeout = DefaultTypingIdleTimeout
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = defaultSubscriberBuffer
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &Controller{
		dial:     dial,
		clock:    opts.Clock,
		idle:     opts.TypingIdleTimeout,
		subBuf:   opts.SubscriberBuffer,
		validate: newValidator(),
		log:      opts.Logger,
		subs:     make(map[int]chan Event),
	}
}

// Initialize opens a fresh backend connection. The session moves to
// Connecting now and to Ready when the transport signals it.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.state == StateConnecting || c.state == StateReady {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	stale := c.transport
	c.transport = nil
	c.readyEarly = false
	c.epoch++
	epoch := c.epoch
	c.resetLocked()
	c.state = StateConnecting
	c.publishLocked()
	c.mu.Unlock()

	if stale != nil {
		stale.Teardown()
	}

	c.log.Info().Uint64("epoch", epoch).Msg("connecting to backend")
	t, err := c.dial(ctx, &connHandler{c: c, epoch: epoch})

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if c.epoch == epoch {
			c.state = StateClosed
			c.noticeLocked(Notice{
				Kind:     NoticeConnectionClosed,
				Message:  "Could not connect. Please try again later.",
				Blocking: true,
			})
		}
		c.log.Error().Err(err).Msg("backend connection failed")
		return fmt.Errorf("initialize: %w", err)
	}
	if c.epoch != epoch {
		// Left or closed while dialing.
		t.Teardown()
		return ErrConnectionClosed
	}
	c.transport = t
	if c.readyEarly {
		c.readyEarly = false
		c.markReadyLocked()
	}
	return nil
}

// CreateRoom creates a new room as nickname. On success the room starts with
// an empty feed. Concurrent calls while one is pending fail with
// ErrOperationPending.
func (c *Controller) CreateRoom(ctx context.Context, nickname, icon string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if err := c.check(createRequest{Nickname: nickname}); err != nil {
		return "", err
	}

	t, epoch, err := c.beginRoomOp()
	if err != nil {
		return "", err
	}

	roomID, err := t.CreateRoom(ctx, nickname, icon)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return "", ErrConnectionClosed
	}
	backlog := c.backlog
	c.pending = false
	c.backlog = nil
	if err != nil {
		return "", c.roomOpFailedLocked("create", err)
	}

	c.roomID = roomID
	c.nickname = nickname
	c.icon = icon
	c.messages = backlog
	c.log.Info().Str("room_id", roomID).Str("nickname", nickname).Msg("room created")
	c.publishLocked()
	return roomID, nil
}

// JoinRoom joins an existing room. The feed is replaced by the room history
// returned by the backend, in the order received.
func (c *Controller) JoinRoom(ctx context.Context, nickname, roomID, icon string) error {
	nickname = strings.TrimSpace(nickname)
	roomID = strings.TrimSpace(roomID)
	if err := c.check(joinRequest{Nickname: nickname, RoomID: roomID}); err != nil {
		return err
	}

	t, epoch, err := c.beginRoomOp()
	if err != nil {
		return err
	}

	list, err := t.JoinRoom(ctx, nickname, roomID, icon)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrConnectionClosed
	}
	backlog := c.backlog
	c.pending = false
	c.backlog = nil
	if err != nil {
		return c.roomOpFailedLocked("join", err)
	}

	messages := make([]ChatMessage, 0, len(list.Messages)+len(backlog))
	for _, m := range list.Messages {
		messages = append(messages, messageFromWire(m))
	}
	c.messages = append(messages, backlog...)
	c.roomID = roomID
	c.nickname = nickname
	c.icon = icon
	c.log.Info().Str("room_id", roomID).Str("nickname", nickname).Int("history", len(list.Messages)).Msg("room joined")
	c.publishLocked()
	return nil
}

// LeaveRoom tears the connection down and resets the session. A new
// Initialize is required to chat again. Calling it twice is harmless.
func (c *Controller) LeaveRoom() {
	c.mu.Lock()
	if c.closed || c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	t := c.transport
	c.transport = nil
	c.epoch++
	c.resetLocked()
	c.state = StateClosed
	c.log.Info().Msg("left room")
	c.publishLocked()
	c.mu.Unlock()

	if t != nil {
		t.Teardown()
	}
}

// SendChatMessage posts text to the room. Blank text and pasted inline image
// data are dropped silently.
func (c *Controller) SendChatMessage(text string) error {
	body := strings.TrimSpace(text)
	if body == "" || strings.HasPrefix(body, "data:image") {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}
	if !c.inRoomLocked() {
		return ErrNotInRoom
	}
	if err := c.transport.SendMessage(proto.SendMessage, proto.SendMessageData{Body: body}); err != nil {
		c.log.Warn().Err(err).Msg("send chat message")
		return fmt.Errorf("send message: %w", err)
	}

	c.draft = ""
	c.stopTypingTimerLocked()
	if c.selfTyping {
		c.selfTyping = false
		c.sendTypingLocked(false)
	}
	c.publishLocked()
	return nil
}

// InputChanged records the pending draft and drives the local typing flag.
func (c *Controller) InputChanged(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.draft = text
	if c.inRoomLocked() {
		if !c.selfTyping && strings.TrimSpace(text) != "" {
			c.selfTyping = true
			c.sendTypingLocked(true)
		}
		c.restartTypingTimerLocked()
	}
	c.publishLocked()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers an observer. Events are dropped for observers that
// fall behind. The returned func unsubscribes and closes the channel.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Event, c.subBuf)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close releases the connection and timers and ends all subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	t := c.transport
	c.transport = nil
	c.epoch++
	c.stopTypingTimerLocked()
	if c.state != StateIdle {
		c.state = StateClosed
	}
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub)
	}
	c.mu.Unlock()

	if t != nil {
		t.Teardown()
	}
}

func (c *Controller) check(req any) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, verrs[0].Field())
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (c *Controller) beginRoomOp() (Transport, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return nil, 0, ErrControllerClosed
	case c.pending:
		return nil, 0, ErrOperationPending
	case c.state != StateReady || c.transport == nil:
		return nil, 0, ErrNotReady
	case c.roomID != "":
		return nil, 0, ErrAlreadyInRoom
	}
	c.pending = true
	c.backlog = nil
	c.publishLocked()
	return c.transport, c.epoch, nil
}

func (c *Controller) roomOpFailedLocked(op string, err error) error {
	c.log.Warn().Err(err).Str("op", op).Msg("room operation failed")
	c.noticeLocked(Notice{
		Kind:    NoticeRoomOperationFailed,
		Message: fmt.Sprintf("Failed to %s room", op),
	})
	return fmt.Errorf("%s room: %w: %w", op, ErrRoomOperation, err)
}

func (c *Controller) inRoomLocked() bool {
	return c.state == StateReady && c.transport != nil && c.roomID != ""
}

// resetLocked restores pre-join defaults. Nickname and icon are kept as the
// last values the user chose.
func (c *Controller) resetLocked() {
	c.stopTypingTimerLocked()
	c.roomID = ""
	c.selfID = ""
	c.draft = ""
	c.pending = false
	c.messages = nil
	c.backlog = nil
	c.selfTyping = false
	c.typingBroadcast = nil
	c.othersTyping = nil
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		ConnectionState: c.state,
		RoomID:          c.roomID,
		SelfUserID:      c.selfID,
		Nickname:        c.nickname,
		AvatarIcon:      c.icon,
		Messages:        slices.Clone(c.messages),
		SelfIsTyping:    c.selfTyping,
		OthersTyping:    slices.Clone(c.othersTyping),
		Draft:           c.draft,
		Pending:         c.pending,
	}
}

func (c *Controller) publishLocked() {
	c.emitLocked(Event{Kind: EventState, Snapshot: c.snapshotLocked()})
}

func (c *Controller) noticeLocked(n Notice) {
	c.log.Warn().Str("kind", string(n.Kind)).Bool("blocking", n.Blocking).Msg(n.Message)
	c.emitLocked(Event{Kind: EventNotice, Snapshot: c.snapshotLocked(), Notice: &n})
}

func (c *Controller) emitLocked(ev Event) {
	for id, sub := range c.subs {
		select {
		case sub <- ev:
		default:
			c.log.Debug().Int("subscriber", id).Msg("dropping event for slow subscriber")
		}
	}
}

// connHandler binds transport signals to the connection that produced them,
// so signals from a replaced connection are ignored.
type connHandler struct {
	c     *Controller
	epoch uint64
}

func (h *connHandler) OnConnectionReady() {
	h.c.onReady(h.epoch)
}

func (h *connHandler) OnClose(err error) {
	h.c.onClose(h.epoch, err)
}

func (h *connHandler) OnMessage(msg proto.Message) {
	h.c.onMessage(h.epoch, msg)
}

func (c *Controller) onReady(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.state != StateConnecting {
		return
	}
	if c.transport == nil {
		// Initialize applies it once the transport is stored.
		c.readyEarly = true
		return
	}
	c.markReadyLocked()
}

func (c *Controller) markReadyLocked() {
	c.state = StateReady
	c.log.Info().Msg("connection ready")
	c.publishLocked()
}

func (c *Controller) onClose(epoch uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	// Bump the epoch so a pending create/join resolves as closed.
	c.epoch++
	c.transport = nil
	c.readyEarly = false
	c.state = StateClosed
	c.pending = false
	c.backlog = nil
	c.stopTypingTimerLocked()
	c.selfTyping = false
	c.typingBroadcast = nil
	c.othersTyping = nil

	ev := c.log.Warn()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("connection closed")
	c.publishLocked()
	c.noticeLocked(Notice{
		Kind:     NoticeConnectionClosed,
		Message:  "Connection closed. Please reconnect.",
		Blocking: true,
	})
}
