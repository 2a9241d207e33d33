package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/partychat/internal/proto"
)

var (
	// ErrClosed is returned for calls on a connection that has been closed.
	ErrClosed = errors.New("connection closed")
	// ErrQueueFull is returned when the outbound queue cannot take more frames.
	ErrQueueFull = errors.New("outbound queue full")
)

// RequestError is a rejection reported by the backend for a request.
type RequestError struct {
	Op  string
	Msg string
}

func (e *RequestError) Error() string {
	return e.Op + ": " + e.Msg
}

// EventHandler receives connection signals. All callbacks run on the
// connection's read goroutine, in order: ready first, close last.
type EventHandler interface {
	OnConnectionReady()
	OnClose(err error)
	OnMessage(msg proto.Message)
}

// Options tunes a client connection.
type Options struct {
	RequestTimeout    time.Duration
	KeepAliveInterval time.Duration
	ReadLimit         int64
	QueueSize         int
	Logger            *zerolog.Logger
}

func (o *Options) applyDefaults() {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 32
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
}

// Client is a live connection to the party-chat backend.
type Client struct {
	conn    *websocket.Conn
	handler EventHandler
	opts    Options
	log     *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	out    chan proto.Frame
	done   chan struct{}

	mu       sync.Mutex
	pending  map[string]chan proto.Frame
	closed   bool
	tornDown bool

	shutdownOnce sync.Once
	teardownOnce sync.Once
}

// Dial connects to url and starts the connection loops. The ready signal is
// delivered to handler asynchronously, before any inbound message.
func Dial(ctx context.Context, url string, handler EventHandler, opts Options) (*Client, error) {
	opts.applyDefaults()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(opts.ReadLimit)

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:    conn,
		handler: handler,
		opts:    opts,
		log:     opts.Logger,
		ctx:     loopCtx,
		cancel:  cancel,
		out:     make(chan proto.Frame, opts.QueueSize),
		done:    make(chan struct{}),
		pending: make(map[string]chan proto.Frame),
	}

	go c.readLoop()
	go c.writeLoop()
	if opts.KeepAliveInterval > 0 {
		go c.keepAlive(opts.KeepAliveInterval)
	}

	return c, nil
}

// CreateRoom asks the backend for a new room and returns its id.
func (c *Client) CreateRoom(ctx context.Context, nickname, icon string) (string, error) {
	var reply proto.CreateSessionReply
	err := c.request(ctx, proto.RequestCreateSession, proto.CreateSessionData{
		UserSettings: proto.UserSettings{Nickname: nickname, Icon: icon},
	}, &reply)
	if err != nil {
		return "", err
	}
	if reply.Error != "" {
		return "", &RequestError{Op: "create room", Msg: reply.Error}
	}
	if reply.SessionID == "" {
		return "", &RequestError{Op: "create room", Msg: "empty room id"}
	}
	return reply.SessionID, nil
}

// JoinRoom joins roomID and returns the room history in delivery order.
func (c *Client) JoinRoom(ctx context.Context, nickname, roomID, icon string) (proto.MessageList, error) {
	var reply proto.MessageList
	err := c.request(ctx, proto.RequestJoinSession, proto.JoinSessionData{
		SessionID:    roomID,
		UserSettings: proto.UserSettings{Nickname: nickname, Icon: icon},
	}, &reply)
	if err != nil {
		return proto.MessageList{}, err
	}
	if reply.Error != "" {
		return proto.MessageList{}, &RequestError{Op: "join room", Msg: reply.Error}
	}
	return reply, nil
}

// SendMessage queues a fire-and-forget message. It never blocks.
func (c *Client) SendMessage(typ proto.MessageType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	return c.enqueue(proto.Frame{Type: string(typ), Data: data})
}

// Teardown closes the connection with a normal closure. It returns without
// waiting for the close handshake and may be called any number of times.
func (c *Client) Teardown() {
	c.teardownOnce.Do(func() {
		c.mu.Lock()
		c.tornDown = true
		c.mu.Unlock()
		go func() {
			if err := c.conn.Close(websocket.StatusNormalClosure, "teardown"); err != nil {
				c.log.Debug().Err(err).Msg("close after teardown")
			}
		}()
	})
}

// Done is closed once the connection has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) request(ctx context.Context, typ string, data any, reply any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}

	id := uuid.NewString()
	ch := make(chan proto.Frame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.enqueue(proto.Frame{Type: typ, Data: payload, CallbackID: id}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	select {
	case frame := <-ch:
		if err := json.Unmarshal(frame.Data, reply); err != nil {
			return fmt.Errorf("decode %s reply: %w", typ, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", typ, ctx.Err())
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) enqueue(frame proto.Frame) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.out <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		c.log.Warn().Str("type", frame.Type).Msg("dropping outbound frame, queue full")
		return ErrQueueFull
	}
}

func (c *Client) readLoop() {
	var cause error
	defer func() {
		c.shutdown()
		c.handler.OnClose(cause)
	}()

	c.handler.OnConnectionReady()

	for {
		var frame proto.Frame
		if err := wsjson.Read(c.ctx, c.conn, &frame); err != nil {
			cause = c.classify(err)
			if cause != nil {
				c.log.Warn().Err(err).Msg("read backend frame")
			}
			return
		}

		if frame.CallbackID != "" && c.resolve(frame) {
			continue
		}
		c.handler.OnMessage(proto.Message{Type: frame.Type, Data: frame.Data})
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case frame := <-c.out:
			if err := wsjson.Write(c.ctx, c.conn, frame); err != nil {
				c.log.Warn().Err(err).Str("type", frame.Type).Msg("write backend frame")
				_ = c.conn.CloseNow()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, interval)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Debug().Err(err).Msg("keep-alive ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// resolve hands a reply to its waiting request. Unknown ids fall through to
// the event handler.
func (c *Client) resolve(frame proto.Frame) bool {
	c.mu.Lock()
	ch, ok := c.pending[frame.CallbackID]
	if ok {
		delete(c.pending, frame.CallbackID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- frame
	return true
}

func (c *Client) shutdown() {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		c.cancel()
		_ = c.conn.CloseNow()
	})
}

// classify turns a read error into the close cause. Expected shutdowns map to nil.
func (c *Client) classify(err error) error {
	c.mu.Lock()
	tornDown := c.tornDown
	c.mu.Unlock()
	if tornDown || errors.Is(err, context.Canceled) {
		return nil
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil
	}
	return err
}
