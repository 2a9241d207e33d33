package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/partychat/internal/proto"
)

type sentMessage struct {
	Type    proto.MessageType
	Payload any
}

type joinResult struct {
	list proto.MessageList
	err  error
}

// fakeTransport records outbound calls. Room calls answer from the
// configured results, or block on the gate channels when those are set.
type fakeTransport struct {
	mu        sync.Mutex
	sent      []sentMessage
	teardowns int

	createID  string
	createErr error
	joinList  proto.MessageList
	joinErr   error

	createGate chan struct{}
	joinGate   chan joinResult
}

func (f *fakeTransport) CreateRoom(ctx context.Context, _, _ string) (string, error) {
	if f.createGate != nil {
		select {
		case <-f.createGate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createID, f.createErr
}

func (f *fakeTransport) JoinRoom(ctx context.Context, _, _, _ string) (proto.MessageList, error) {
	if f.joinGate != nil {
		select {
		case res := <-f.joinGate:
			return res.list, res.err
		case <-ctx.Done():
			return proto.MessageList{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joinList, f.joinErr
}

func (f *fakeTransport) SendMessage(typ proto.MessageType, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Type: typ, Payload: payload})
	return nil
}

func (f *fakeTransport) Teardown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardowns++
}

func (f *fakeTransport) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeTransport) Teardowns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.teardowns
}

// typingSignals returns the typing flags sent so far, in order.
func (f *fakeTransport) typingSignals() []bool {
	var out []bool
	for _, m := range f.Sent() {
		if m.Type == proto.SetTypingPresence {
			out = append(out, m.Payload.(proto.SetTypingData).Typing)
		}
	}
	return out
}

// fakeDialer hands out a fresh fakeTransport per Initialize and keeps the
// handler so tests can inject transport signals.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	handlers   []Handler
	err        error
	prepare    func(*fakeTransport)

	// readyOnDial delivers the ready signal before Dial returns, as the
	// websocket transport may.
	readyOnDial bool
}

func (d *fakeDialer) Dial(_ context.Context, h Handler) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	t := &fakeTransport{createID: "R123"}
	if d.prepare != nil {
		d.prepare(t)
	}
	d.transports = append(d.transports, t)
	d.handlers = append(d.handlers, h)
	if d.readyOnDial {
		h.OnConnectionReady()
	}
	return t, nil
}

func (d *fakeDialer) last() (*fakeTransport, Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.transports)
	return d.transports[n-1], d.handlers[n-1]
}

type harness struct {
	ctrl   *Controller
	dialer *fakeDialer
	clock  *clock.Mock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := zerolog.Nop()
	h := &harness{dialer: &fakeDialer{}, clock: clock.NewMock()}
	h.ctrl = New(h.dialer.Dial, Options{
		Clock:  h.clock,
		Logger: &logger,
	})
	t.Cleanup(h.ctrl.Close)
	return h
}

// ready initializes the controller and delivers the ready signal.
func (h *harness) ready(t *testing.T) (*fakeTransport, Handler) {
	t.Helper()

	require.NoError(t, h.ctrl.Initialize(context.Background()))
	tr, hd := h.dialer.last()
	hd.OnConnectionReady()
	require.Equal(t, StateReady, h.ctrl.Snapshot().ConnectionState)
	return tr, hd
}

// inRoom brings the controller into room R123 via CreateRoom.
func (h *harness) inRoom(t *testing.T) (*fakeTransport, Handler) {
	t.Helper()

	tr, hd := h.ready(t)
	_, err := h.ctrl.CreateRoom(context.Background(), "Alice", "🐶")
	require.NoError(t, err)
	return tr, hd
}

func inbound(t *testing.T, typ string, data any) proto.Message {
	t.Helper()

	if raw, ok := data.(string); ok {
		return proto.Message{Type: typ, Data: json.RawMessage(raw)}
	}
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return proto.Message{Type: typ, Data: raw}
}

func waitForTyping(t *testing.T, tr *fakeTransport, want []bool) {
	t.Helper()

	require.Eventually(t, func() bool {
		got := tr.typingSignals()
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond, "typing signals: got %v want %v", tr.typingSignals(), want)
}

var errBoom = errors.New("boom")
