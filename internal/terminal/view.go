package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/partychat/internal/session"
)

// LeaveCommand ends the chat when typed on its own line.
const LeaveCommand = "/leave"

// ErrConnectionLost is returned when the session closes underneath the view.
var ErrConnectionLost = errors.New("connection lost")

// Session is the controller surface the terminal view drives.
type Session interface {
	Initialize(ctx context.Context) error
	CreateRoom(ctx context.Context, nickname, icon string) (string, error)
	JoinRoom(ctx context.Context, nickname, roomID, icon string) error
	LeaveRoom()
	SendChatMessage(text string) error
	InputChanged(text string)
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Event, func())
}

// Options selects the identity and room for a chat.
type Options struct {
	Nickname string
	Icon     string
	// RoomID joins an existing room; empty creates a new one.
	RoomID string
}

// View is a line-oriented chat view: stdin lines become messages, session
// events become printed lines.
type View struct {
	session Session
	in      io.Reader
	out     io.Writer
	log     *zerolog.Logger

	room    string
	printed int
	typing  bool
}

// New creates a terminal view.
func New(sess Session, in io.Reader, out io.Writer, logger *zerolog.Logger) *View {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &View{session: sess, in: in, out: out, log: logger}
}

// Run connects, enters the room and relays until /leave, end of input, or ctx
// cancellation. It leaves the room on every exit path.
func (v *View) Run(ctx context.Context, opts Options) error {
	events, unsubscribe := v.session.Subscribe()
	defer unsubscribe()

	if err := v.session.Initialize(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer v.session.LeaveRoom()

	if err := v.awaitReady(ctx, events); err != nil {
		return err
	}

	roomID := opts.RoomID
	if roomID == "" {
		id, err := v.session.CreateRoom(ctx, opts.Nickname, opts.Icon)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		roomID = id
	} else if err := v.session.JoinRoom(ctx, opts.Nickname, roomID, opts.Icon); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	fmt.Fprintf(v.out, "Joined room %s as %s\n", roomID, opts.Nickname)
	fmt.Fprintf(v.out, "Type messages and press Enter to send. %s to exit.\n", LeaveCommand)
	v.render(v.session.Snapshot())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(v.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := v.handle(ev); err != nil {
				return err
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == LeaveCommand {
				return nil
			}
			v.session.InputChanged(line)
			if err := v.session.SendChatMessage(line); err != nil {
				v.log.Debug().Err(err).Msg("send chat message")
				fmt.Fprintf(v.out, "! %v\n", err)
			}
		}
	}
}

func (v *View) awaitReady(ctx context.Context, events <-chan session.Event) error {
	for {
		switch v.session.Snapshot().ConnectionState {
		case session.StateReady:
			return nil
		case session.StateClosed:
			return ErrConnectionLost
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ErrConnectionLost
			}
			if ev.Notice != nil && ev.Notice.Blocking {
				return fmt.Errorf("%w: %s", ErrConnectionLost, ev.Notice.Message)
			}
		}
	}
}

func (v *View) handle(ev session.Event) error {
	if ev.Kind == session.EventNotice && ev.Notice != nil {
		fmt.Fprintf(v.out, "! %s\n", ev.Notice.Message)
		if ev.Notice.Blocking {
			return fmt.Errorf("%w: %s", ErrConnectionLost, ev.Notice.Message)
		}
		return nil
	}
	v.render(ev.Snapshot)
	return nil
}

// render prints the messages not yet shown and the typing hint when it flips on.
func (v *View) render(snap session.Snapshot) {
	if snap.RoomID != v.room || len(snap.Messages) < v.printed {
		v.room = snap.RoomID
		v.printed = 0
	}
	for _, msg := range snap.Messages[v.printed:] {
		fmt.Fprintln(v.out, formatMessage(msg))
	}
	v.printed = len(snap.Messages)

	typing := snap.AnyoneElseTyping()
	if typing && !v.typing {
		fmt.Fprintln(v.out, "... someone is typing")
	}
	v.typing = typing
}

func formatMessage(msg session.ChatMessage) string {
	stamp := time.UnixMilli(msg.SentAtEpochMillis).Format("15:04")
	if msg.IsSystemMessage {
		return fmt.Sprintf("[%s] * %s", stamp, msg.DisplayText())
	}
	name := msg.SenderNickname
	if msg.SenderIcon != "" {
		name = msg.SenderIcon + " " + name
	}
	return fmt.Sprintf("[%s] %s: %s", stamp, name, msg.DisplayText())
}
