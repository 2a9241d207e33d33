package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/partychat/internal/session"
)

// recordingSession captures the context each room operation ran with.
type recordingSession struct {
	mu  sync.Mutex
	ctx context.Context
}

func (s *recordingSession) record(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
}

func (s *recordingSession) lastCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *recordingSession) Initialize(context.Context) error { return nil }

func (s *recordingSession) CreateRoom(ctx context.Context, _, _ string) (string, error) {
	s.record(ctx)
	return "R123", ctx.Err()
}

func (s *recordingSession) JoinRoom(ctx context.Context, _, _, _ string) error {
	s.record(ctx)
	return ctx.Err()
}

func (s *recordingSession) LeaveRoom() {}
func (s *recordingSession) SendChatMessage(string) error { return nil }
func (s *recordingSession) InputChanged(string) {}
func (s *recordingSession) Snapshot() session.Snapshot { return session.Snapshot{} }
func (s *recordingSession) Subscribe() (<-chan session.Event, func()) {
	ch := make(chan session.Event)
	close(ch)
	return ch, func() {}
}

func newHandlersRouter(sess Session, timeout time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()
	handlers := NewSessionHandlers(sess, timeout, &logger)

	router := gin.New()
	router.POST("/api/rooms", handlers.CreateRoom)
	router.POST("/api/rooms/join", handlers.JoinRoom)
	return router
}

func TestRoomOperationsOutliveCancelledRequest(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"create", "/api/rooms", `{"nickname":"Alice"}`, stdhttp.StatusCreated},
		{"join", "/api/rooms/join", `{"nickname":"Bob","roomId":"R123"}`, stdhttp.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &recordingSession{}
			router := newHandlersRouter(sess, time.Second)

			reqCtx, cancel := context.WithCancel(context.Background())
			cancel()
			req := httptest.NewRequest(stdhttp.MethodPost, tt.path, strings.NewReader(tt.body)).WithContext(reqCtx)
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code)
			ctx := sess.lastCtx()
			require.NotNil(t, ctx)
			_, hasDeadline := ctx.Deadline()
			require.True(t, hasDeadline)
		})
	}
}
