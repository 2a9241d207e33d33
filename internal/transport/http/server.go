package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/partychat/internal/config"
	"github.com/vovakirdan/partychat/internal/session"
)

// Session is the controller surface the bridge exposes to views.
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

// NewServer builds the view bridge: a JSON API over the session controller
// and a websocket stream of its events.
func NewServer(sess Session, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	handlers := NewSessionHandlers(sess, cfg.RequestTimeout, logger)
	api := router.Group("/api")
	{
		api.GET("/session", handlers.GetSession)
		api.POST("/session/connect", handlers.Connect)
		api.POST("/rooms", handlers.CreateRoom)
		api.POST("/rooms/join", handlers.JoinRoom)
		api.DELETE("/rooms/current", handlers.LeaveRoom)
		api.POST("/messages", handlers.SendMessage)
		api.PUT("/draft", handlers.UpdateDraft)
	}

	// The websocket endpoint bypasses gin: its writer cannot be hijacked once
	// the engine has touched it.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewEventsHandler(sess, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
