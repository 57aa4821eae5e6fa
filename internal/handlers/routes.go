package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/latestcomment/go-model-arena/internal/services"
	"github.com/latestcomment/go-model-arena/static"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type AppConfig struct {
	// AccessLog receives one line per request; nil means stdout.
	AccessLog io.Writer
	Logger    *slog.Logger
}

// NewApp wires the pages, the JSON API, the websocket and the metrics
// endpoint onto a fiber app.
func NewApp(arena *services.ArenaService, cfg AppConfig) *fiber.App {
	if cfg.AccessLog == nil {
		cfg.AccessLog = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	engine := html.NewFileSystem(http.FS(static.Files), ".html")
	app := fiber.New(fiber.Config{
		Views:                 engine,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: cfg.AccessLog}))
	app.Use("/api", cors.New())

	h := NewHandler(arena)
	ws := NewWebSocketHandler(arena)
	sse := NewStreamHandler(arena, cfg.Logger)

	app.Get("/", h.ModePage)
	app.Post("/session", h.CreateSession)
	app.Get("/arena/:id", h.ArenaPage)
	app.Get("/healthz", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Post("/chat/stream", sse.StreamChat)
	api.Post("/sessions", h.CreateSessionAPI)
	api.Get("/sessions/:id", h.GetSession)
	api.Delete("/sessions/:id", h.CloseSession)
	api.Post("/sessions/:id/mode", h.SelectMode)
	api.Post("/sessions/:id/submit", h.Submit)
	api.Post("/sessions/:id/end", h.EndConversation)
	api.Post("/sessions/:id/winner", h.DeclareWinner)
	api.Post("/sessions/:id/feedback", h.SubmitFeedback)

	app.Get("/ws/:id", ws.WebSocketMiddleware, websocket.New(ws.HandleWebSocket))

	return app
}
