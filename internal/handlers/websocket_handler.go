package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/latestcomment/go-model-arena/internal/models"
	"github.com/latestcomment/go-model-arena/internal/services"
)

type WebSocketHandler struct {
	Service *services.ArenaService
}

func NewWebSocketHandler(service *services.ArenaService) *WebSocketHandler {
	return &WebSocketHandler{Service: service}
}

// WebSocketMiddleware rejects plain requests and unknown sessions before the
// upgrade.
func (h *WebSocketHandler) WebSocketMiddleware(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	room, err := h.Service.GetRoom(c.Params("id"))
	if err != nil {
		return toFiberError(err)
	}
	c.Locals("room", room)
	return c.Next()
}

func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	defer func() {
		_ = c.Close()
	}()

	room, ok := c.Locals("room").(*models.Room)
	if !ok {
		return
	}

	client := &models.Client{
		Id:   uuid.New(),
		Conn: c,
	}

	if err := h.Service.AddClient(room, client); err != nil {
		_ = client.Send(services.ErrorFrame{Type: "error", Error: err.Error()})
		return
	}
	h.Service.LoopMessages(room, c, client)
	h.Service.RemoveClient(room, client)
}
