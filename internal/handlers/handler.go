package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/latestcomment/go-model-arena/internal/models"
	"github.com/latestcomment/go-model-arena/internal/services"
)

type Handler struct {
	Arena *services.ArenaService
}

func NewHandler(arena *services.ArenaService) *Handler {
	return &Handler{Arena: arena}
}

type modeOption struct {
	Mode        models.Mode
	Heading     string
	Description string
	Labels      models.Labels
}

var modeOptions = []modeOption{
	{
		Mode:        models.ModeReasoning,
		Heading:     "Reasoning Models",
		Description: "Compare models optimized for complex reasoning and analysis",
		Labels:      models.ModeReasoning.Labels(),
	},
	{
		Mode:        models.ModeInstruct,
		Heading:     "Instruct Models",
		Description: "Compare models optimized for following specific instructions",
		Labels:      models.ModeInstruct.Labels(),
	},
}

func (h *Handler) ModePage(c *fiber.Ctx) error {
	return c.Render("index", fiber.Map{
		"Options": modeOptions,
	})
}

// CreateSession handles the mode form: a new arena fixed to the chosen mode.
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	mode := models.Mode(c.FormValue("mode"))
	room := h.Arena.CreateRoom()
	if err := h.Arena.SelectMode(room, mode); err != nil {
		_ = h.Arena.CloseRoom(room.Session.ID.String())
		return c.Status(fiber.StatusBadRequest).Render("index", fiber.Map{
			"Options": modeOptions,
			"Error":   "Please choose a model type",
		})
	}
	return c.Redirect("/arena/"+room.Session.ID.String(), fiber.StatusSeeOther)
}

func (h *Handler) ArenaPage(c *fiber.Ctx) error {
	room, err := h.Arena.GetRoom(c.Params("id"))
	if err != nil {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	view := h.Arena.Snapshot(room)
	if view.Session.Mode == models.ModeUnset {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Render("arena", fiber.Map{
		"ID":   view.Session.ID.String(),
		"View": view,
	})
}

type createRequest struct {
	Mode models.Mode `json:"mode"`
}

type textRequest struct {
	Text string `json:"text"`
}

type winnerRequest struct {
	Winner models.Winner `json:"winner"`
}

func (h *Handler) CreateSessionAPI(c *fiber.Ctx) error {
	var req createRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	room := h.Arena.CreateRoom()
	if req.Mode != models.ModeUnset {
		if err := h.Arena.SelectMode(room, req.Mode); err != nil {
			_ = h.Arena.CloseRoom(room.Session.ID.String())
			return toFiberError(err)
		}
	}
	return c.Status(fiber.StatusCreated).JSON(h.Arena.Snapshot(room))
}

func (h *Handler) GetSession(c *fiber.Ctx) error {
	room, err := h.Arena.GetRoom(c.Params("id"))
	if err != nil {
		return toFiberError(err)
	}
	return c.JSON(h.Arena.Snapshot(room))
}

func (h *Handler) CloseSession(c *fiber.Ctx) error {
	if err := h.Arena.CloseRoom(c.Params("id")); err != nil {
		return toFiberError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) SelectMode(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return h.act(c, fiber.StatusOK, func(room *models.Room) error {
		return h.Arena.SelectMode(room, req.Mode)
	})
}

// Submit is the shared input box. Blank text is accepted and ignored.
func (h *Handler) Submit(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		if _, err := h.Arena.GetRoom(c.Params("id")); err != nil {
			return toFiberError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
	return h.act(c, fiber.StatusAccepted, func(room *models.Room) error {
		return h.Arena.Submit(room, req.Text)
	})
}

func (h *Handler) EndConversation(c *fiber.Ctx) error {
	return h.act(c, fiber.StatusOK, h.Arena.EndConversation)
}

func (h *Handler) DeclareWinner(c *fiber.Ctx) error {
	var req winnerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return h.act(c, fiber.StatusOK, func(room *models.Room) error {
		return h.Arena.DeclareWinner(room, req.Winner)
	})
}

func (h *Handler) SubmitFeedback(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return h.act(c, fiber.StatusOK, func(room *models.Room) error {
		return h.Arena.SubmitFeedback(room, req.Text)
	})
}

// act runs fn against the room named in the path and answers with the new
// snapshot.
func (h *Handler) act(c *fiber.Ctx, status int, fn func(*models.Room) error) error {
	room, err := h.Arena.GetRoom(c.Params("id"))
	if err != nil {
		return toFiberError(err)
	}
	if err := fn(room); err != nil {
		return toFiberError(err)
	}
	return c.Status(status).JSON(h.Arena.Snapshot(room))
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func toFiberError(err error) error {
	switch {
	case errors.Is(err, services.ErrRoomNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidMode),
		errors.Is(err, models.ErrInvalidWinner),
		errors.Is(err, models.ErrEmptyInput),
		errors.Is(err, services.ErrUnknownAction),
		errors.Is(err, services.ErrUnknownProvider),
		errors.Is(err, services.ErrUnknownVersion):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrStreaming),
		errors.Is(err, models.ErrModeNotSelected),
		errors.Is(err, models.ErrModeLocked),
		errors.Is(err, models.ErrConversationEnded),
		errors.Is(err, models.ErrWinnerDeclared),
		errors.Is(err, models.ErrNothingToRate),
		errors.Is(err, models.ErrNotEnded),
		errors.Is(err, models.ErrFeedbackSubmitted),
		errors.Is(err, models.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}

// ErrorHandler answers API routes with a JSON error body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(code).SendString(err.Error())
}
