package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/latestcomment/go-model-arena/internal/models"
	"github.com/latestcomment/go-model-arena/internal/services"
	"github.com/valyala/fasthttp"
)

// StreamHandler serves one model's reply as Server-Sent Events.
type StreamHandler struct {
	Service *services.ArenaService
	log     *slog.Logger
}

func NewStreamHandler(service *services.ArenaService, log *slog.Logger) *StreamHandler {
	return &StreamHandler{Service: service, log: log}
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages     []ChatMessage `json:"messages"`
	Model        string        `json:"model"`
	ModelVersion string        `json:"model_version"`
	Stream       *bool         `json:"stream,omitempty"`
	Temperature  *float64      `json:"temperature,omitempty"`
	MaxTokens    *int          `json:"max_tokens,omitempty"`
}

var knownVersions = map[string]bool{"flash": true, "thinking": true, "r1": true, "v3": true}

func (r ChatRequest) validate() error {
	if r.Model != string(services.ProviderGemini) && r.Model != string(services.ProviderFireworks) {
		return fmt.Errorf("model must be gemini or fireworks, got %q", r.Model)
	}
	if !knownVersions[r.ModelVersion] {
		return fmt.Errorf("model_version must be one of flash, thinking, r1, v3, got %q", r.ModelVersion)
	}
	if len(r.Messages) == 0 {
		return errors.New("messages must not be empty")
	}
	return nil
}

func (r ChatRequest) streamRequest() services.StreamRequest {
	msgs := make([]models.Message, len(r.Messages))
	for i, m := range r.Messages {
		msgs[i] = models.Message{Role: models.Role(m.Role), Text: m.Content}
	}
	return services.StreamRequest{
		Provider: services.Provider(r.Model),
		Version:  r.ModelVersion,
		Messages: msgs,
	}
}

// StreamChat writes "message" events per chunk, "error" if the stream fails
// and "done" at the end. An unsupported provider/version pair is reported
// in-band, as a message event, rather than as an HTTP error.
func (h *StreamHandler) StreamChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	sreq := req.streamRequest()
	streamer, err := h.Service.StreamerFor(sreq.Provider)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log := h.log.With("provider", sreq.Provider, "version", sreq.Version)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if _, err := services.ResolveModel(sreq.Provider, sreq.Version); err != nil {
			writeEvent(w, "message", "Error: "+err.Error())
			writeEvent(w, "done", "[DONE]")
			_ = w.Flush()
			return
		}

		chunks, err := streamer.Stream(ctx, sreq)
		if err != nil {
			writeEvent(w, "error", err.Error())
			_ = w.Flush()
			return
		}
		for chunk := range chunks {
			if chunk.Err != nil {
				log.Warn("chat stream failed", "error", chunk.Err)
				writeEvent(w, "error", chunk.Err.Error())
				_ = w.Flush()
				return
			}
			if chunk.Delta == "" {
				continue
			}
			writeEvent(w, "message", chunk.Delta)
			if err := w.Flush(); err != nil {
				log.Debug("chat stream client gone", "error", err)
				return
			}
		}
		writeEvent(w, "done", "[DONE]")
		_ = w.Flush()
	}))
	return nil
}

// writeEvent frames data as one SSE event; embedded newlines become extra
// data lines.
func writeEvent(w *bufio.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
