package services

import (
	"context"
	"strings"
	"time"

	"github.com/latestcomment/go-model-arena/internal/models"
)

// DefaultResponse is the reply every simulated model gives.
const DefaultResponse = "Thank you for your question. Based on my analysis, there are several key points to consider. First, let's examine the context. This helps us understand the broader implications."

type StreamRequest struct {
	Provider Provider
	Version  string
	Messages []models.Message
}

// Chunk is one piece of a streamed reply. A chunk with Err set is the last one.
type Chunk struct {
	Delta string
	Err   error
}

// Streamer produces a reply as a lazy sequence of chunks. The channel is
// closed when the reply is complete or ctx is cancelled.
type Streamer interface {
	Stream(ctx context.Context, req StreamRequest) (<-chan Chunk, error)
}

// SimulatedStreamer waits Delay, then reveals Response one word per Interval.
type SimulatedStreamer struct {
	Delay    time.Duration
	Interval time.Duration
	Response string
}

func NewSimulatedStreamer(delay, interval time.Duration, response string) *SimulatedStreamer {
	if response == "" {
		response = DefaultResponse
	}
	return &SimulatedStreamer{Delay: delay, Interval: interval, Response: response}
}

func (s *SimulatedStreamer) Stream(ctx context.Context, req StreamRequest) (<-chan Chunk, error) {
	if _, err := ResolveModel(req.Provider, req.Version); err != nil {
		return nil, err
	}
	words := strings.Fields(s.Response)
	out := make(chan Chunk)

	go func() {
		defer close(out)

		if !sleep(ctx, s.Delay) {
			return
		}
		ticker := time.NewTicker(s.interval())
		defer ticker.Stop()

		for i, w := range words {
			if i > 0 {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				w = " " + w
			}
			select {
			case <-ctx.Done():
				return
			case out <- Chunk{Delta: w}:
			}
		}
	}()
	return out, nil
}

func (s *SimulatedStreamer) interval() time.Duration {
	if s.Interval <= 0 {
		return time.Millisecond
	}
	return s.Interval
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
