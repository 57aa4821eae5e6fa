package models

import (
	"fmt"
	"time"
)

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// Metrics are nil until the stream reaches the point where they are known.
type Metrics struct {
	TimeToFirstToken *int64 `json:"ttft"`
	TotalTokens      *int   `json:"totalTokens"`
	FinalLatencyMs   *int64 `json:"finalLatency"`
}

// TokensPerSecond formats throughput for the panel footer.
func (m Metrics) TokensPerSecond() string {
	if m.TotalTokens == nil || m.FinalLatencyMs == nil || *m.TotalTokens == 0 || *m.FinalLatencyMs == 0 {
		return "..."
	}
	tps := float64(*m.TotalTokens) / (float64(*m.FinalLatencyMs) / 1000)
	return fmt.Sprintf("%.1f t/s", tps)
}

// TTFT formats the time to first token for the panel footer.
func (m Metrics) TTFT() string {
	if m.TimeToFirstToken == nil {
		return "..."
	}
	return fmt.Sprintf("%d", *m.TimeToFirstToken)
}

type Panel struct {
	Side        Side      `json:"side"`
	Messages    []Message `json:"messages"`
	Metrics     Metrics   `json:"metrics"`
	IsStreaming bool      `json:"isStreaming"`
}

func NewPanel(side Side) Panel {
	return Panel{Side: side, Messages: []Message{}}
}

func (p Panel) clone() Panel {
	out := p
	out.Messages = make([]Message, len(p.Messages))
	copy(out.Messages, p.Messages)
	out.Metrics = Metrics{
		TimeToFirstToken: cloneInt64(p.Metrics.TimeToFirstToken),
		TotalTokens:      cloneInt(p.Metrics.TotalTokens),
		FinalLatencyMs:   cloneInt64(p.Metrics.FinalLatencyMs),
	}
	return out
}

func (p Panel) begin(prompt Message) Panel {
	out := p.clone()
	out.Messages = append(out.Messages, prompt)
	out.Metrics = Metrics{}
	out.IsStreaming = true
	return out
}

func (p Panel) firstToken(ttft time.Duration, at time.Time) Panel {
	out := p.clone()
	ms := ttft.Milliseconds()
	out.Metrics.TimeToFirstToken = &ms
	out.Messages = append(out.Messages, Message{Role: RoleAssistant, Timestamp: at})
	return out
}

func (p Panel) appendToken(delta string) Panel {
	out := p.clone()
	last := len(out.Messages) - 1
	out.Messages[last].Text += delta
	return out
}

func (p Panel) complete(totalTokens int, latency time.Duration) Panel {
	out := p.clone()
	ms := latency.Milliseconds()
	if out.Metrics.TimeToFirstToken == nil {
		// No token ever arrived; first token and completion coincide.
		out.Metrics.TimeToFirstToken = &ms
	}
	out.Metrics.TotalTokens = &totalTokens
	out.Metrics.FinalLatencyMs = &ms
	out.IsStreaming = false
	return out
}

func (p Panel) hasAssistantReply() bool {
	n := len(p.Messages)
	return n > 0 && p.Messages[n-1].Role == RoleAssistant
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
