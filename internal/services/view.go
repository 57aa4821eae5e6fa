package services

import "github.com/latestcomment/go-model-arena/internal/models"

// SessionView is a session plus everything the page derives from it.
type SessionView struct {
	Session      models.Session `json:"session"`
	Labels       models.Labels  `json:"labels"`
	LeftSpeed    string         `json:"leftSpeed"`
	RightSpeed   string         `json:"rightSpeed"`
	LeftTTFT     string         `json:"leftTtft"`
	RightTTFT    string         `json:"rightTtft"`
	Streaming    bool           `json:"streaming"`
	CanEnd       bool           `json:"canEnd"`
	CanVote      bool           `json:"canVote"`
	Announcement string         `json:"announcement,omitempty"`
	Placeholder  string         `json:"placeholder"`
}

func NewSessionView(s models.Session) SessionView {
	placeholder := "Enter your prompt here..."
	if s.Winner != models.WinnerUnset {
		placeholder = "Please provide feedback on why you chose this winner..."
	}
	return SessionView{
		Session:      s,
		Labels:       s.Mode.Labels(),
		LeftSpeed:    s.Left.Metrics.TokensPerSecond(),
		RightSpeed:   s.Right.Metrics.TokensPerSecond(),
		LeftTTFT:     s.Left.Metrics.TTFT(),
		RightTTFT:    s.Right.Metrics.TTFT(),
		Streaming:    s.IsStreaming(),
		CanEnd:       s.Phase == models.PhaseIdle && s.HasMessages(),
		CanVote:      s.Phase == models.PhaseEnded,
		Announcement: s.Winner.Announcement(),
		Placeholder:  placeholder,
	}
}

type snapshotFrame struct {
	Type string `json:"type"`
	SessionView
}

// Frame wraps the view for the websocket.
func (v SessionView) Frame() interface{} {
	return snapshotFrame{Type: "snapshot", SessionView: v}
}
