package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Mode string

const (
	ModeUnset     Mode = ""
	ModeReasoning Mode = "reasoning"
	ModeInstruct  Mode = "instruct"
)

func (m Mode) Valid() bool {
	return m == ModeReasoning || m == ModeInstruct
}

// Labels are the names shown on the arena page for a mode.
type Labels struct {
	Title      string `json:"title"`
	LeftTitle  string `json:"leftTitle"`
	LeftModel  string `json:"leftModel"`
	RightTitle string `json:"rightTitle"`
	RightModel string `json:"rightModel"`
}

func (m Mode) Labels() Labels {
	l := Labels{
		LeftTitle:  "Google Generative AI",
		RightTitle: "Fireworks.ai",
	}
	if m == ModeReasoning {
		l.Title = "Reasoning"
		l.LeftModel = "Gemini 2.0 Flash Thinking"
		l.RightModel = "DeepSeek R1"
		return l
	}
	l.Title = "Instruct"
	l.LeftModel = "Gemini 2.0 Flash"
	l.RightModel = "DeepSeek V3"
	return l
}

type Winner string

const (
	WinnerUnset  Winner = ""
	WinnerGoogle Winner = "google"
	WinnerOther  Winner = "other"
	WinnerTie    Winner = "tie"
)

func (w Winner) Valid() bool {
	return w == WinnerGoogle || w == WinnerOther || w == WinnerTie
}

// Announcement is the banner text for a declared winner.
func (w Winner) Announcement() string {
	switch w {
	case WinnerGoogle:
		return "Google Wins! 🎉"
	case WinnerOther:
		return "Fireworks.ai Wins! 🎉"
	case WinnerTie:
		return "It's a Tie! 🤝"
	}
	return ""
}

type Phase int

const (
	PhaseSelecting Phase = iota
	PhasePrompting
	PhaseStreaming
	PhaseIdle
	PhaseEnded
	PhaseWinnerChosen
	PhaseFeedbackSubmitted
)

var phaseNames = map[Phase]string{
	PhaseSelecting:         "selecting",
	PhasePrompting:         "prompting",
	PhaseStreaming:         "streaming",
	PhaseIdle:              "idle",
	PhaseEnded:             "ended",
	PhaseWinnerChosen:      "winner_chosen",
	PhaseFeedbackSubmitted: "feedback_submitted",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Session is the conversation and voting state of one arena.
//
// Transitions are pure: every method returns a new Session and leaves the
// receiver untouched, so a failed transition never leaves partial state behind.
type Session struct {
	ID                uuid.UUID `json:"id"`
	Mode              Mode      `json:"mode"`
	Phase             Phase     `json:"phase"`
	Left              Panel     `json:"left"`
	Right             Panel     `json:"right"`
	ConversationEnded bool      `json:"conversationEnded"`
	Winner            Winner    `json:"winner"`
	FeedbackText      string    `json:"feedbackText"`
	FeedbackSubmitted bool      `json:"feedbackSubmitted"`
	CreatedAt         time.Time `json:"createdAt"`
}

func NewSession(id uuid.UUID, now time.Time) Session {
	return Session{
		ID:        id,
		Phase:     PhaseSelecting,
		Left:      NewPanel(SideLeft),
		Right:     NewPanel(SideRight),
		CreatedAt: now,
	}
}

func (s Session) Panel(side Side) Panel {
	if side == SideRight {
		return s.Right
	}
	return s.Left
}

func (s Session) withPanel(side Side, p Panel) Session {
	if side == SideRight {
		s.Right = p
	} else {
		s.Left = p
	}
	return s
}

func (s Session) IsStreaming() bool {
	return s.Left.IsStreaming || s.Right.IsStreaming
}

func (s Session) HasMessages() bool {
	return len(s.Left.Messages) > 0 || len(s.Right.Messages) > 0
}

func (s Session) SelectMode(mode Mode) (Session, error) {
	if s.Phase != PhaseSelecting {
		return s, ErrModeLocked
	}
	if !mode.Valid() {
		return s, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	s.Mode = mode
	s.Phase = PhasePrompting
	return s, nil
}

// Submit is the shared input box: before a winner it takes prompts, after a
// winner it takes feedback.
func (s Session) Submit(text string, at time.Time) (Session, error) {
	if s.Winner != WinnerUnset {
		return s.SubmitFeedback(text)
	}
	return s.SubmitPrompt(text, at)
}

func (s Session) SubmitPrompt(text string, at time.Time) (Session, error) {
	if strings.TrimSpace(text) == "" {
		return s, ErrEmptyInput
	}
	switch s.Phase {
	case PhasePrompting, PhaseIdle:
	case PhaseSelecting:
		return s, ErrModeNotSelected
	case PhaseStreaming:
		return s, ErrStreaming
	case PhaseEnded:
		return s, ErrConversationEnded
	case PhaseWinnerChosen, PhaseFeedbackSubmitted:
		return s, ErrWinnerDeclared
	default:
		return s, fmt.Errorf("%w: submit prompt in %s", ErrInvalidTransition, s.Phase)
	}

	msg := Message{Role: RoleUser, Text: text, Timestamp: at}
	s.Left = s.Left.begin(msg)
	s.Right = s.Right.begin(msg)
	s.Phase = PhaseStreaming
	return s, nil
}

func (s Session) checkStreamingPanel(side Side) error {
	if !side.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if s.Phase != PhaseStreaming || !s.Panel(side).IsStreaming {
		return fmt.Errorf("%w: %s panel is not streaming", ErrInvalidTransition, side)
	}
	return nil
}

// FirstToken records time to first token and opens the assistant reply.
func (s Session) FirstToken(side Side, ttft time.Duration, at time.Time) (Session, error) {
	if err := s.checkStreamingPanel(side); err != nil {
		return s, err
	}
	p := s.Panel(side)
	if p.Metrics.TimeToFirstToken != nil {
		return s, fmt.Errorf("%w: first token already recorded", ErrInvalidTransition)
	}
	return s.withPanel(side, p.firstToken(ttft, at)), nil
}

func (s Session) AppendToken(side Side, delta string) (Session, error) {
	if err := s.checkStreamingPanel(side); err != nil {
		return s, err
	}
	p := s.Panel(side)
	if !p.hasAssistantReply() || p.Metrics.TimeToFirstToken == nil {
		return s, fmt.Errorf("%w: token before first token", ErrInvalidTransition)
	}
	return s.withPanel(side, p.appendToken(delta)), nil
}

// CompletePanel stops one panel. The phase returns to idle once both are done.
func (s Session) CompletePanel(side Side, totalTokens int, latency time.Duration) (Session, error) {
	if err := s.checkStreamingPanel(side); err != nil {
		return s, err
	}
	s = s.withPanel(side, s.Panel(side).complete(totalTokens, latency))
	if !s.IsStreaming() {
		s.Phase = PhaseIdle
	}
	return s, nil
}

// FailPanel ends a panel whose stream reported an error. The error is shown in
// place of the reply.
func (s Session) FailPanel(side Side, cause error, totalTokens int, latency time.Duration, at time.Time) (Session, error) {
	if err := s.checkStreamingPanel(side); err != nil {
		return s, err
	}
	p := s.Panel(side)
	if !p.hasAssistantReply() || p.Metrics.TimeToFirstToken == nil {
		p = p.firstToken(latency, at)
	}
	text := "Error: " + cause.Error()
	if p.Messages[len(p.Messages)-1].Text != "" {
		text = "\n" + text
	}
	p = p.appendToken(text)
	s = s.withPanel(side, p.complete(totalTokens, latency))
	if !s.IsStreaming() {
		s.Phase = PhaseIdle
	}
	return s, nil
}

func (s Session) EndConversation() (Session, error) {
	switch s.Phase {
	case PhaseIdle:
	case PhaseStreaming:
		return s, ErrStreaming
	case PhaseSelecting, PhasePrompting:
		return s, ErrNothingToRate
	default:
		return s, ErrConversationEnded
	}
	s.ConversationEnded = true
	s.Phase = PhaseEnded
	return s, nil
}

func (s Session) DeclareWinner(w Winner) (Session, error) {
	if s.Winner != WinnerUnset {
		return s, ErrWinnerDeclared
	}
	if s.Phase != PhaseEnded {
		return s, ErrNotEnded
	}
	if !w.Valid() {
		return s, fmt.Errorf("%w: %q", ErrInvalidWinner, w)
	}
	s.Winner = w
	s.Phase = PhaseWinnerChosen
	return s, nil
}

func (s Session) SubmitFeedback(text string) (Session, error) {
	if s.FeedbackSubmitted {
		return s, ErrFeedbackSubmitted
	}
	if s.Phase != PhaseWinnerChosen {
		return s, fmt.Errorf("%w: feedback in %s", ErrInvalidTransition, s.Phase)
	}
	if s.IsStreaming() {
		return s, ErrStreaming
	}
	if strings.TrimSpace(text) == "" {
		return s, ErrEmptyInput
	}
	s.FeedbackText = text
	s.FeedbackSubmitted = true
	s.Phase = PhaseFeedbackSubmitted
	return s, nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s Session) Clone() Session {
	s.Left = s.Left.clone()
	s.Right = s.Right.clone()
	return s
}
