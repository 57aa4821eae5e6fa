package models

import "errors"

var (
	ErrEmptyInput        = errors.New("input is empty")
	ErrStreaming         = errors.New("a response is still streaming")
	ErrModeNotSelected   = errors.New("model type has not been selected")
	ErrModeLocked        = errors.New("model type is already selected")
	ErrInvalidMode       = errors.New("invalid model type")
	ErrInvalidWinner     = errors.New("invalid winner")
	ErrInvalidSide       = errors.New("invalid panel side")
	ErrConversationEnded = errors.New("conversation has ended")
	ErrWinnerDeclared    = errors.New("winner already declared")
	ErrNothingToRate     = errors.New("no responses to rate yet")
	ErrNotEnded          = errors.New("conversation has not ended")
	ErrFeedbackSubmitted = errors.New("feedback already submitted")
	ErrInvalidTransition = errors.New("invalid transition")
)
