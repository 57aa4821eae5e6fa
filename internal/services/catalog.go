package services

import (
	"errors"
	"fmt"

	"github.com/latestcomment/go-model-arena/internal/models"
)

type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderFireworks Provider = "fireworks"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownVersion  = errors.New("unknown model version")
)

var geminiModels = map[string]string{
	"flash":    "gemini/gemini-2.0-flash",
	"thinking": "gemini/gemini-2.0-flash-thinking-exp-01-21",
}

var fireworksModels = map[string]string{
	"r1": "fireworks_ai/accounts/fireworks/models/deepseek-r1",
	"v3": "fireworks_ai/accounts/fireworks/models/deepseek-v3",
}

// VersionError reports a model version the provider does not offer.
type VersionError struct {
	Provider string
	Version  string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("Invalid %s model version: %s", e.Provider, e.Version)
}

func (e *VersionError) Unwrap() error { return ErrUnknownVersion }

// ResolveModel maps a provider and short version ("flash", "r1", ...) to the
// full model identifier.
func ResolveModel(p Provider, version string) (string, error) {
	var table map[string]string
	var label string
	switch p {
	case ProviderGemini:
		table, label = geminiModels, "Gemini"
	case ProviderFireworks:
		table, label = fireworksModels, "Fireworks"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	model, ok := table[version]
	if !ok {
		return "", &VersionError{Provider: label, Version: version}
	}
	return model, nil
}

// PanelProvider is the provider bound to each side of the arena.
func PanelProvider(side models.Side) Provider {
	if side == models.SideRight {
		return ProviderFireworks
	}
	return ProviderGemini
}

// PanelVersion is the model version a panel asks for in the given mode.
func PanelVersion(mode models.Mode, side models.Side) string {
	switch {
	case side == models.SideLeft && mode == models.ModeReasoning:
		return "thinking"
	case side == models.SideLeft:
		return "flash"
	case mode == models.ModeReasoning:
		return "r1"
	default:
		return "v3"
	}
}
