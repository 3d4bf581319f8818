// Package language resolves the reply language for inbound messages.
// Resolution is sticky: once a user has a language it only changes when a
// message gives positive evidence for the other one.
package language

import (
	"context"
	"log/slog"
	"strings"

	"github.com/irislabs/iris/internal/models"
)

// Detector identifies the language of a piece of text. Implementations
// return ErrUndetected (or any error) when no confident answer exists.
type Detector interface {
	Detect(ctx context.Context, text string) (models.Language, error)
}

// neutralWords are messages that carry no language signal on their own.
// Single-token messages matching this set keep the user's last language.
var neutralWords = map[string]struct{}{
	"bot":      {},
	"chatbot":  {},
	"iris":     {},
	"chat bot": {},
	"hotel":    {},
	"no":       {},
}

// spanishWords are short interjections the detection service routinely
// misclassifies, so they short-circuit to Spanish.
var spanishWords = map[string]struct{}{
	"oy":  {},
	"oye": {},
	"ey":  {},
	"si":  {},
}

// Resolver decides the language of each inbound message.
type Resolver struct {
	detector Detector
}

// NewResolver creates a resolver backed by the given detector. A nil
// detector is allowed; resolution then relies on word lists and fallback.
func NewResolver(detector Detector) *Resolver {
	return &Resolver{detector: detector}
}

// Resolve returns the language to use for a message. last is the user's
// stored language (may be unknown), localeHint an optional channel locale.
// The result is always en or es.
func (r *Resolver) Resolve(ctx context.Context, text string, last models.Language, localeHint string) models.Language {
	normalized := strings.ToLower(strings.TrimSpace(text))

	if _, ok := neutralWords[normalized]; ok {
		// Only the neutral-word branch consults the channel locale; a
		// message the detector cannot place defaults to Spanish instead.
		if last == models.LangEnglish || last == models.LangSpanish {
			return last
		}
		if hinted := NormalizeLocale(localeHint); hinted != "" {
			return hinted
		}
		return models.LangSpanish
	}
	if _, ok := spanishWords[normalized]; ok {
		return models.LangSpanish
	}

	if r.detector != nil {
		detected, err := r.detector.Detect(ctx, text)
		if err != nil {
			slog.Debug("Language detection failed, falling back", "error", err)
		} else if detected == models.LangEnglish || detected == models.LangSpanish {
			return detected
		}
	}
	if last == models.LangEnglish || last == models.LangSpanish {
		return last
	}
	return models.LangSpanish
}

// NormalizeLocale maps a locale tag like "en_US" or "es-MX" to a supported
// language, or unknown when the tag is for another language.
func NormalizeLocale(locale string) models.Language {
	locale = strings.ToLower(locale)
	switch {
	case strings.HasPrefix(locale, "en"):
		return models.LangEnglish
	case strings.HasPrefix(locale, "es"):
		return models.LangSpanish
	default:
		return models.LangUnknown
	}
}
